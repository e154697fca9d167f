package learning

import (
	"math"
	"sort"
	"strconv"

	"github.com/sells-group/geospark-cli/internal/model"
)

const (
	unknownGroup = "unknown"

	// minCTASample is the sends the best CTA style needs before it is
	// recommended.
	minCTASample = 10
	// minWordCountGap is the word-count difference between replied and
	// unreplied emails that counts as material.
	minWordCountGap = 10

	insightConfidenceCap   = 95
	ctaConfidenceCap       = 90
	wordCountConfidenceCap = 85
)

// Lead statuses that count as contacted or replied for source analysis.
var (
	contactedStatuses = map[string]bool{
		"contacted": true, "replied": true, "interested": true, "demo_scheduled": true, "converted": true,
	}
	repliedStatuses = map[string]bool{
		"replied": true, "interested": true, "demo_scheduled": true, "converted": true,
	}
)

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// confidence grows with sample size and never exceeds limit.
func confidence(samples, perSample, limit int) int {
	c := samples * perSample
	if c > limit {
		return limit
	}
	if c < 0 {
		return 0
	}
	return c
}

func groupKey(s string) string {
	if s == "" {
		return unknownGroup
	}
	return s
}

func tally(groups map[string]*model.GroupStats, key string, e model.EmailSequenceEntry) {
	g, ok := groups[key]
	if !ok {
		g = &model.GroupStats{}
		groups[key] = g
	}
	g.Sent++
	if e.Opened {
		g.Opened++
	}
	if e.Replied {
		g.Replied++
	}
	if e.ReplySentiment == "positive" {
		g.Positive++
	}
}

func finishGroups(groups map[string]*model.GroupStats) {
	for _, g := range groups {
		g.OpenRate = pct(g.Opened, g.Sent)
		g.ReplyRate = pct(g.Replied, g.Sent)
	}
}

// Analyze computes totals, rates and per-dimension breakdowns of sent emails.
// Rates are percentages rounded to one decimal.
func Analyze(emails []model.EmailSequenceEntry) *model.Performance {
	perf := &model.Performance{
		ByEmailNumber:    map[string]*model.GroupStats{},
		ByInsightType:    map[string]*model.GroupStats{},
		ByCTAStyle:       map[string]*model.GroupStats{},
		BySubjectPattern: map[string]*model.GroupStats{},
	}

	var repliedWords, otherWords []int
	for _, e := range emails {
		perf.TotalSent++
		if e.Opened {
			perf.TotalOpened++
		}
		if e.Replied {
			perf.TotalReplied++
		}
		if e.ReplySentiment == "positive" {
			perf.TotalPositive++
		}

		tally(perf.ByEmailNumber, strconv.Itoa(e.EmailNumber), e)
		tally(perf.ByInsightType, groupKey(e.InsightTypeUsed), e)
		tally(perf.ByCTAStyle, groupKey(e.CTAStyleUsed), e)
		tally(perf.BySubjectPattern, groupKey(e.SubjectPatternUsed), e)

		if e.WordCount > 0 {
			if e.Replied {
				repliedWords = append(repliedWords, e.WordCount)
			} else {
				otherWords = append(otherWords, e.WordCount)
			}
		}
	}

	perf.OpenRate = pct(perf.TotalOpened, perf.TotalSent)
	perf.ReplyRate = pct(perf.TotalReplied, perf.TotalSent)
	perf.PositiveRate = pct(perf.TotalPositive, perf.TotalSent)
	for _, groups := range []map[string]*model.GroupStats{
		perf.ByEmailNumber, perf.ByInsightType, perf.ByCTAStyle, perf.BySubjectPattern,
	} {
		finishGroups(groups)
	}

	if len(repliedWords) > 0 {
		wc := &model.WordCountStats{RepliedAvg: average(repliedWords)}
		if len(otherWords) > 0 {
			avg := average(otherWords)
			wc.NotRepliedAvg = &avg
		}
		perf.OptimalWordCount = wc
	}
	return perf
}

func average(vals []int) int {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(len(vals))))
}

// extremes returns the groups with the highest and lowest reply rate,
// ignoring the unknown group. Ties go to the first key in sorted order.
func extremes(groups map[string]*model.GroupStats) (best, worst string, ok bool) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		if k != unknownGroup {
			keys = append(keys, k)
		}
	}
	if len(keys) < 2 {
		return "", "", false
	}
	sort.Strings(keys)
	best, worst = keys[0], keys[0]
	for _, k := range keys[1:] {
		if groups[k].ReplyRate > groups[best].ReplyRate {
			best = k
		}
		if groups[k].ReplyRate < groups[worst].ReplyRate {
			worst = k
		}
	}
	return best, worst, true
}

// material reports whether the gap between two rates reaches margin.
func material(best, worst, margin float64) bool {
	return best-worst+1e-9 >= margin
}

// Recommend derives recommendations from performance. A dimension yields a
// recommendation only when its best and worst groups differ by at least
// margin percentage points. The caller enforces the minimum sample size.
func Recommend(perf *model.Performance, margin float64) []model.Recommendation {
	var recs []model.Recommendation

	if best, worst, ok := extremes(perf.ByInsightType); ok {
		b, w := perf.ByInsightType[best], perf.ByInsightType[worst]
		if material(b.ReplyRate, w.ReplyRate, margin) {
			recs = append(recs, model.Recommendation{
				LearningType:  "insight_priority",
				ParameterName: "email_1_insight_type",
				CurrentValue:  map[string]any{"best": best, "best_rate": b.ReplyRate},
				Evidence:      map[string]any{"worst": worst, "worst_rate": w.ReplyRate, "best_sent": b.Sent, "worst_sent": w.Sent},
				Confidence:    confidence(b.Sent, 2, insightConfidenceCap),
				SampleSize:    b.Sent + w.Sent,
				Description:   describeGap("insight type", best, b.ReplyRate, worst, w.ReplyRate),
				Status:        model.LearningRecommended,
			})
		}
	}

	if best, worst, ok := extremes(perf.ByCTAStyle); ok {
		b, w := perf.ByCTAStyle[best], perf.ByCTAStyle[worst]
		if b.Sent >= minCTASample && material(b.ReplyRate, w.ReplyRate, margin) {
			recs = append(recs, model.Recommendation{
				LearningType:  "cta_style",
				ParameterName: "preferred_cta_style",
				CurrentValue:  map[string]any{"style": best, "reply_rate": b.ReplyRate},
				Evidence:      map[string]any{"worst": worst, "worst_rate": w.ReplyRate},
				Confidence:    confidence(b.Sent, 2, ctaConfidenceCap),
				SampleSize:    b.Sent + w.Sent,
				Description:   describeGap("CTA style", best, b.ReplyRate, worst, w.ReplyRate),
				Status:        model.LearningRecommended,
			})
		}
	}

	if wc := perf.OptimalWordCount; wc != nil && wc.NotRepliedAvg != nil {
		diff := wc.RepliedAvg - *wc.NotRepliedAvg
		if diff < 0 {
			diff = -diff
		}
		if diff > minWordCountGap {
			recs = append(recs, model.Recommendation{
				LearningType:  "word_count",
				ParameterName: "optimal_word_count",
				CurrentValue:  map[string]any{"target": wc.RepliedAvg},
				Evidence:      map[string]any{"replied_avg": wc.RepliedAvg, "not_replied_avg": *wc.NotRepliedAvg},
				Confidence:    confidence(perf.TotalReplied, 3, wordCountConfidenceCap),
				SampleSize:    perf.TotalSent,
				Description: "replied emails average " + strconv.Itoa(wc.RepliedAvg) +
					" words vs " + strconv.Itoa(*wc.NotRepliedAvg) + " for the rest",
				Status: model.LearningRecommended,
			})
		}
	}
	return recs
}

// AnalyzeSources groups leads by acquisition channel.
func AnalyzeSources(leads []model.Prospect) map[string]*model.SourceStats {
	out := map[string]*model.SourceStats{}
	scoreSum := map[string]int{}
	topTier := map[string]int{}

	for _, p := range leads {
		src := groupKey(string(p.ProspectSource))
		s, ok := out[src]
		if !ok {
			s = &model.SourceStats{}
			out[src] = s
		}
		s.Total++
		scoreSum[src] += p.GeosparkScore
		if p.ScoreTier == model.Tier1 || p.ScoreTier == model.Tier2 {
			topTier[src]++
		}
		status := string(p.Status)
		if contactedStatuses[status] {
			s.Contacted++
		}
		if repliedStatuses[status] {
			s.Replied++
		}
		if status == "converted" {
			s.Converted++
		}
	}

	for src, s := range out {
		s.AvgScore = round1(float64(scoreSum[src]) / float64(s.Total))
		s.TopTierShare = pct(topTier[src], s.Total)
		s.ReplyRate = pct(s.Replied, s.Contacted)
	}
	return out
}
