package social

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/pkg/instagram"
)

// Content categories, checked in this order; the first match wins.
const (
	ContentBeforeAfter     = "before_after"
	ContentTestimonial     = "testimonial"
	ContentBehindTheScenes = "behind_the_scenes"
	ContentEducational     = "educational"
	ContentPromotional     = "promotional"
	ContentOther           = "other"
)

var contentRules = []struct {
	category string
	keywords []string
}{
	{ContentBeforeAfter, []string{"before and after", "before/after", "transformation", "results", "glow up"}},
	{ContentTestimonial, []string{"review", "testimonial", "client", "customer", "thank you", "amazing experience"}},
	{ContentBehindTheScenes, []string{"behind the scenes", "bts", "day in the life", "team", "process", "making of"}},
	{ContentEducational, []string{"tip", "how to", "guide", "learn", "did you know", "tutorial", "steps"}},
	{ContentPromotional, []string{"book now", "appointment", "sale", "discount", "offer", "deal", "% off", "link in bio", "shop", "buy"}},
}

// Tool fingerprints found in bios, captions and link-in-bio URLs.
var toolPatterns = []struct {
	tool     string
	patterns []string
}{
	{"linktree", []string{"linktr.ee", "linktree"}},
	{"canva", []string{"canva.com", "made with canva"}},
	{"milkshake", []string{"milkshake.app"}},
	{"later", []string{"later.com", "linkin.bio"}},
	{"planoly", []string{"planoly"}},
	{"vagaro", []string{"vagaro"}},
	{"mindbody", []string{"mindbody"}},
	{"square", []string{"square.site", "squareup"}},
	{"schedulicity", []string{"schedulicity"}},
	{"fresha", []string{"fresha"}},
	{"booksy", []string{"booksy"}},
	{"glossgenius", []string{"glossgenius"}},
}

// Analyze turns a fetched profile into the stored Instagram profile with
// engagement, posting patterns, content mix and detected tools. Private
// profiles carry basic account info only.
func Analyze(p *instagram.Profile, now time.Time, maxPosts int) *model.SocialProfile {
	out := &model.SocialProfile{
		Platform:         model.PlatformInstagram,
		Username:         p.Username,
		ProfileURL:       normalize.InstagramURL(p.Username),
		Followers:        p.Followers,
		Following:        p.Following,
		PostsCount:       p.MediaCount,
		Bio:              p.Biography,
		BusinessCategory: p.Category,
		ExternalURL:      p.ExternalURL,
		IsBusiness:       p.IsBusiness,
		IsPrivate:        p.IsPrivate,
		ScrapedAt:        now.UTC(),
	}
	if p.IsPrivate {
		return out
	}

	posts := p.Posts
	if maxPosts > 0 && len(posts) > maxPosts {
		posts = posts[:maxPosts]
	}
	out.Posts = make([]model.Post, 0, len(posts))
	for _, ip := range posts {
		out.Posts = append(out.Posts, model.Post{
			Shortcode: ip.Shortcode,
			PostURL:   ip.URL(),
			PostDate:  ip.TakenAt,
			Caption:   ip.Caption,
			Likes:     ip.Likes,
			Comments:  ip.Comments,
			Views:     ip.Views,
			PostType:  ip.Type(),
		})
	}

	eng := Engagement(out.Posts, p.Followers)
	patterns := PostingPatterns(out.Posts, now)
	out.EngagementRate = eng.AvgEngagementRate
	out.PostsLast30Days = patterns.PostsLast30Days
	out.PostingFrequency = patterns.PostsPerMonth
	out.LastPostDate = patterns.LastPostDate
	out.RawData = model.SocialRawData{PostingPatterns: &patterns, EngagementDetails: &eng}
	out.ContentBreakdown = ClassifyContent(out.Posts)
	out.ToolsDetected = DetectTools(p.Biography+" "+p.ExternalURL, out.Posts)
	return out
}

// Engagement computes the average engagement rate, (likes+comments) over
// followers as a percentage, overall and per post type.
func Engagement(posts []model.Post, followers int) model.EngagementDetails {
	if len(posts) == 0 || followers <= 0 {
		return model.EngagementDetails{}
	}

	var likes, comments int
	byType := map[string][]float64{}
	for _, p := range posts {
		likes += p.Likes
		comments += p.Comments
		rate := float64(p.Likes+p.Comments) / float64(followers) * 100
		byType[p.PostType] = append(byType[p.PostType], rate)
	}
	n := float64(len(posts))
	avgLikes := float64(likes) / n
	avgComments := float64(comments) / n

	out := model.EngagementDetails{
		AvgEngagementRate: round(((avgLikes+avgComments)/float64(followers))*100, 3),
		AvgLikes:          round(avgLikes, 1),
		AvgComments:       round(avgComments, 1),
		EngagementByType:  make(map[string]float64, len(byType)),
	}

	types := make([]string, 0, len(byType))
	for t, rates := range byType {
		var sum float64
		for _, r := range rates {
			sum += r
		}
		out.EngagementByType[t] = round(sum/float64(len(rates)), 3)
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		avg := out.EngagementByType[t]
		if out.BestPostType == "" || avg > out.BestEngagement {
			out.BestPostType, out.BestEngagement = t, avg
		}
		if out.WorstPostType == "" || avg < out.WorstEngagement {
			out.WorstPostType, out.WorstEngagement = t, avg
		}
	}
	return out
}

// PostingPatterns measures posting cadence relative to now.
func PostingPatterns(posts []model.Post, now time.Time) model.PostingPatterns {
	dates := make([]time.Time, 0, len(posts))
	for _, p := range posts {
		if !p.PostDate.IsZero() {
			dates = append(dates, p.PostDate)
		}
	}
	if len(dates) == 0 {
		return model.PostingPatterns{}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].After(dates[j]) })

	cutoff := now.Add(-30 * 24 * time.Hour)
	last30 := 0
	for _, d := range dates {
		if !d.Before(cutoff) {
			last30++
		}
	}

	perMonth := float64(last30)
	if len(dates) > 1 {
		span := days(dates[0].Sub(dates[len(dates)-1]))
		if span == 0 {
			span = 1
		}
		perMonth = round(float64(len(dates))/(float64(span)/30), 1)
	}

	var maxGap, sumGap int
	for i := 0; i < len(dates)-1; i++ {
		gap := days(dates[i].Sub(dates[i+1]))
		sumGap += gap
		maxGap = max(maxGap, gap)
	}
	var avgGap float64
	if len(dates) > 1 {
		avgGap = round(float64(sumGap)/float64(len(dates)-1), 1)
	}

	last := dates[0]
	return model.PostingPatterns{
		PostsLast30Days:    last30,
		PostsPerMonth:      perMonth,
		LastPostDate:       &last,
		DaysSinceLastPost:  days(now.Sub(last)),
		MaxGapDays:         maxGap,
		AvgGapDays:         avgGap,
		TotalPostsAnalyzed: len(dates),
	}
}

// ClassifyContent buckets post captions by keyword and reports each
// category's count and share.
func ClassifyContent(posts []model.Post) map[string]model.ContentShare {
	counts := map[string]int{ContentOther: 0}
	for _, r := range contentRules {
		counts[r.category] = 0
	}
	for _, p := range posts {
		counts[classify(p.Caption)]++
	}

	total := len(posts)
	if total == 0 {
		total = 1
	}
	out := make(map[string]model.ContentShare, len(counts))
	for k, v := range counts {
		out[k] = model.ContentShare{Count: v, Pct: round(float64(v)/float64(total)*100, 1)}
	}
	return out
}

func classify(caption string) string {
	caption = strings.ToLower(caption)
	for _, r := range contentRules {
		for _, kw := range r.keywords {
			if strings.Contains(caption, kw) {
				return r.category
			}
		}
	}
	return ContentOther
}

// DetectTools returns the marketing and booking tools fingerprinted in the
// bio text or post captions.
func DetectTools(bio string, posts []model.Post) []string {
	var b strings.Builder
	b.WriteString(strings.ToLower(bio))
	for _, p := range posts {
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(p.Caption))
	}
	text := b.String()

	var found []string
	for _, t := range toolPatterns {
		for _, pat := range t.patterns {
			if strings.Contains(text, pat) {
				found = append(found, t.tool)
				break
			}
		}
	}
	return found
}

func days(d time.Duration) int {
	return int(d / (24 * time.Hour))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
