// Package generate writes marketing insights and cold email sequences for a
// prospect with a language model.
package generate

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/cost"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/pkg/anthropic"
)

// DefaultDaySpacing is the send delay of each email in a sequence.
var DefaultDaySpacing = []int{0, 3, 7, 12}

// Input is everything known about a prospect when generating.
type Input struct {
	Prospect    *model.Prospect
	Social      *model.SocialProfile
	Competitors []model.Competitor
	Insights    []model.Insight
}

// Options configures a Generator.
type Options struct {
	Model             string
	InsightsMaxTokens int
	EmailsMaxTokens   int
	SenderFirstName   string
	SocialProofStage  int
	DaySpacing        []int
	// CacheTTL is the prompt-cache lifetime of the system prompts.
	CacheTTL string
	// Costs records token spend when set.
	Costs *cost.Tracker
}

// Generator calls the model through the run's Claude limiter.
type Generator struct {
	client  anthropic.Client
	limiter *resilience.Limiter
	retry   resilience.RetryConfig
	opts    Options
}

// New creates a generator.
func New(client anthropic.Client, limiters *resilience.Limiters, retry resilience.RetryConfig, opts Options) *Generator {
	if len(opts.DaySpacing) != model.SequenceLength {
		opts.DaySpacing = DefaultDaySpacing
	}
	if opts.CacheTTL == "" {
		opts.CacheTTL = "1h"
	}
	if opts.InsightsMaxTokens <= 0 {
		opts.InsightsMaxTokens = 2000
	}
	if opts.EmailsMaxTokens <= 0 {
		opts.EmailsMaxTokens = 3000
	}
	return &Generator{
		client:  client,
		limiter: limiters.Get(resilience.ResourceClaude),
		retry:   retry,
		opts:    opts,
	}
}

func (g *Generator) complete(ctx context.Context, phase, system, prompt string, maxTokens int) (string, error) {
	retry := g.retry
	retry.OnRetry = resilience.RetryLogger("anthropic", phase)
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.CallVal(ctx, g.limiter, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			return g.client.CreateMessage(ctx, anthropic.MessageRequest{
				Model:     g.opts.Model,
				MaxTokens: int64(maxTokens),
				System:    anthropic.BuildCachedSystemBlocks(system, g.opts.CacheTTL),
				Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
			})
		})
	})
	if err != nil {
		return "", eris.Wrapf(err, "generate: %s", phase)
	}
	resp.Usage.LogCost(g.opts.Model, phase)
	g.opts.Costs.Claude(g.opts.Model, resp.Usage)
	return resp.Text(), nil
}

type rawInsight struct {
	InsightType    string         `json:"insight_type"`
	Title          string         `json:"insight_title"`
	Description    string         `json:"insight_description"`
	PriorityScore  float64        `json:"priority_score"`
	SupportingData map[string]any `json:"supporting_data"`
}

// Insights generates insights for a prospect. Malformed items are dropped;
// a response that is not a JSON array is a parse error.
func (g *Generator) Insights(ctx context.Context, in Input) ([]model.Insight, error) {
	text, err := g.complete(ctx, "insights", insightsSystemPrompt, InsightsPrompt(in), g.opts.InsightsMaxTokens)
	if err != nil {
		return nil, err
	}
	return ParseInsights(text)
}

// ParseInsights decodes and validates a model response into insights with
// priorities clamped to 1-10.
func ParseInsights(text string) ([]model.Insight, error) {
	items, err := parseItems("insights", text, insightValidator)
	if err != nil {
		return nil, err
	}
	out := make([]model.Insight, 0, len(items))
	for _, item := range items {
		var r rawInsight
		if err := json.Unmarshal(item, &r); err != nil {
			continue
		}
		out = append(out, model.Insight{
			InsightType:    model.InsightType(strings.TrimSpace(r.InsightType)),
			Title:          strings.TrimSpace(r.Title),
			Description:    strings.TrimSpace(r.Description),
			PriorityScore:  clampPriority(r.PriorityScore),
			SupportingData: r.SupportingData,
		})
	}
	return out, nil
}

type rawEmail struct {
	EmailNumber        int      `json:"email_number"`
	SendDelayDays      *int     `json:"send_delay_days"`
	SubjectLine        string   `json:"subject_line"`
	Body               string   `json:"body"`
	InsightTypeUsed    string   `json:"insight_type_used"`
	SubjectPatternUsed string   `json:"subject_pattern_used"`
	CTAStyleUsed       string   `json:"cta_style_used"`
	DataPointsUsed     []string `json:"data_points_used"`
	DataPointsCount    int      `json:"data_points_count"`
	WordCount          int      `json:"word_count"`
	PersonalizationPct *float64 `json:"personalization_pct"`
}

// Emails generates the email sequence for a prospect.
func (g *Generator) Emails(ctx context.Context, in Input) ([]model.EmailSequenceEntry, error) {
	system := EmailSystemPrompt(g.opts.SenderFirstName, g.opts.SocialProofStage)
	text, err := g.complete(ctx, "emails", system, EmailsPrompt(in, g.opts.SenderFirstName), g.opts.EmailsMaxTokens)
	if err != nil {
		return nil, err
	}
	return ParseEmails(text, g.opts.DaySpacing)
}

// ParseEmails decodes and validates a model response into variant "a" of a
// sequence. Missing send delays come from spacing and missing word counts
// are counted from the body. Duplicate email numbers keep the first.
func ParseEmails(text string, spacing []int) ([]model.EmailSequenceEntry, error) {
	items, err := parseItems("emails", text, emailValidator)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	out := make([]model.EmailSequenceEntry, 0, len(items))
	for _, item := range items {
		var r rawEmail
		if err := json.Unmarshal(item, &r); err != nil || seen[r.EmailNumber] {
			continue
		}
		seen[r.EmailNumber] = true

		e := model.EmailSequenceEntry{
			EmailNumber:        r.EmailNumber,
			ABVariant:          model.DefaultVariant,
			SubjectLine:        strings.TrimSpace(r.SubjectLine),
			Body:               strings.TrimSpace(r.Body),
			PersonalizationPct: r.PersonalizationPct,
			DataPointsUsed:     r.DataPointsUsed,
			DataPointsCount:    r.DataPointsCount,
			WordCount:          r.WordCount,
			InsightTypeUsed:    r.InsightTypeUsed,
			SubjectPatternUsed: r.SubjectPatternUsed,
			CTAStyleUsed:       r.CTAStyleUsed,
		}
		if r.SendDelayDays != nil {
			e.SendDelayDays = *r.SendDelayDays
		} else if r.EmailNumber-1 < len(spacing) {
			e.SendDelayDays = spacing[r.EmailNumber-1]
		}
		if e.WordCount <= 0 {
			e.WordCount = len(strings.Fields(e.Body))
		}
		if e.DataPointsCount == 0 {
			e.DataPointsCount = len(e.DataPointsUsed)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmailNumber < out[j].EmailNumber })
	if len(out) < model.SequenceLength {
		zap.L().Warn("generate: incomplete sequence", zap.Int("emails", len(out)))
	}
	return out, nil
}
