package pipeline

import (
	"context"
	"time"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/cost"
	"github.com/sells-group/geospark-cli/internal/enrich"
	"github.com/sells-group/geospark-cli/internal/generate"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/outreach"
	"github.com/sells-group/geospark-cli/internal/scorer"
	"github.com/sells-group/geospark-cli/internal/source"
	"github.com/sells-group/geospark-cli/internal/store"
)

// SocialFetcher fetches an analyzed Instagram profile, or nil when the
// account does not exist.
type SocialFetcher interface {
	Fetch(ctx context.Context, handle string) (*model.SocialProfile, error)
}

// PlatformEnricher analyzes the review-site page and website of a prospect.
type PlatformEnricher interface {
	Enrich(ctx context.Context, st store.Store, p *model.Prospect) (enrich.PlatformResult, error)
}

// EmailFinder runs the email waterfall.
type EmailFinder interface {
	Find(ctx context.Context, p *model.Prospect, profile *model.SocialProfile) *enrich.EmailResult
}

// CompetitorAnalyzer compares a prospect with nearby businesses.
type CompetitorAnalyzer interface {
	Analyze(ctx context.Context, p *model.Prospect, own *model.SocialProfile) ([]model.Competitor, error)
}

// Generator writes insights and email sequences.
type Generator interface {
	Insights(ctx context.Context, in generate.Input) ([]model.Insight, error)
	Emails(ctx context.Context, in generate.Input) ([]model.EmailSequenceEntry, error)
}

// Uploader sends ready prospects to the outreach tool.
type Uploader interface {
	Upload(ctx context.Context, st store.Store, category, city string) (outreach.Result, error)
}

// Learner is the learning step.
type Learner interface {
	Run(ctx context.Context) ([]model.Recommendation, error)
}

// Deps are the collaborators of a run.
type Deps struct {
	Store    store.Store
	Settings config.SettingsSource

	// Acquisition channels in spillover order.
	Primary   source.Source
	Secondary source.Source
	Tertiary  source.Source

	Social      SocialFetcher
	Platforms   PlatformEnricher
	Emails      EmailFinder
	Competitors CompetitorAnalyzer
	Scorer      *scorer.Scorer
	Generator   Generator
	Uploader    Uploader
	// Learner builds the learning step for the run's learning mode.
	Learner func(mode model.LearningMode) Learner
	// Costs is reset at the start of each run and reported at its end.
	Costs *cost.Tracker
}

// Options tune step batch sizes and pacing.
type Options struct {
	ScoreBatch    int
	InsightsBatch int
	EmailsBatch   int
	// GenerateDelay is the pause between prospects in the insight and email
	// steps, on top of the model's rate limiter.
	GenerateDelay time.Duration

	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// OptionsFromConfig maps the pipeline section of the config.
func OptionsFromConfig(c config.PipelineConfig) Options {
	return Options{
		ScoreBatch:    c.ScoreBatch,
		InsightsBatch: c.InsightsBatch,
		EmailsBatch:   c.EmailsBatch,
		GenerateDelay: time.Duration(c.InsightsDelaySecs * float64(time.Second)),
	}
}

func (o Options) withDefaults() Options {
	if o.ScoreBatch <= 0 {
		o.ScoreBatch = 500
	}
	if o.InsightsBatch <= 0 || o.InsightsBatch > 50 {
		o.InsightsBatch = 50
	}
	if o.EmailsBatch <= 0 {
		o.EmailsBatch = 50
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
