package main

import (
	"net/http"
	"time"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/cost"
	"github.com/sells-group/geospark-cli/internal/enrich"
	"github.com/sells-group/geospark-cli/internal/generate"
	"github.com/sells-group/geospark-cli/internal/learning"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/monitoring"
	"github.com/sells-group/geospark-cli/internal/outreach"
	"github.com/sells-group/geospark-cli/internal/pipeline"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/scorer"
	"github.com/sells-group/geospark-cli/internal/scrape"
	"github.com/sells-group/geospark-cli/internal/social"
	"github.com/sells-group/geospark-cli/internal/source"
	"github.com/sells-group/geospark-cli/internal/store"
	anthropicpkg "github.com/sells-group/geospark-cli/pkg/anthropic"
	"github.com/sells-group/geospark-cli/pkg/instagram"
	"github.com/sells-group/geospark-cli/pkg/instantly"
	"github.com/sells-group/geospark-cli/pkg/outscraper"
)

const (
	fallbackInterval = time.Second
	pageTimeout      = 30 * time.Second
	maxPageBytes     = 5 << 20
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// newLearner returns an engine for mode with the configured thresholds.
func newLearner(st store.Store, mode model.LearningMode) *learning.Engine {
	return learning.New(st, learning.Options{
		Mode:               mode,
		MinSampleSize:      cfg.Pipeline.MinSampleSize,
		AutoApplyThreshold: cfg.Pipeline.AutoApplyThreshold,
	})
}

// newChecker builds the run health checker.
func newChecker(st store.Store) *monitoring.Checker {
	return monitoring.NewChecker(
		monitoring.NewCollector(monitoring.StoreRuns{Store: st}),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

// newScorer builds the scorer from the scoring section.
func newScorer() *scorer.Scorer {
	return scorer.New(scorer.FromConfig(cfg.Scoring))
}

// buildPipeline wires every collaborator of the daily run. Limiters and
// breakers are shared across channels so one run sees one rate budget per
// resource.
func buildPipeline(st store.Store) (*pipeline.Pipeline, *cost.Tracker, error) {
	limiters := resilience.NewLimiters(cfg.RateLimitIntervals(), fallbackInterval)
	breakers := resilience.NewBreakers(cfg.BreakerPolicy())
	retry := cfg.RetryPolicy()
	costs := cost.NewTracker(cost.DefaultRates())

	catalog, err := source.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, err
	}

	pages := scrape.NewFetcher(limiters, scrape.Options{
		Timeout:      pageTimeout,
		MaxBodyBytes: maxPageBytes,
	})

	maps := outscraper.NewClient(cfg.Outscraper.Key,
		outscraper.WithBaseURL(cfg.Outscraper.BaseURL),
		outscraper.WithHTTPClient(&http.Client{Timeout: seconds(cfg.Outscraper.TimeoutSecs)}),
	)
	ig := instagram.NewClient(
		instagram.WithBaseURL(cfg.Instagram.BaseURL),
		instagram.WithSessionID(cfg.Instagram.SessionID),
		instagram.WithTimeout(seconds(cfg.Instagram.TimeoutSecs)),
	)
	claude := anthropicpkg.NewClient(cfg.Anthropic.Key)

	socialSvc := social.NewService(ig, limiters, breakers, retry, social.WithMaxPosts(cfg.Instagram.MaxPosts))

	deps := pipeline.Deps{
		Store:    st,
		Settings: config.NewStoreSettings(st),

		Primary:   source.NewMaps(maps, limiters, retry).WithCosts(costs),
		Secondary: source.NewFresh(pages, catalog, breakers, retry),
		Tertiary:  source.NewEngagement(socialSvc, catalog),

		Social:      socialSvc,
		Platforms:   enrich.NewPlatforms(pages, breakers, retry),
		Emails:      enrich.NewEmailFinder(pages, retry),
		Competitors: enrich.NewCompetitors(maps, socialSvc, limiters, retry, cfg.Pipeline.MaxCompetitors),
		Scorer:      newScorer(),
		Generator: generate.New(claude, limiters, retry, generate.Options{
			Model:             cfg.Anthropic.Model,
			InsightsMaxTokens: cfg.Anthropic.InsightsMaxTokens,
			EmailsMaxTokens:   cfg.Anthropic.EmailsMaxTokens,
			SenderFirstName:   cfg.Pipeline.SenderFirstName,
			SocialProofStage:  cfg.Pipeline.SocialProofStage,
			DaySpacing:        cfg.Pipeline.SequenceDaySpacing,
			Costs:             costs,
		}),
		Learner: func(mode model.LearningMode) pipeline.Learner {
			return newLearner(st, mode)
		},
		Costs: costs,
	}

	if cfg.Instantly.Key != "" {
		client := instantly.NewClient(cfg.Instantly.Key,
			instantly.WithBaseURL(cfg.Instantly.BaseURL),
			instantly.WithHTTPClient(&http.Client{Timeout: seconds(cfg.Instantly.TimeoutSecs)}),
		)
		deps.Uploader = outreach.NewUploader(client, limiters, retry, cfg.Instantly.Timezone)
	}

	p, err := pipeline.New(deps, pipeline.OptionsFromConfig(cfg.Pipeline))
	if err != nil {
		return nil, nil, err
	}
	return p, costs, nil
}
