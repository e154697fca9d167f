// Package pipeline runs the daily prospecting workflow: acquisition,
// enrichment, scoring, insights, emails, upload and learning.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/source"
	"github.com/sells-group/geospark-cli/internal/store"
)

// Mode selects a partial or simulated run.
type Mode struct {
	// DryRun logs what the run would do and writes nothing.
	DryRun bool
	// ScrapeOnly stops after acquisition.
	ScrapeOnly bool
}

// Pipeline orchestrates one daily run over its collaborators.
type Pipeline struct {
	deps Deps
	opts Options
}

// New creates a pipeline. Deps.Store, Deps.Settings and Deps.Primary are
// required; any other nil collaborator skips the work it does.
func New(deps Deps, opts Options) (*Pipeline, error) {
	if deps.Store == nil || deps.Settings == nil || deps.Primary == nil {
		return nil, eris.New("pipeline: store, settings and primary source are required")
	}
	return &Pipeline{deps: deps, opts: opts.withDefaults()}, nil
}

// snapshot fetches remote settings and layers them with the overrides over
// base. A failed fetch keeps the static values.
func (p *Pipeline) snapshot(ctx context.Context, base config.Snapshot, o config.Overrides) config.Snapshot {
	set, err := p.deps.Settings.Fetch(ctx)
	if err != nil {
		zap.L().Warn("pipeline: settings unavailable, using static config", zap.Error(err))
		return base.Override(o)
	}
	return base.Apply(set).Override(o)
}

// enabled re-reads the kill switch.
func (p *Pipeline) enabled(ctx context.Context) bool {
	set, err := p.deps.Settings.Fetch(ctx)
	if err != nil {
		zap.L().Warn("pipeline: kill switch check failed", zap.Error(err))
		return true
	}
	return set.PipelineEnabled == nil || *set.PipelineEnabled
}

// Run executes one daily run. A disabled pipeline or a dry run returns a run
// that was never persisted. The run is finalized as completed when no step
// recorded an error and partial otherwise; the returned error is reserved
// for failures to record the run itself.
func (p *Pipeline) Run(ctx context.Context, base config.Snapshot, o config.Overrides, mode Mode) (*model.PipelineRun, error) {
	snap := p.snapshot(ctx, base, o)
	if !snap.Enabled {
		zap.L().Info("pipeline: disabled by kill switch")
		return &model.PipelineRun{Status: model.RunStatusDisabled, ConfigSnapshot: snap.Map()}, nil
	}
	if mode.DryRun {
		logPlan(snap, mode, p.channels())
		return &model.PipelineRun{Status: model.RunStatusDryRun, ConfigSnapshot: snap.Map()}, nil
	}

	run, err := store.CreateRun(ctx, p.deps.Store, snap.Map())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create run")
	}
	log := zap.L().With(zap.String("run_id", run.ID))
	log.Info("pipeline: starting run",
		zap.String("city", snap.City),
		zap.String("category", snap.Category),
		zap.Int("daily_target", snap.DailyTarget),
	)
	start := p.opts.Now()
	p.deps.Costs.Reset()

	track := func(name string, fn func(ctx context.Context) (int, error)) int {
		stepStart := time.Now()
		count, fnErr := fn(ctx)
		duration := time.Since(stepStart).Milliseconds()

		res := model.StepResult{Name: name, Count: count, Duration: duration, Status: model.StepStatusComplete}
		if fnErr != nil {
			res.Status = model.StepStatusFailed
			res.Error = fnErr.Error()
			run.Errors = append(run.Errors, model.RunError{
				Step:  name,
				Kind:  string(resilience.Classify(fnErr)),
				Error: fnErr.Error(),
			})
			log.Error("pipeline: step failed",
				zap.String("step", name),
				zap.Int("count", count),
				zap.Int64("duration_ms", duration),
				zap.Error(fnErr),
			)
		} else {
			log.Info("pipeline: step complete",
				zap.String("step", name),
				zap.Int("count", count),
				zap.Int64("duration_ms", duration),
			)
		}
		run.Steps = append(run.Steps, res)
		return count
	}
	skip := func(name, reason string) {
		run.Steps = append(run.Steps, model.StepResult{Name: name, Status: model.StepStatusSkipped,
			Metadata: map[string]any{"reason": reason}})
		log.Info("pipeline: step skipped", zap.String("step", name), zap.String("reason", reason))
	}

	run.Scraped = track(model.StepScraping, func(ctx context.Context) (int, error) {
		return p.acquire(ctx, snap)
	})

	if mode.ScrapeOnly {
		for _, name := range []string{model.StepEnrichment, model.StepScoring, model.StepInsights, model.StepEmails, model.StepUpload, model.StepLearning} {
			skip(name, "scrape only")
		}
	} else {
		halted := false
		checkpoint := func(name string) bool {
			if halted {
				skip(name, "pipeline disabled")
				return false
			}
			if !p.enabled(ctx) {
				halted = true
				run.Errors = append(run.Errors, model.RunError{
					Step:  name,
					Kind:  "disabled",
					Error: config.ErrPipelineDisabled.Error(),
				})
				skip(name, "pipeline disabled")
				return false
			}
			return true
		}

		if checkpoint(model.StepEnrichment) {
			run.Enriched = track(model.StepEnrichment, func(ctx context.Context) (int, error) {
				return p.enrichPending(ctx, snap.DailyTarget)
			})
		}
		if checkpoint(model.StepScoring) {
			run.Scored = track(model.StepScoring, p.scoreEnriched)
		}
		if checkpoint(model.StepInsights) {
			run.InsightsGenerated = track(model.StepInsights, p.generateInsights)
		}
		if checkpoint(model.StepEmails) {
			run.EmailsGenerated = track(model.StepEmails, p.generateEmails)
		}
		if checkpoint(model.StepUpload) {
			if !snap.UploadEnabled || p.deps.Uploader == nil {
				skip(model.StepUpload, "upload disabled")
			} else {
				run.Uploaded = track(model.StepUpload, func(ctx context.Context) (int, error) {
					res, err := p.deps.Uploader.Upload(ctx, p.deps.Store, snap.Category, snap.City)
					return res.Uploaded, err
				})
			}
		}

		track(model.StepLearning, func(ctx context.Context) (int, error) {
			if p.deps.Learner == nil {
				return 0, nil
			}
			recs, err := p.deps.Learner(snap.LearningMode).Run(ctx)
			return len(recs), err
		})
	}

	run.Status = model.FinalStatus(run.Errors)
	run.DurationSeconds = int(p.opts.Now().Sub(start).Seconds())
	if err := store.FinishRun(ctx, p.deps.Store, run); err != nil {
		return run, eris.Wrap(err, "pipeline: finish run")
	}

	log.Info("pipeline: run complete",
		zap.String("status", string(run.Status)),
		zap.Int("scraped", run.Scraped),
		zap.Int("enriched", run.Enriched),
		zap.Int("scored", run.Scored),
		zap.Int("insights", run.InsightsGenerated),
		zap.Int("emails", run.EmailsGenerated),
		zap.Int("uploaded", run.Uploaded),
		zap.Int("errors", len(run.Errors)),
		zap.Int("duration_secs", run.DurationSeconds),
		zap.Float64("cost_usd", p.deps.Costs.Total()),
	)
	return run, nil
}

// DryRun logs what a run over snap would do and returns the run without
// touching the store, the remote settings or any external API.
func DryRun(snap config.Snapshot, mode Mode) *model.PipelineRun {
	logPlan(snap, mode, []string{
		string(model.SourceOutscraper),
		string(model.SourceFresh),
		string(model.SourceEngagement),
	})
	return &model.PipelineRun{Status: model.RunStatusDryRun, ConfigSnapshot: snap.Map()}
}

func (p *Pipeline) channels() []string {
	channels := []string{string(p.deps.Primary.Name())}
	for _, src := range []source.Source{p.deps.Secondary, p.deps.Tertiary} {
		if src != nil {
			channels = append(channels, string(src.Name()))
		}
	}
	return channels
}

func logPlan(snap config.Snapshot, mode Mode, channels []string) {
	zap.L().Info("pipeline: dry run",
		zap.String("city", snap.City),
		zap.String("category", snap.Category),
		zap.Int("daily_target", snap.DailyTarget),
		zap.Strings("channels", channels),
		zap.Bool("scrape_only", mode.ScrapeOnly),
		zap.Bool("upload_enabled", snap.UploadEnabled),
		zap.String("learning_mode", string(snap.LearningMode)),
	)
}
