// Package learning tracks outreach outcomes and turns them into
// confidence-scored recommendations for pipeline parameters.
package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

// Defaults for Options.
const (
	DefaultMinSampleSize      = 50
	DefaultAutoApplyThreshold = 85
	// DefaultMargin is the reply-rate gap in percentage points between the
	// best and worst group that makes a difference material.
	DefaultMargin = 3.0
)

// ErrUnknownEvent is returned for email events other than sent, opened and
// replied.
var ErrUnknownEvent = eris.New("learning: unknown email event")

// Options configures an Engine.
type Options struct {
	Mode               model.LearningMode
	MinSampleSize      int
	AutoApplyThreshold int
	Margin             float64
}

// Engine records outcomes and produces recommendations.
type Engine struct {
	store store.Store
	opts  Options
	now   func() time.Time
}

// New creates an engine. Zero options take the package defaults and an
// invalid mode is treated as passive.
func New(st store.Store, opts Options) *Engine {
	if !opts.Mode.Valid() {
		opts.Mode = model.LearningPassive
	}
	if opts.MinSampleSize <= 0 {
		opts.MinSampleSize = DefaultMinSampleSize
	}
	if opts.AutoApplyThreshold <= 0 {
		opts.AutoApplyThreshold = DefaultAutoApplyThreshold
	}
	if opts.Margin <= 0 {
		opts.Margin = DefaultMargin
	}
	return &Engine{store: st, opts: opts, now: time.Now}
}

// Mode returns the engine's mode.
func (e *Engine) Mode() model.LearningMode { return e.opts.Mode }

// TrackEmailEvent records a sent, opened or replied event on every variant of
// one email. Sentiment is stored for replies only.
func (e *Engine) TrackEmailEvent(ctx context.Context, leadID string, emailNumber int, event, sentiment string) error {
	now := e.now().UTC()
	var patch store.Record
	switch event {
	case model.EventSent:
		patch = store.Record{"sent": true, "sent_at": now}
	case model.EventOpened:
		patch = store.Record{"opened": true, "opened_at": now}
	case model.EventReplied:
		patch = store.Record{"replied": true, "replied_at": now}
		if sentiment != "" {
			patch["reply_sentiment"] = sentiment
		}
	default:
		return eris.Wrapf(ErrUnknownEvent, "%q", event)
	}

	n, err := store.UpdateEmail(ctx, e.store, leadID, emailNumber, patch)
	if err != nil {
		return eris.Wrapf(err, "learning: track %s", event)
	}
	if n == 0 {
		return eris.Wrapf(store.ErrNotFound, "email %d of lead %s", emailNumber, leadID)
	}
	zap.L().Debug("learning: tracked email event",
		zap.String("lead_id", leadID), zap.Int("email_number", emailNumber), zap.String("event", event))
	return nil
}

// TrackConversion sets a lead's status to the conversion type and completes
// its pipeline.
func (e *Engine) TrackConversion(ctx context.Context, leadID, conversionType string) error {
	p, err := store.GetProspect(ctx, e.store, leadID)
	if err != nil {
		return eris.Wrap(err, "learning: track conversion")
	}
	patch := store.Record{"status": conversionType}
	if model.CanAdvance(p.PipelineStatus, model.PipelineCompleted) {
		patch["pipeline_status"] = string(model.PipelineCompleted)
	}
	if err := store.UpdateProspect(ctx, e.store, leadID, patch); err != nil {
		return eris.Wrap(err, "learning: track conversion")
	}
	zap.L().Info("learning: tracked conversion", zap.String("lead_id", leadID), zap.String("type", conversionType))
	return nil
}

// Performance analyzes every sent email.
func (e *Engine) Performance(ctx context.Context) (*model.Performance, error) {
	emails, err := store.ListSentEmails(ctx, e.store)
	if err != nil {
		return nil, eris.Wrap(err, "learning: performance")
	}
	return Analyze(emails), nil
}

// Recommend computes recommendations from current performance without
// storing them. It returns nothing below the minimum sample size.
func (e *Engine) Recommend(ctx context.Context) ([]model.Recommendation, error) {
	perf, err := e.Performance(ctx)
	if err != nil {
		return nil, err
	}
	if perf.TotalSent < e.opts.MinSampleSize {
		zap.L().Info("learning: insufficient data",
			zap.Int("sent", perf.TotalSent), zap.Int("required", e.opts.MinSampleSize))
		return nil, nil
	}
	return Recommend(perf, e.opts.Margin), nil
}

// Run is the learning step of a daily run. Passive mode only analyzes.
// Active mode stores recommendations. Autonomous mode also applies those at
// or above the auto-apply threshold.
func (e *Engine) Run(ctx context.Context) ([]model.Recommendation, error) {
	log := zap.L().With(zap.String("mode", string(e.opts.Mode)))
	if e.opts.Mode == model.LearningPassive {
		perf, err := e.Performance(ctx)
		if err != nil {
			return nil, err
		}
		log.Info("learning: collected", zap.Int("sent", perf.TotalSent), zap.Float64("reply_rate", perf.ReplyRate))
		return nil, nil
	}

	recs, err := e.Recommend(ctx)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		rec := &recs[i]
		if _, err := store.SaveRecommendation(ctx, e.store, rec); err != nil {
			return recs, eris.Wrap(err, "learning: save recommendation")
		}
		if e.opts.Mode != model.LearningAutonomous || rec.Confidence < e.opts.AutoApplyThreshold {
			continue
		}
		at := e.now().UTC()
		if _, err := store.ApplyRecommendations(ctx, e.store, rec.ParameterName, at); err != nil {
			return recs, eris.Wrap(err, "learning: apply recommendation")
		}
		rec.Status = model.LearningApplied
		rec.AppliedAt = &at
		log.Info("learning: auto-applied",
			zap.String("parameter", rec.ParameterName),
			zap.Int("confidence", rec.Confidence),
			zap.String("description", rec.Description),
		)
	}
	log.Info("learning: generated recommendations", zap.Int("count", len(recs)))
	return recs, nil
}

// Sources returns outcome statistics per acquisition channel.
func (e *Engine) Sources(ctx context.Context) (map[string]*model.SourceStats, error) {
	leads, err := store.ListProspects(ctx, e.store, store.Filter{})
	if err != nil {
		return nil, eris.Wrap(err, "learning: source performance")
	}
	return AnalyzeSources(leads), nil
}

func describeGap(dimension, best string, bestRate float64, worst string, worstRate float64) string {
	return fmt.Sprintf("%s %q gets %.1f%% replies vs %q at %.1f%%", dimension, best, bestRate, worst, worstRate)
}
