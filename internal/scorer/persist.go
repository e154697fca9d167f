package scorer

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

// Save writes a score onto the prospect row. The pipeline status is moved to
// scored only when that is a forward move, so rescoring a prospect that has
// progressed further never rewinds it.
func Save(ctx context.Context, s store.Store, p *model.Prospect, r Result) error {
	patch := store.Record{
		"geospark_score":  r.Score,
		"score_tier":      string(r.Tier),
		"score_breakdown": r.BreakdownMap(),
		"problem_score":   r.ProblemScore,
		"readiness_score": r.ReadinessScore,
	}
	if model.CanAdvance(p.PipelineStatus, model.PipelineScored) {
		patch["pipeline_status"] = string(model.PipelineScored)
	}
	if err := store.UpdateProspect(ctx, s, p.ID, patch); err != nil {
		return eris.Wrapf(err, "scorer: save score for %s", p.ID)
	}

	p.GeosparkScore = r.Score
	p.ScoreTier = r.Tier
	p.ScoreBreakdown = r.BreakdownMap()
	p.ProblemScore = r.ProblemScore
	p.ReadinessScore = r.ReadinessScore
	if _, ok := patch["pipeline_status"]; ok {
		p.PipelineStatus = model.PipelineScored
	}

	zap.L().Debug("scorer: saved score",
		zap.String("lead_id", p.ID),
		zap.Int("score", r.Score),
		zap.String("tier", string(r.Tier)),
	)
	return nil
}

// ScoreAndSave scores a prospect with its stored Instagram profile and
// persists the result.
func (s *Scorer) ScoreAndSave(ctx context.Context, st store.Store, p *model.Prospect) (Result, error) {
	social, err := store.GetSocialProfile(ctx, st, p.ID, model.PlatformInstagram)
	if err != nil {
		return Result{}, eris.Wrapf(err, "scorer: load social for %s", p.ID)
	}
	r := s.Score(p, social)
	if err := Save(ctx, st, p, r); err != nil {
		return r, err
	}
	return r, nil
}
