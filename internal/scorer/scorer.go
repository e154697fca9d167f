package scorer

import (
	"github.com/sells-group/geospark-cli/internal/model"
)

// Result is the outcome of scoring one prospect.
type Result struct {
	Score          int               `json:"score"`
	Tier           model.Tier        `json:"tier"`
	Breakdown      map[string]Signal `json:"breakdown"`
	ProblemScore   int               `json:"problem_score"`
	ReadinessScore int               `json:"readiness_score"`
}

// BreakdownMap returns the breakdown in the shape stored on the prospect row.
func (r Result) BreakdownMap() map[string]any {
	out := make(map[string]any, len(r.Breakdown))
	for k, s := range r.Breakdown {
		out[k] = map[string]any{"points": s.Points, "reason": s.Reason}
	}
	return out
}

// Scorer computes prospect scores. It holds no state beyond its config and is
// safe for concurrent use.
type Scorer struct {
	cfg Config
}

// New creates a Scorer.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Score computes the score, tier and breakdown of p. social is the prospect's
// Instagram profile and may be nil; missing data falls back to the configured
// defaults and never fails.
func (s *Scorer) Score(p *model.Prospect, social *model.SocialProfile) Result {
	d := s.cfg.Defaults
	bd := map[string]Signal{
		KeyInconsistentPosting: postingConsistency(social, d),
		KeyLowEngagement:       engagement(social, d),
		KeyReviewSocialGap:     reviewSocialGap(p, social),
		KeyPartialPlatform:     platformPresence(p),
		KeyGenericContent:      contentQuality(social, d),

		KeyUsingTools:        toolUsage(social),
		KeyReviewQuality:     reviewQuality(p),
		KeyFollowerRange:     followerRange(social, d),
		KeyContentQualityGap: contentVariance(social),
		KeyEmailConfidence:   emailConfidence(p),
	}

	problem := sumKeys(bd, ProblemKeys)
	readiness := sumKeys(bd, ReadinessKeys)
	total := problem + readiness

	if p.ProspectSource == model.SourceEngagement {
		bd[KeyEngagementBonus] = Signal{
			Points: engagementBump,
			Reason: "Engagement source: proved interest in marketing content",
		}
		total += engagementBump
	}
	total = clamp(total, 0, 100)

	return Result{
		Score:          total,
		Tier:           s.Tier(total),
		Breakdown:      bd,
		ProblemScore:   problem,
		ReadinessScore: readiness,
	}
}

// Tier maps a score onto the descending cut-point ladder. A score equal to a
// cut point gets the higher tier.
func (s *Scorer) Tier(score int) model.Tier {
	switch {
	case score >= s.cfg.Tier1Min:
		return model.Tier1
	case score >= s.cfg.Tier2Min:
		return model.Tier2
	case score >= s.cfg.Tier3Min:
		return model.Tier3
	case score >= s.cfg.Tier4Min:
		return model.Tier4
	default:
		return model.Tier5
	}
}

func sumKeys(bd map[string]Signal, keys []string) int {
	total := 0
	for _, k := range keys {
		total += bd[k].Points
	}
	return clamp(total, 0, maxGroup)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
