package pipeline

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/enrich"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/social"
	"github.com/sells-group/geospark-cli/internal/store"
)

// enrichPending enriches up to limit scraped prospects one at a time. A
// prospect that fails is marked failed and the batch continues.
func (p *Pipeline) enrichPending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	leads, err := store.ListProspects(ctx, p.deps.Store, store.Filter{
		Where: sq.Eq{
			"enrichment_status": string(model.EnrichmentPending),
			"pipeline_status":   string(model.PipelineScraped),
		},
		OrderBy: []string{"created_at ASC"},
		Limit:   uint64(limit),
	})
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: select pending prospects")
	}

	enriched := 0
	for i := range leads {
		if err := ctx.Err(); err != nil {
			return enriched, err
		}
		lead := &leads[i]
		log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("business", lead.BusinessName))

		if err := p.enrichOne(ctx, lead); err != nil {
			log.Error("pipeline: enrichment failed", zap.Error(err))
			if markErr := store.UpdateProspect(ctx, p.deps.Store, lead.ID, store.Record{
				"enrichment_status": string(model.EnrichmentFailed),
			}); markErr != nil {
				log.Warn("pipeline: mark enrichment failed", zap.Error(markErr))
			}
			continue
		}
		enriched++
		log.Info("pipeline: enriched prospect")
	}
	return enriched, nil
}

func (p *Pipeline) enrichOne(ctx context.Context, lead *model.Prospect) error {
	st := p.deps.Store
	if err := store.UpdateProspect(ctx, st, lead.ID, store.Record{
		"enrichment_status": string(model.EnrichmentInProgress),
	}); err != nil {
		return err
	}

	handle := normalize.InstagramUsername(lead.InstagramURL)
	profile, err := p.fetchSocial(ctx, lead.ID, handle)
	if err != nil {
		return err
	}

	if p.deps.Platforms != nil {
		if _, err := p.deps.Platforms.Enrich(ctx, st, lead); err != nil {
			return err
		}
	}
	// The website can reveal an Instagram account the listing did not have.
	if handle == "" {
		if handle = normalize.InstagramUsername(lead.InstagramURL); handle != "" {
			if profile, err = p.fetchSocial(ctx, lead.ID, handle); err != nil {
				return err
			}
		}
	}

	if lead.Email() == "" && p.deps.Emails != nil {
		if err := enrich.SaveEmail(ctx, st, lead, p.deps.Emails.Find(ctx, lead, profile)); err != nil {
			return err
		}
	}

	if handle != "" && p.deps.Competitors != nil {
		comps, err := p.deps.Competitors.Analyze(ctx, lead, profile)
		if err != nil {
			zap.L().Warn("pipeline: competitor analysis failed", zap.String("lead_id", lead.ID), zap.Error(err))
		} else if _, err := store.InsertCompetitors(ctx, st, lead.ID, comps); err != nil {
			return err
		}
	}

	now := p.opts.Now().UTC()
	return store.UpdateProspect(ctx, st, lead.ID, store.Record{
		"enrichment_status": string(model.EnrichmentCompleted),
		"pipeline_status":   string(model.PipelineEnriched),
		"last_enriched_at":  now,
	})
}

// fetchSocial fetches and stores the Instagram profile for handle. A
// disabled or rate-limited channel is not a prospect failure.
func (p *Pipeline) fetchSocial(ctx context.Context, leadID, handle string) (*model.SocialProfile, error) {
	if handle == "" || p.deps.Social == nil {
		return nil, nil
	}
	profile, err := p.deps.Social.Fetch(ctx, handle)
	if err != nil {
		if errors.Is(err, resilience.ErrChannelDisabled) || resilience.IsRateLimited(err) {
			zap.L().Warn("pipeline: instagram unavailable", zap.String("lead_id", leadID), zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	if profile == nil {
		return nil, nil
	}
	if _, err := social.Save(ctx, p.deps.Store, leadID, profile); err != nil {
		return nil, err
	}
	return profile, nil
}
