package pipeline

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/generate"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

// scoreEnriched scores every enriched prospect up to the score batch.
func (p *Pipeline) scoreEnriched(ctx context.Context) (int, error) {
	if p.deps.Scorer == nil {
		return 0, nil
	}
	leads, err := store.ListProspects(ctx, p.deps.Store, store.Filter{
		Where: sq.Eq{"pipeline_status": string(model.PipelineEnriched)},
		Limit: uint64(p.opts.ScoreBatch),
	})
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: select enriched prospects")
	}

	scored := 0
	for i := range leads {
		if err := ctx.Err(); err != nil {
			return scored, err
		}
		if _, err := p.deps.Scorer.ScoreAndSave(ctx, p.deps.Store, &leads[i]); err != nil {
			zap.L().Error("pipeline: scoring failed", zap.String("lead_id", leads[i].ID), zap.Error(err))
			continue
		}
		scored++
	}
	return scored, nil
}

// input loads what the generators know about a prospect.
func (p *Pipeline) input(ctx context.Context, lead *model.Prospect, withInsights bool) (generate.Input, error) {
	in := generate.Input{Prospect: lead}
	var err error
	if in.Social, err = store.GetSocialProfile(ctx, p.deps.Store, lead.ID, model.PlatformInstagram); err != nil {
		return in, err
	}
	if in.Competitors, err = store.ListCompetitors(ctx, p.deps.Store, lead.ID); err != nil {
		return in, err
	}
	if withInsights {
		if in.Insights, err = store.ListInsights(ctx, p.deps.Store, lead.ID); err != nil {
			return in, err
		}
	}
	return in, nil
}

// pace waits the generate delay before every prospect but the first.
func (p *Pipeline) pace(ctx context.Context, i int) error {
	if i == 0 {
		return nil
	}
	return p.opts.Sleep(ctx, p.opts.GenerateDelay)
}

// advance moves a prospect forward to status when that is a forward move.
func (p *Pipeline) advance(ctx context.Context, lead *model.Prospect, status model.PipelineStatus) error {
	if !model.CanAdvance(lead.PipelineStatus, status) {
		return nil
	}
	if err := store.UpdateProspect(ctx, p.deps.Store, lead.ID, store.Record{"pipeline_status": string(status)}); err != nil {
		return err
	}
	lead.PipelineStatus = status
	return nil
}

// generateInsights writes insights for scored prospects in the outreach
// tiers.
func (p *Pipeline) generateInsights(ctx context.Context) (int, error) {
	if p.deps.Generator == nil {
		return 0, nil
	}
	tiers := make([]string, 0, 3)
	for _, t := range model.OutreachTiers() {
		tiers = append(tiers, string(t))
	}
	leads, err := store.ListProspects(ctx, p.deps.Store, store.Filter{
		Where: sq.Eq{
			"pipeline_status": string(model.PipelineScored),
			"score_tier":      tiers,
		},
		OrderBy: []string{"geospark_score DESC"},
		Limit:   uint64(p.opts.InsightsBatch),
	})
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: select scored prospects")
	}

	count := 0
	for i := range leads {
		if err := p.pace(ctx, i); err != nil {
			return count, err
		}
		lead := &leads[i]
		log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("business", lead.BusinessName))

		in, err := p.input(ctx, lead, false)
		if err != nil {
			log.Error("pipeline: load generator input failed", zap.Error(err))
			continue
		}
		insights, err := p.deps.Generator.Insights(ctx, in)
		if err != nil {
			log.Error("pipeline: insight generation failed", zap.Error(err))
			continue
		}
		if len(insights) == 0 {
			log.Warn("pipeline: no usable insights")
			continue
		}
		if _, err := store.InsertInsights(ctx, p.deps.Store, lead.ID, insights); err != nil {
			log.Error("pipeline: save insights failed", zap.Error(err))
			continue
		}
		if err := p.advance(ctx, lead, model.PipelineInsightsGenerated); err != nil {
			log.Error("pipeline: advance prospect failed", zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}

// generateEmails writes sequences for prospects with insights and an email
// address, using the contact email or, failing that, the owner email.
func (p *Pipeline) generateEmails(ctx context.Context) (int, error) {
	if p.deps.Generator == nil {
		return 0, nil
	}
	leads, err := store.ListProspects(ctx, p.deps.Store, store.Filter{
		Where: sq.And{
			sq.Eq{"pipeline_status": string(model.PipelineInsightsGenerated)},
			sq.Or{
				sq.NotEq{"contact_email": nil},
				sq.NotEq{"owner_email": nil},
			},
		},
		OrderBy: []string{"geospark_score DESC"},
		Limit:   uint64(p.opts.EmailsBatch),
	})
	if err != nil {
		return 0, eris.Wrap(err, "pipeline: select prospects with insights")
	}

	count := 0
	for i := range leads {
		if err := p.pace(ctx, i); err != nil {
			return count, err
		}
		lead := &leads[i]
		log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("business", lead.BusinessName))
		if lead.Email() == "" {
			continue
		}

		in, err := p.input(ctx, lead, true)
		if err != nil {
			log.Error("pipeline: load generator input failed", zap.Error(err))
			continue
		}
		emails, err := p.deps.Generator.Emails(ctx, in)
		if err != nil {
			log.Error("pipeline: email generation failed", zap.Error(err))
			continue
		}
		if len(emails) == 0 {
			log.Warn("pipeline: no usable emails")
			continue
		}
		if _, err := store.SaveEmailSequence(ctx, p.deps.Store, lead.ID, emails); err != nil {
			log.Error("pipeline: save emails failed", zap.Error(err))
			continue
		}
		if err := p.advance(ctx, lead, model.PipelineEmailsGenerated); err != nil {
			log.Error("pipeline: advance prospect failed", zap.Error(err))
			continue
		}
		count++
	}
	return count, nil
}
