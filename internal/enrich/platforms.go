package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/internal/scrape"
	"github.com/sells-group/geospark-cli/internal/social"
	"github.com/sells-group/geospark-cli/internal/store"
)

// EmailSourceWebsite marks an email read off the business website.
const EmailSourceWebsite = "website"

// Platforms enriches a prospect from its Yelp listing and website.
type Platforms struct {
	pages Pages
	yelp  *resilience.Breaker
	retry resilience.RetryConfig
	now   func() time.Time
}

// NewPlatforms creates the secondary-platform enricher. Yelp calls go through
// the run's yelp breaker; website calls are retried only.
func NewPlatforms(pages Pages, breakers *resilience.Breakers, retry resilience.RetryConfig) *Platforms {
	return &Platforms{
		pages: pages,
		yelp:  breakers.Get(resilience.ResourceYelp),
		retry: retry,
		now:   time.Now,
	}
}

// PlatformResult holds what was found on each platform; nil means nothing
// was found or the platform was unavailable.
type PlatformResult struct {
	Yelp    *model.SocialProfile
	Website *WebsiteAnalysis
}

// Enrich scrapes the prospect's Yelp page and website and stores the
// results. Scrape failures are logged and skipped; only store errors are
// returned. p is updated in place.
func (e *Platforms) Enrich(ctx context.Context, st store.Store, p *model.Prospect) (PlatformResult, error) {
	var res PlatformResult
	log := zap.L().With(zap.String("lead_id", p.ID), zap.String("business", p.BusinessName))

	if p.YelpURL != "" {
		page, err := e.fetchYelp(ctx, p.YelpURL)
		switch {
		case err != nil:
			log.Warn("enrich: yelp scrape failed", zap.Error(err), zap.String("kind", string(resilience.Classify(err))))
		case page != nil:
			res.Yelp = ParseYelp(page, e.now())
			if _, err := social.Save(ctx, st, p.ID, res.Yelp); err != nil {
				return res, err
			}
		}
	}

	if p.Website != "" {
		page, err := resilience.DoVal(ctx, e.retryFor("website"), func(ctx context.Context) (*scrape.Page, error) {
			return e.pages.GetOptional(ctx, resilience.ResourceWeb, SiteURL(p.Website))
		})
		switch {
		case err != nil:
			log.Warn("enrich: website analysis failed", zap.Error(err), zap.String("kind", string(resilience.Classify(err))))
		case page != nil:
			res.Website = AnalyzeWebsite(page)
			if err := applyWebsite(ctx, st, p, res.Website); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (e *Platforms) fetchYelp(ctx context.Context, url string) (*scrape.Page, error) {
	return resilience.ExecuteVal(ctx, e.yelp, func(ctx context.Context) (*scrape.Page, error) {
		return resilience.DoVal(ctx, e.retryFor("yelp"), func(ctx context.Context) (*scrape.Page, error) {
			return e.pages.GetOptional(ctx, resilience.ResourceYelp, url)
		})
	})
}

func (e *Platforms) retryFor(op string) resilience.RetryConfig {
	cfg := e.retry
	cfg.OnRetry = resilience.RetryLogger("enrich", op)
	return cfg
}

// applyWebsite fills social URLs and the contact email the prospect is
// missing.
func applyWebsite(ctx context.Context, st store.Store, p *model.Prospect, site *WebsiteAnalysis) error {
	patch := store.Record{}
	if u := site.SocialLinks["instagram"]; u != "" && p.InstagramURL == "" {
		patch["instagram_url"] = u
		p.InstagramURL = u
	}
	if u := site.SocialLinks["facebook"]; u != "" && p.FacebookURL == "" {
		patch["facebook_url"] = u
		p.FacebookURL = u
	}
	if len(site.Emails) > 0 && p.ContactEmail == "" {
		email := site.Emails[0]
		patch["contact_email"] = email
		patch["owner_email"] = email
		patch["email_source"] = EmailSourceWebsite
		patch["email_confidence"] = string(model.ConfidenceHigh)
		p.ContactEmail, p.OwnerEmail = email, email
		p.EmailSource = EmailSourceWebsite
		p.EmailConfidence = model.ConfidenceHigh
	}
	if len(patch) == 0 {
		return nil
	}
	if err := store.UpdateProspect(ctx, st, p.ID, patch); err != nil {
		return err
	}
	zap.L().Info("enrich: updated lead from website", zap.String("lead_id", p.ID), zap.Int("fields", len(patch)))
	return nil
}
