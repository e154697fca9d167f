// Package source finds new prospects. Each channel returns raw prospects in
// one shape; Save dedups and stores them.
package source

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/internal/social"
	"github.com/sells-group/geospark-cli/internal/store"
)

// Target is the market a run scrapes.
type Target struct {
	// Location is the display location, e.g. "Denver, CO".
	Location string
	// State is used when Location has no state part.
	State    string
	Category string
	// Creators overrides the catalog's creator list for the engagement
	// channel when non-empty.
	Creators []string
}

// City returns the city part of the location.
func (t Target) City() string {
	city, _ := normalize.SplitLocation(t.Location)
	return city
}

// StateCode returns the state part of the location, falling back to State.
func (t Target) StateCode() string {
	if _, state := normalize.SplitLocation(t.Location); state != "" {
		return state
	}
	return t.State
}

// Source is one acquisition channel.
type Source interface {
	Name() model.Source
	// Scrape returns up to limit raw prospects. An empty market is not an
	// error. A channel that stops early may return what it found together
	// with the error.
	Scrape(ctx context.Context, target Target, limit int) ([]model.RawProspect, error)
}

// Save stores new prospects and skips ones already known. Engagement
// prospects are matched on Instagram URL before name and city. Failures are
// counted per prospect; only a cancelled context stops the batch.
func Save(ctx context.Context, st store.Store, raws []model.RawProspect) (model.SaveResult, error) {
	var res model.SaveResult
	for i := range raws {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		raw := &raws[i]
		log := zap.L().With(zap.String("business", raw.BusinessName), zap.String("source", string(raw.Source)))

		if strings.TrimSpace(raw.BusinessName) == "" {
			res.Skipped++
			continue
		}

		existing, err := findExisting(ctx, st, raw)
		if err != nil {
			log.Warn("source: dedup lookup failed", zap.Error(err))
			res.Errors++
			continue
		}
		if existing != nil {
			res.Skipped++
			continue
		}

		p := prospectFromRaw(raw)
		if _, err := store.InsertProspect(ctx, st, p); err != nil {
			log.Warn("source: save failed", zap.Error(err))
			res.Errors++
			continue
		}
		if raw.Social != nil {
			if _, err := social.Save(ctx, st, p.ID, raw.Social); err != nil {
				log.Warn("source: save social profile failed", zap.Error(err))
			}
		}
		res.Saved++
	}
	return res, nil
}

func findExisting(ctx context.Context, st store.Store, raw *model.RawProspect) (*model.Prospect, error) {
	if raw.Source == model.SourceEngagement && raw.InstagramURL != "" {
		p, err := store.FindProspectByInstagram(ctx, st, raw.InstagramURL)
		if err != nil || p != nil {
			return p, err
		}
	}
	return store.FindProspectByNameCity(ctx, st, raw.BusinessName, raw.City)
}

// emailConfidence is the trust placed in an address by the channel it
// came from.
var emailConfidence = map[model.Source]model.EmailConfidence{
	model.SourceOutscraper: model.ConfidenceHigh,
	model.SourceFresh:      model.ConfidenceMedium,
	model.SourceEngagement: model.ConfidenceMedium,
}

func prospectFromRaw(raw *model.RawProspect) *model.Prospect {
	p := &model.Prospect{
		BusinessName:       strings.TrimSpace(raw.BusinessName),
		Category:           raw.Category,
		City:               raw.City,
		State:              raw.State,
		Address:            raw.Address,
		Zip:                raw.Zip,
		Website:            raw.Website,
		ContactPhone:       normalize.CleanPhone(raw.Phone),
		OwnerName:          raw.OwnerName,
		InstagramURL:       raw.InstagramURL,
		FacebookURL:        raw.FacebookURL,
		YelpURL:            raw.YelpURL,
		TiktokURL:          raw.TiktokURL,
		GoogleRating:       raw.Rating,
		GoogleReviewsCount: raw.ReviewsCount,
		GoogleMapsURL:      raw.GoogleMapsURL,
		GooglePlaceID:      raw.PlaceID,
		Status:             model.LeadNew,
		PipelineStatus:     model.PipelineScraped,
		EnrichmentStatus:   model.EnrichmentPending,
		ProspectSource:     raw.Source,
		SourceDetails:      raw.SourceDetails,
	}
	if email := normalize.CleanEmail(raw.Email); email != "" {
		p.ContactEmail = email
		p.EmailSource = string(raw.Source)
		p.EmailConfidence = emailConfidence[raw.Source]
	}
	return p
}
