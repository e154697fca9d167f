package source

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/cost"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/pkg/outscraper"
)

// Maps is the primary channel: a Google Maps search through Outscraper.
type Maps struct {
	client  outscraper.Client
	limiter *resilience.Limiter
	retry   resilience.RetryConfig
	costs   *cost.Tracker
}

// NewMaps creates the primary channel.
func NewMaps(client outscraper.Client, limiters *resilience.Limiters, retry resilience.RetryConfig) *Maps {
	retry.OnRetry = resilience.RetryLogger("outscraper", "maps_search")
	return &Maps{
		client:  client,
		limiter: limiters.Get(resilience.ResourceOutscraper),
		retry:   retry,
	}
}

// WithCosts records search spend on t.
func (m *Maps) WithCosts(t *cost.Tracker) *Maps {
	m.costs = t
	return m
}

// Name implements Source.
func (m *Maps) Name() model.Source { return model.SourceOutscraper }

// Scrape implements Source.
func (m *Maps) Scrape(ctx context.Context, target Target, limit int) ([]model.RawProspect, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := target.Category + " in " + target.Location
	places, err := resilience.DoVal(ctx, m.retry, func(ctx context.Context) ([]outscraper.Place, error) {
		return resilience.CallVal(ctx, m.limiter, func(ctx context.Context) ([]outscraper.Place, error) {
			return m.client.MapsSearch(ctx, query, limit, outscraper.WithContacts())
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "source: maps search %q", query)
	}
	m.costs.Outscraper(len(places), true)

	out := make([]model.RawProspect, 0, len(places))
	for _, place := range places {
		if strings.TrimSpace(place.Name) == "" {
			continue
		}
		out = append(out, rawFromPlace(place, target))
		if len(out) >= limit {
			break
		}
	}
	zap.L().Info("source: maps search complete",
		zap.String("query", query), zap.Int("places", len(places)), zap.Int("prospects", len(out)))
	return out, nil
}

func rawFromPlace(place outscraper.Place, target Target) model.RawProspect {
	owner := place.OwnerName
	if owner == "" {
		owner = place.ContactName
	}
	raw := model.RawProspect{
		BusinessName:  strings.TrimSpace(place.Name),
		Category:      target.Category,
		City:          target.City(),
		State:         target.StateCode(),
		Address:       place.FullAddress,
		Zip:           place.PostalCode,
		Website:       place.Site,
		Phone:         place.BestPhone(),
		Email:         place.BestEmail(),
		OwnerName:     owner,
		Rating:        place.Rating,
		ReviewsCount:  place.ReviewCount(),
		GoogleMapsURL: place.MapsURL(),
		PlaceID:       place.PlaceID,
		Source:        model.SourceOutscraper,
	}
	assignSocialURLs(&raw, place.URLs())
	return raw
}

// assignSocialURLs keeps the first URL seen for each platform.
func assignSocialURLs(raw *model.RawProspect, urls []string) {
	for _, u := range urls {
		lower := strings.ToLower(u)
		switch {
		case strings.Contains(lower, "instagram.com/") && raw.InstagramURL == "":
			raw.InstagramURL = u
		case strings.Contains(lower, "facebook.com/") && raw.FacebookURL == "":
			raw.FacebookURL = u
		case strings.Contains(lower, "yelp.com/") && raw.YelpURL == "":
			raw.YelpURL = u
		case strings.Contains(lower, "tiktok.com/") && raw.TiktokURL == "":
			raw.TiktokURL = u
		}
	}
}
