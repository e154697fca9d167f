package enrich

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/normalize"
	"github.com/sells-group/geospark-cli/internal/resilience"
	"github.com/sells-group/geospark-cli/pkg/outscraper"
)

// DefaultMaxCompetitors is the number of competitors analyzed per prospect.
const DefaultMaxCompetitors = 2

// ProfileFetcher fetches an analyzed Instagram profile.
type ProfileFetcher interface {
	Fetch(ctx context.Context, handle string) (*model.SocialProfile, error)
	Disabled() bool
}

// Competitors finds nearby competitors on Google Maps and measures the gap
// between their Instagram presence and the prospect's.
type Competitors struct {
	maps    outscraper.Client
	social  ProfileFetcher
	limiter *resilience.Limiter
	retry   resilience.RetryConfig
	max     int
	now     func() time.Time
}

// NewCompetitors creates a competitor analyzer.
func NewCompetitors(maps outscraper.Client, social ProfileFetcher, limiters *resilience.Limiters, retry resilience.RetryConfig, maxCompetitors int) *Competitors {
	if maxCompetitors <= 0 {
		maxCompetitors = DefaultMaxCompetitors
	}
	retry.OnRetry = resilience.RetryLogger("outscraper", "competitor_search")
	return &Competitors{
		maps:    maps,
		social:  social,
		limiter: limiters.Get(resilience.ResourceOutscraper),
		retry:   retry,
		max:     maxCompetitors,
		now:     time.Now,
	}
}

// Analyze returns up to max competitors that have an Instagram account, each
// with gaps against own. A nil own profile leaves every gap empty.
func (c *Competitors) Analyze(ctx context.Context, p *model.Prospect, own *model.SocialProfile) ([]model.Competitor, error) {
	location := p.City
	if p.State != "" {
		location += ", " + p.State
	}
	query := p.Category + " in " + location

	places, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]outscraper.Place, error) {
		return resilience.CallVal(ctx, c.limiter, func(ctx context.Context) ([]outscraper.Place, error) {
			return c.maps.MapsSearch(ctx, query, c.max+5)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: competitor search %q", query)
	}

	self := strings.ToLower(strings.TrimSpace(p.BusinessName))
	var out []model.Competitor
	for _, place := range places {
		if len(out) >= c.max {
			break
		}
		if strings.ToLower(strings.TrimSpace(place.Name)) == self {
			continue
		}
		handle := placeInstagram(place)
		if handle == "" {
			continue
		}

		comp := model.Competitor{
			LeadID:              p.ID,
			CompetitorName:      place.Name,
			CompetitorInstagram: handle,
			CompetitorWebsite:   place.Site,
			GoogleRating:        place.Rating,
			GoogleReviewsCount:  place.ReviewCount(),
			AnalyzedAt:          c.now().UTC(),
		}

		if !c.social.Disabled() {
			theirs, err := c.social.Fetch(ctx, handle)
			if err != nil {
				zap.L().Warn("enrich: competitor instagram failed",
					zap.String("competitor", place.Name), zap.String("handle", handle), zap.Error(err))
			}
			if theirs != nil {
				comp.Followers = theirs.Followers
				comp.PostsPerMonth = theirs.PostingFrequency
				comp.EngagementRate = theirs.EngagementRate
				if own != nil {
					applyGaps(&comp, own)
				}
			}
		}
		out = append(out, comp)
	}
	return out, nil
}

func placeInstagram(place outscraper.Place) string {
	for _, u := range place.URLs() {
		if h := normalize.InstagramUsername(u); h != "" {
			return h
		}
	}
	return ""
}

// applyGaps sets each gap the competitor has data for.
func applyGaps(comp *model.Competitor, own *model.SocialProfile) {
	if comp.Followers > 0 {
		gap := comp.Followers - own.Followers
		comp.FollowerGap = &gap
	}
	if comp.PostsPerMonth > 0 {
		gap := roundTo(comp.PostsPerMonth-own.PostingFrequency, 1)
		comp.PostingGap = &gap
	}
	if comp.EngagementRate > 0 {
		gap := roundTo(comp.EngagementRate-own.EngagementRate, 3)
		comp.EngagementGap = &gap
	}
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
