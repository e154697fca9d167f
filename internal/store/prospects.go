package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/model"
)

// ProspectRecord maps a prospect onto outreach_leads columns. Empty optional
// text fields become NULL so IS NOT NULL filters work as expected.
func ProspectRecord(p *model.Prospect) Record {
	rec := Record{
		"business_name":         p.BusinessName,
		"category":              NullIfEmpty(p.Category),
		"city":                  NullIfEmpty(p.City),
		"state":                 NullIfEmpty(p.State),
		"address":               NullIfEmpty(p.Address),
		"zip":                   NullIfEmpty(p.Zip),
		"website":               NullIfEmpty(p.Website),
		"contact_name":          NullIfEmpty(p.ContactName),
		"contact_email":         NullIfEmpty(p.ContactEmail),
		"contact_phone":         NullIfEmpty(p.ContactPhone),
		"owner_name":            NullIfEmpty(p.OwnerName),
		"owner_email":           NullIfEmpty(p.OwnerEmail),
		"owner_phone":           NullIfEmpty(p.OwnerPhone),
		"email_confidence":      NullIfEmpty(string(p.EmailConfidence)),
		"email_source":          NullIfEmpty(p.EmailSource),
		"instagram_url":         NullIfEmpty(p.InstagramURL),
		"facebook_url":          NullIfEmpty(p.FacebookURL),
		"yelp_url":              NullIfEmpty(p.YelpURL),
		"tiktok_url":            NullIfEmpty(p.TiktokURL),
		"google_rating":         p.GoogleRating,
		"google_reviews_count":  p.GoogleReviewsCount,
		"google_maps_url":       NullIfEmpty(p.GoogleMapsURL),
		"google_place_id":       NullIfEmpty(p.GooglePlaceID),
		"status":                string(p.Status),
		"pipeline_status":       string(p.PipelineStatus),
		"enrichment_status":     string(p.EnrichmentStatus),
		"geospark_score":        p.GeosparkScore,
		"score_tier":            NullIfEmpty(string(p.ScoreTier)),
		"score_breakdown":       p.ScoreBreakdown,
		"problem_score":         p.ProblemScore,
		"readiness_score":       p.ReadinessScore,
		"prospect_source":       string(p.ProspectSource),
		"source_details":        p.SourceDetails,
		"instantly_campaign_id": NullIfEmpty(p.InstantlyCampaignID),
		"last_enriched_at":      p.LastEnrichedAt,
	}
	if p.ID != "" {
		rec["id"] = p.ID
	}
	return rec
}

// InsertProspect stores a new prospect and sets its ID.
func InsertProspect(ctx context.Context, s Store, p *model.Prospect) (string, error) {
	id, err := s.Insert(ctx, TableLeads, ProspectRecord(p))
	if err != nil {
		return "", eris.Wrapf(err, "store: insert prospect %q", p.BusinessName)
	}
	p.ID = id
	return id, nil
}

// GetProspect returns the prospect with the given id or ErrNotFound.
func GetProspect(ctx context.Context, s Store, id string) (*model.Prospect, error) {
	recs, err := s.Select(ctx, TableLeads, Filter{Where: sq.Eq{"id": id}, Limit: 1})
	if err != nil {
		return nil, eris.Wrapf(err, "store: get prospect %s", id)
	}
	if len(recs) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "prospect %s", id)
	}
	p, err := Decode[model.Prospect](recs[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProspects returns the prospects matching f.
func ListProspects(ctx context.Context, s Store, f Filter) ([]model.Prospect, error) {
	recs, err := s.Select(ctx, TableLeads, f)
	if err != nil {
		return nil, eris.Wrap(err, "store: list prospects")
	}
	return DecodeAll[model.Prospect](recs)
}

// UpdateProspect applies patch to one prospect.
func UpdateProspect(ctx context.Context, s Store, id string, patch Record) error {
	n, err := s.Update(ctx, TableLeads, ByID(id), patch)
	if err != nil {
		return eris.Wrapf(err, "store: update prospect %s", id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "prospect %s", id)
	}
	return nil
}

// FindProspectByNameCity returns the first prospect with the exact business
// name and city, or nil.
func FindProspectByNameCity(ctx context.Context, s Store, name, city string) (*model.Prospect, error) {
	return findOne(ctx, s, sq.Eq{"business_name": name, "city": city})
}

// FindProspectByInstagram returns the prospect with the given Instagram URL,
// or nil.
func FindProspectByInstagram(ctx context.Context, s Store, url string) (*model.Prospect, error) {
	if url == "" {
		return nil, nil
	}
	return findOne(ctx, s, sq.Eq{"instagram_url": url})
}

func findOne(ctx context.Context, s Store, where sq.Sqlizer) (*model.Prospect, error) {
	recs, err := s.Select(ctx, TableLeads, Filter{Where: where, Limit: 1})
	if err != nil {
		return nil, eris.Wrap(err, "store: find prospect")
	}
	if len(recs) == 0 {
		return nil, nil
	}
	p, err := Decode[model.Prospect](recs[0])
	if err != nil {
		return nil, err
	}
	return &p, nil
}
