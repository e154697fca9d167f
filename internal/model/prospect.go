package model

import (
	"time"
)

// Prospect is a local business being evaluated for outreach. Rows live in
// the outreach_leads table.
type Prospect struct {
	ID           string `json:"id" mapstructure:"id"`
	BusinessName string `json:"business_name" mapstructure:"business_name"`
	Category     string `json:"category" mapstructure:"category"`
	City         string `json:"city" mapstructure:"city"`
	State        string `json:"state" mapstructure:"state"`
	Address      string `json:"address,omitempty" mapstructure:"address"`
	Zip          string `json:"zip,omitempty" mapstructure:"zip"`
	Website      string `json:"website,omitempty" mapstructure:"website"`

	ContactName     string          `json:"contact_name,omitempty" mapstructure:"contact_name"`
	ContactEmail    string          `json:"contact_email,omitempty" mapstructure:"contact_email"`
	ContactPhone    string          `json:"contact_phone,omitempty" mapstructure:"contact_phone"`
	OwnerName       string          `json:"owner_name,omitempty" mapstructure:"owner_name"`
	OwnerEmail      string          `json:"owner_email,omitempty" mapstructure:"owner_email"`
	OwnerPhone      string          `json:"owner_phone,omitempty" mapstructure:"owner_phone"`
	EmailConfidence EmailConfidence `json:"email_confidence,omitempty" mapstructure:"email_confidence"`
	EmailSource     string          `json:"email_source,omitempty" mapstructure:"email_source"`

	InstagramURL string `json:"instagram_url,omitempty" mapstructure:"instagram_url"`
	FacebookURL  string `json:"facebook_url,omitempty" mapstructure:"facebook_url"`
	YelpURL      string `json:"yelp_url,omitempty" mapstructure:"yelp_url"`
	TiktokURL    string `json:"tiktok_url,omitempty" mapstructure:"tiktok_url"`

	GoogleRating       float64 `json:"google_rating" mapstructure:"google_rating"`
	GoogleReviewsCount int     `json:"google_reviews_count" mapstructure:"google_reviews_count"`
	GoogleMapsURL      string  `json:"google_maps_url,omitempty" mapstructure:"google_maps_url"`
	GooglePlaceID      string  `json:"google_place_id,omitempty" mapstructure:"google_place_id"`

	Status           LeadStatus       `json:"status" mapstructure:"status"`
	PipelineStatus   PipelineStatus   `json:"pipeline_status" mapstructure:"pipeline_status"`
	EnrichmentStatus EnrichmentStatus `json:"enrichment_status" mapstructure:"enrichment_status"`

	GeosparkScore  int            `json:"geospark_score" mapstructure:"geospark_score"`
	ScoreTier      Tier           `json:"score_tier,omitempty" mapstructure:"score_tier"`
	ScoreBreakdown map[string]any `json:"score_breakdown,omitempty" mapstructure:"score_breakdown"`
	ProblemScore   int            `json:"problem_score" mapstructure:"problem_score"`
	ReadinessScore int            `json:"readiness_score" mapstructure:"readiness_score"`

	ProspectSource      Source         `json:"prospect_source" mapstructure:"prospect_source"`
	SourceDetails       map[string]any `json:"source_details,omitempty" mapstructure:"source_details"`
	InstantlyCampaignID string         `json:"instantly_campaign_id,omitempty" mapstructure:"instantly_campaign_id"`

	LastEnrichedAt *time.Time `json:"last_enriched_at,omitempty" mapstructure:"last_enriched_at"`
	CreatedAt      time.Time  `json:"created_at" mapstructure:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" mapstructure:"updated_at"`
}

// Email returns the best known address: the contact email, falling back to
// the owner email.
func (p Prospect) Email() string {
	if p.ContactEmail != "" {
		return p.ContactEmail
	}
	return p.OwnerEmail
}

// PlatformCount returns how many social/review platforms the prospect has a
// URL for.
func (p Prospect) PlatformCount() int {
	n := 0
	for _, u := range []string{p.InstagramURL, p.FacebookURL, p.YelpURL, p.TiktokURL} {
		if u != "" {
			n++
		}
	}
	return n
}

// RawProspect is the common output shape of every acquisition channel.
type RawProspect struct {
	BusinessName  string
	Category      string
	City          string
	State         string
	Address       string
	Zip           string
	Website       string
	Phone         string
	Email         string
	OwnerName     string
	Rating        float64
	ReviewsCount  int
	GoogleMapsURL string
	PlaceID       string
	InstagramURL  string
	FacebookURL   string
	YelpURL       string
	TiktokURL     string

	Source        Source
	SourceDetails map[string]any

	// Social is an already-fetched profile for channels that discover
	// prospects through their social accounts.
	Social *SocialProfile
}

// SaveResult tallies the outcome of persisting a batch of raw prospects.
type SaveResult struct {
	Saved   int `json:"saved"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Add accumulates other into r.
func (r *SaveResult) Add(other SaveResult) {
	r.Saved += other.Saved
	r.Skipped += other.Skipped
	r.Errors += other.Errors
}
