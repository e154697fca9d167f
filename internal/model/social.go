package model

import (
	"time"
)

// Platform names a social or review platform.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
	PlatformYelp      Platform = "yelp"
	PlatformTiktok    Platform = "tiktok"
)

// SocialProfile holds the metrics of one prospect on one platform. There is
// at most one row per (lead_id, platform).
type SocialProfile struct {
	ID               string   `json:"id,omitempty" mapstructure:"id"`
	LeadID           string   `json:"lead_id" mapstructure:"lead_id"`
	Platform         Platform `json:"platform" mapstructure:"platform"`
	Username         string   `json:"username,omitempty" mapstructure:"username"`
	ProfileURL       string   `json:"profile_url,omitempty" mapstructure:"profile_url"`
	Followers        int      `json:"followers" mapstructure:"followers"`
	Following        int      `json:"following" mapstructure:"following"`
	PostsCount       int      `json:"posts_count" mapstructure:"posts_count"`
	Bio              string   `json:"bio,omitempty" mapstructure:"bio"`
	BusinessCategory string   `json:"business_category,omitempty" mapstructure:"business_category"`
	ExternalURL      string   `json:"external_url,omitempty" mapstructure:"external_url"`
	IsBusiness       bool     `json:"is_business_account" mapstructure:"is_business_account"`
	IsPrivate        bool     `json:"is_private" mapstructure:"is_private"`

	EngagementRate   float64    `json:"engagement_rate" mapstructure:"engagement_rate"`
	PostsLast30Days  int        `json:"posts_last_30_days" mapstructure:"posts_last_30_days"`
	PostingFrequency float64    `json:"posting_frequency" mapstructure:"posting_frequency"`
	LastPostDate     *time.Time `json:"last_post_date,omitempty" mapstructure:"last_post_date"`

	ContentBreakdown map[string]ContentShare `json:"content_breakdown,omitempty" mapstructure:"content_breakdown"`
	ToolsDetected    []string                `json:"tools_detected,omitempty" mapstructure:"tools_detected"`

	// Review-site fields, used by the yelp platform row.
	Rating      float64 `json:"rating,omitempty" mapstructure:"rating"`
	ReviewCount int     `json:"review_count,omitempty" mapstructure:"review_count"`
	PriceRange  string  `json:"price_range,omitempty" mapstructure:"price_range"`

	RawData   SocialRawData `json:"raw_data" mapstructure:"raw_data"`
	ScrapedAt time.Time     `json:"scraped_at" mapstructure:"scraped_at"`

	// Posts is the recent-post sample; stored in prospect_posts, not on the
	// profile row.
	Posts []Post `json:"-" mapstructure:"-"`
}

// ContentShare is the count and percentage of posts in a content category.
type ContentShare struct {
	Count int     `json:"count" mapstructure:"count"`
	Pct   float64 `json:"pct" mapstructure:"pct"`
}

// SocialRawData carries nested analysis structures persisted as JSON.
type SocialRawData struct {
	PostingPatterns   *PostingPatterns   `json:"posting_patterns,omitempty" mapstructure:"posting_patterns"`
	EngagementDetails *EngagementDetails `json:"engagement_details,omitempty" mapstructure:"engagement_details"`
}

// PostingPatterns summarizes when a profile posts.
type PostingPatterns struct {
	PostsLast30Days    int        `json:"posts_last_30_days" mapstructure:"posts_last_30_days"`
	PostsPerMonth      float64    `json:"posts_per_month" mapstructure:"posts_per_month"`
	LastPostDate       *time.Time `json:"last_post_date,omitempty" mapstructure:"last_post_date"`
	DaysSinceLastPost  int        `json:"days_since_last_post" mapstructure:"days_since_last_post"`
	MaxGapDays         int        `json:"max_gap_days" mapstructure:"max_gap_days"`
	AvgGapDays         float64    `json:"avg_gap_days" mapstructure:"avg_gap_days"`
	TotalPostsAnalyzed int        `json:"total_posts_analyzed" mapstructure:"total_posts_analyzed"`
}

// EngagementDetails breaks engagement down by post type.
type EngagementDetails struct {
	AvgEngagementRate float64            `json:"avg_engagement_rate" mapstructure:"avg_engagement_rate"`
	AvgLikes          float64            `json:"avg_likes" mapstructure:"avg_likes"`
	AvgComments       float64            `json:"avg_comments" mapstructure:"avg_comments"`
	EngagementByType  map[string]float64 `json:"engagement_by_type,omitempty" mapstructure:"engagement_by_type"`
	BestPostType      string             `json:"best_post_type,omitempty" mapstructure:"best_post_type"`
	WorstPostType     string             `json:"worst_post_type,omitempty" mapstructure:"worst_post_type"`
	BestEngagement    float64            `json:"best_engagement" mapstructure:"best_engagement"`
	WorstEngagement   float64            `json:"worst_engagement" mapstructure:"worst_engagement"`
}

// Post is one recent post of a social profile.
type Post struct {
	ID              string    `json:"id,omitempty" mapstructure:"id"`
	SocialProfileID string    `json:"social_profile_id,omitempty" mapstructure:"social_profile_id"`
	LeadID          string    `json:"lead_id,omitempty" mapstructure:"lead_id"`
	Shortcode       string    `json:"shortcode,omitempty" mapstructure:"shortcode"`
	PostURL         string    `json:"post_url" mapstructure:"post_url"`
	PostDate        time.Time `json:"post_date" mapstructure:"post_date"`
	Caption         string    `json:"caption,omitempty" mapstructure:"caption"`
	Likes           int       `json:"likes" mapstructure:"likes"`
	Comments        int       `json:"comments" mapstructure:"comments"`
	Views           int       `json:"views,omitempty" mapstructure:"views"`
	PostType        string    `json:"post_type" mapstructure:"post_type"`
}

// PostingPatterns returns the profile's posting patterns, or an empty value.
func (s *SocialProfile) PostingPatterns() PostingPatterns {
	if s == nil || s.RawData.PostingPatterns == nil {
		return PostingPatterns{}
	}
	return *s.RawData.PostingPatterns
}

// EngagementDetails returns the profile's engagement details, or an empty value.
func (s *SocialProfile) EngagementDetails() EngagementDetails {
	if s == nil || s.RawData.EngagementDetails == nil {
		return EngagementDetails{}
	}
	return *s.RawData.EngagementDetails
}

// Competitor is a snapshot of a nearby competitor's public metrics and the
// gaps relative to the prospect at analysis time.
type Competitor struct {
	ID                  string  `json:"id,omitempty" mapstructure:"id"`
	LeadID              string  `json:"lead_id" mapstructure:"lead_id"`
	CompetitorName      string  `json:"competitor_name" mapstructure:"competitor_name"`
	CompetitorInstagram string  `json:"competitor_instagram,omitempty" mapstructure:"competitor_instagram"`
	CompetitorWebsite   string  `json:"competitor_website,omitempty" mapstructure:"competitor_website"`
	Followers           int     `json:"followers" mapstructure:"followers"`
	PostsPerMonth       float64 `json:"posts_per_month" mapstructure:"posts_per_month"`
	EngagementRate      float64 `json:"engagement_rate" mapstructure:"engagement_rate"`
	GoogleRating        float64 `json:"google_rating" mapstructure:"google_rating"`
	GoogleReviewsCount  int     `json:"google_reviews_count" mapstructure:"google_reviews_count"`

	// Gaps are nil when either side lacks the metric.
	FollowerGap   *int     `json:"follower_gap,omitempty" mapstructure:"follower_gap"`
	PostingGap    *float64 `json:"posting_gap,omitempty" mapstructure:"posting_gap"`
	EngagementGap *float64 `json:"engagement_gap,omitempty" mapstructure:"engagement_gap"`

	AnalyzedAt time.Time `json:"analyzed_at" mapstructure:"analyzed_at"`
}
