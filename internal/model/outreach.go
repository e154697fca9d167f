package model

import "time"

// InsightType categorizes a generated marketing insight.
type InsightType string

const (
	InsightPostingPattern    InsightType = "posting_pattern"
	InsightEngagement        InsightType = "engagement_analysis"
	InsightCompetitorGap     InsightType = "competitor_gap"
	InsightReviewSocialGap   InsightType = "review_social_gap"
	InsightContentQuality    InsightType = "content_quality"
	InsightPlatformGap       InsightType = "platform_gap"
	InsightToolUsage         InsightType = "tool_usage"
	InsightGrowthOpportunity InsightType = "growth_opportunity"
)

// InsightTypes lists every insight type the generator may emit.
func InsightTypes() []InsightType {
	return []InsightType{
		InsightPostingPattern, InsightEngagement, InsightCompetitorGap,
		InsightReviewSocialGap, InsightContentQuality, InsightPlatformGap,
		InsightToolUsage, InsightGrowthOpportunity,
	}
}

// Insight is a numerically grounded observation about a prospect. Insights
// are written once and never mutated.
type Insight struct {
	ID             string         `json:"id,omitempty" mapstructure:"id"`
	LeadID         string         `json:"lead_id,omitempty" mapstructure:"lead_id"`
	InsightType    InsightType    `json:"insight_type" mapstructure:"insight_type"`
	Title          string         `json:"insight_title" mapstructure:"insight_title"`
	Description    string         `json:"insight_description" mapstructure:"insight_description"`
	PriorityScore  int            `json:"priority_score" mapstructure:"priority_score"`
	SupportingData map[string]any `json:"supporting_data,omitempty" mapstructure:"supporting_data"`
	CreatedAt      time.Time      `json:"created_at,omitempty" mapstructure:"created_at"`
}

// SequenceLength is the number of emails in an outreach sequence.
const SequenceLength = 4

// DefaultVariant is the A/B variant written by the generator.
const DefaultVariant = "a"

// EmailSequenceEntry is one email of a prospect's sequence. Unique per
// (lead_id, email_number, ab_variant).
type EmailSequenceEntry struct {
	ID                 string   `json:"id,omitempty" mapstructure:"id"`
	LeadID             string   `json:"lead_id,omitempty" mapstructure:"lead_id"`
	EmailNumber        int      `json:"email_number" mapstructure:"email_number"`
	ABVariant          string   `json:"ab_variant" mapstructure:"ab_variant"`
	SendDelayDays      int      `json:"send_delay_days" mapstructure:"send_delay_days"`
	SubjectLine        string   `json:"subject_line" mapstructure:"subject_line"`
	Body               string   `json:"email_body" mapstructure:"email_body"`
	PersonalizationPct *float64 `json:"personalization_pct,omitempty" mapstructure:"personalization_pct"`
	DataPointsUsed     []string `json:"data_points_used,omitempty" mapstructure:"data_points_used"`
	DataPointsCount    int      `json:"data_points_count" mapstructure:"data_points_count"`
	WordCount          int      `json:"word_count" mapstructure:"word_count"`
	InsightTypeUsed    string   `json:"insight_type_used,omitempty" mapstructure:"insight_type_used"`
	SubjectPatternUsed string   `json:"subject_pattern_used,omitempty" mapstructure:"subject_pattern_used"`
	CTAStyleUsed       string   `json:"cta_style_used,omitempty" mapstructure:"cta_style_used"`

	Sent           bool       `json:"sent" mapstructure:"sent"`
	SentAt         *time.Time `json:"sent_at,omitempty" mapstructure:"sent_at"`
	Opened         bool       `json:"opened" mapstructure:"opened"`
	OpenedAt       *time.Time `json:"opened_at,omitempty" mapstructure:"opened_at"`
	Replied        bool       `json:"replied" mapstructure:"replied"`
	RepliedAt      *time.Time `json:"replied_at,omitempty" mapstructure:"replied_at"`
	ReplySentiment string     `json:"reply_sentiment,omitempty" mapstructure:"reply_sentiment"`
}
