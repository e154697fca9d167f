package model

import "time"

// LearningMode controls what the learning engine does with its findings.
type LearningMode string

const (
	LearningPassive    LearningMode = "passive"
	LearningActive     LearningMode = "active"
	LearningAutonomous LearningMode = "autonomous"
)

// Valid reports whether m is a known mode.
func (m LearningMode) Valid() bool {
	switch m {
	case LearningPassive, LearningActive, LearningAutonomous:
		return true
	}
	return false
}

// LearningStatus is the lifecycle state of a stored recommendation.
type LearningStatus string

const (
	LearningRecommended LearningStatus = "recommended"
	LearningApplied     LearningStatus = "applied"
)

// Email events accepted by the tracker.
const (
	EventSent    = "sent"
	EventOpened  = "opened"
	EventReplied = "replied"
)

// Recommendation is a confidence-scored hypothesis about a pipeline
// parameter. Rows live in pipeline_learnings.
type Recommendation struct {
	ID            string         `json:"id,omitempty" mapstructure:"id"`
	LearningType  string         `json:"learning_type" mapstructure:"learning_type"`
	ParameterName string         `json:"parameter_name" mapstructure:"parameter_name"`
	CurrentValue  map[string]any `json:"current_value" mapstructure:"current_value"`
	Evidence      map[string]any `json:"evidence,omitempty" mapstructure:"evidence"`
	Confidence    int            `json:"confidence" mapstructure:"confidence"`
	SampleSize    int            `json:"sample_size" mapstructure:"sample_size"`
	Description   string         `json:"description" mapstructure:"description"`
	Status        LearningStatus `json:"status" mapstructure:"status"`
	AppliedAt     *time.Time     `json:"applied_at,omitempty" mapstructure:"applied_at"`
	CreatedAt     time.Time      `json:"created_at,omitempty" mapstructure:"created_at"`
}

// GroupStats are outcome counts and rates for one group of sent emails.
type GroupStats struct {
	Sent      int     `json:"sent"`
	Opened    int     `json:"opened"`
	Replied   int     `json:"replied"`
	Positive  int     `json:"positive"`
	OpenRate  float64 `json:"open_rate"`
	ReplyRate float64 `json:"reply_rate"`
}

// WordCountStats compares average word counts of replied and unreplied emails.
type WordCountStats struct {
	RepliedAvg    int  `json:"replied_avg"`
	NotRepliedAvg *int `json:"not_replied_avg,omitempty"`
}

// Performance summarizes outcomes across all sent emails.
type Performance struct {
	TotalSent     int     `json:"total_sent"`
	TotalOpened   int     `json:"total_opened"`
	TotalReplied  int     `json:"total_replied"`
	TotalPositive int     `json:"total_positive"`
	OpenRate      float64 `json:"open_rate"`
	ReplyRate     float64 `json:"reply_rate"`
	PositiveRate  float64 `json:"positive_rate"`

	ByEmailNumber    map[string]*GroupStats `json:"by_email_number"`
	ByInsightType    map[string]*GroupStats `json:"by_insight_type"`
	ByCTAStyle       map[string]*GroupStats `json:"by_cta_style"`
	BySubjectPattern map[string]*GroupStats `json:"by_subject_pattern"`

	OptimalWordCount *WordCountStats `json:"optimal_word_count,omitempty"`
}

// SourceStats summarizes how prospects from one acquisition channel perform.
type SourceStats struct {
	Total        int     `json:"total"`
	AvgScore     float64 `json:"avg_score"`
	TopTierShare float64 `json:"top_tier_pct"`
	Contacted    int     `json:"contacted"`
	Replied      int     `json:"replied"`
	Converted    int     `json:"converted"`
	ReplyRate    float64 `json:"reply_rate"`
}
