// Package model defines the prospect, social, outreach and run types shared
// across the pipeline.
package model

// PipelineStatus is the forward-only lifecycle stage of a prospect.
type PipelineStatus string

const (
	PipelineScraped           PipelineStatus = "scraped"
	PipelineEnriched          PipelineStatus = "enriched"
	PipelineScored            PipelineStatus = "scored"
	PipelineInsightsGenerated PipelineStatus = "insights_generated"
	PipelineEmailsGenerated   PipelineStatus = "emails_generated"
	PipelineUploaded          PipelineStatus = "uploaded_to_instantly"
	PipelineCompleted         PipelineStatus = "completed"
)

var pipelineOrder = []PipelineStatus{
	PipelineScraped,
	PipelineEnriched,
	PipelineScored,
	PipelineInsightsGenerated,
	PipelineEmailsGenerated,
	PipelineUploaded,
	PipelineCompleted,
}

// PipelineStatuses returns every status in lifecycle order.
func PipelineStatuses() []PipelineStatus {
	out := make([]PipelineStatus, len(pipelineOrder))
	copy(out, pipelineOrder)
	return out
}

// Rank returns the position of s in the lifecycle, or -1 if s is unknown.
func (s PipelineStatus) Rank() int {
	for i, st := range pipelineOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known status.
func (s PipelineStatus) Valid() bool { return s.Rank() >= 0 }

// CanAdvance reports whether a prospect in from may be moved to to. Only
// strictly forward moves between known statuses are allowed.
func CanAdvance(from, to PipelineStatus) bool {
	return from.Valid() && to.Valid() && to.Rank() > from.Rank()
}

// EnrichmentStatus is the sub-state of a prospect while it sits in the
// scraped stage.
type EnrichmentStatus string

const (
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentInProgress EnrichmentStatus = "in_progress"
	EnrichmentCompleted  EnrichmentStatus = "completed"
	EnrichmentFailed     EnrichmentStatus = "failed"
)

// CanTransition reports whether the enrichment sub-state may move from s to next.
func (s EnrichmentStatus) CanTransition(next EnrichmentStatus) bool {
	switch s {
	case EnrichmentPending:
		return next == EnrichmentInProgress
	case EnrichmentInProgress:
		return next == EnrichmentCompleted || next == EnrichmentFailed
	default:
		return false
	}
}

// Tier is one of five ordered quality buckets derived from the score.
type Tier string

const (
	Tier1 Tier = "TIER_1"
	Tier2 Tier = "TIER_2"
	Tier3 Tier = "TIER_3"
	Tier4 Tier = "TIER_4"
	Tier5 Tier = "TIER_5"
)

// Rank orders tiers so that a better tier has a higher rank (TIER_1 = 5,
// TIER_5 = 1). Unknown tiers rank 0.
func (t Tier) Rank() int {
	switch t {
	case Tier1:
		return 5
	case Tier2:
		return 4
	case Tier3:
		return 3
	case Tier4:
		return 2
	case Tier5:
		return 1
	default:
		return 0
	}
}

// OutreachTiers are the tiers that receive insights and emails.
func OutreachTiers() []Tier { return []Tier{Tier1, Tier2, Tier3} }

// Source identifies the acquisition channel of a prospect.
type Source string

const (
	SourceOutscraper Source = "outscraper"
	SourceFresh      Source = "fresh_source"
	SourceEngagement Source = "engagement"
)

// EmailConfidence reflects how reliable the source of an email address is.
type EmailConfidence string

const (
	ConfidenceHigh   EmailConfidence = "high"
	ConfidenceMedium EmailConfidence = "medium"
	ConfidenceLow    EmailConfidence = "low"
)

// LeadStatus is the outreach-facing status of a prospect.
type LeadStatus string

const (
	LeadNew       LeadStatus = "new"
	LeadContacted LeadStatus = "contacted"
)
