package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status PipelineStatus
		want   string
	}{
		{PipelineScraped, "scraped"},
		{PipelineEnriched, "enriched"},
		{PipelineScored, "scored"},
		{PipelineInsightsGenerated, "insights_generated"},
		{PipelineEmailsGenerated, "emails_generated"},
		{PipelineUploaded, "uploaded_to_instantly"},
		{PipelineCompleted, "completed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestCanAdvance(t *testing.T) {
	t.Parallel()

	statuses := PipelineStatuses()
	for i, from := range statuses {
		for j, to := range statuses {
			assert.Equal(t, j > i, CanAdvance(from, to), "%s -> %s", from, to)
		}
	}

	assert.False(t, CanAdvance("bogus", PipelineScored))
	assert.False(t, CanAdvance(PipelineScraped, "bogus"))
}

func TestPipelineStatuses_ReturnsCopy(t *testing.T) {
	t.Parallel()

	s := PipelineStatuses()
	s[0] = "mutated"
	assert.Equal(t, PipelineScraped, PipelineStatuses()[0])
}

func TestEnrichmentStatus_CanTransition(t *testing.T) {
	t.Parallel()

	assert.True(t, EnrichmentPending.CanTransition(EnrichmentInProgress))
	assert.True(t, EnrichmentInProgress.CanTransition(EnrichmentCompleted))
	assert.True(t, EnrichmentInProgress.CanTransition(EnrichmentFailed))

	assert.False(t, EnrichmentPending.CanTransition(EnrichmentCompleted))
	assert.False(t, EnrichmentCompleted.CanTransition(EnrichmentPending))
	assert.False(t, EnrichmentFailed.CanTransition(EnrichmentInProgress))
}

func TestTierRank(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5, Tier1.Rank())
	assert.Equal(t, 1, Tier5.Rank())
	assert.Equal(t, 0, Tier("TIER_9").Rank())
	assert.Greater(t, Tier2.Rank(), Tier3.Rank())
	assert.Equal(t, []Tier{Tier1, Tier2, Tier3}, OutreachTiers())
}

func TestProspectEmail(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a@x.com", Prospect{ContactEmail: "a@x.com", OwnerEmail: "b@x.com"}.Email())
	assert.Equal(t, "b@x.com", Prospect{OwnerEmail: "b@x.com"}.Email())
	assert.Empty(t, Prospect{}.Email())
}

func TestProspectPlatformCount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Prospect{}.PlatformCount())
	assert.Equal(t, 2, Prospect{InstagramURL: "https://instagram.com/a", YelpURL: "https://yelp.com/biz/a"}.PlatformCount())
}

func TestSaveResultAdd(t *testing.T) {
	t.Parallel()

	r := SaveResult{Saved: 1}
	r.Add(SaveResult{Saved: 2, Skipped: 3, Errors: 1})
	assert.Equal(t, SaveResult{Saved: 3, Skipped: 3, Errors: 1}, r)
}

func TestFinalStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, RunStatusCompleted, FinalStatus(nil))
	assert.Equal(t, RunStatusPartial, FinalStatus([]RunError{{Step: StepScoring, Error: "boom"}}))
}

func TestSocialProfileAccessors(t *testing.T) {
	t.Parallel()

	var nilProfile *SocialProfile
	assert.Equal(t, PostingPatterns{}, nilProfile.PostingPatterns())
	assert.Equal(t, EngagementDetails{}, nilProfile.EngagementDetails())

	p := &SocialProfile{RawData: SocialRawData{
		PostingPatterns:   &PostingPatterns{MaxGapDays: 21},
		EngagementDetails: &EngagementDetails{BestEngagement: 4.2},
	}}
	assert.Equal(t, 21, p.PostingPatterns().MaxGapDays)
	assert.InDelta(t, 4.2, p.EngagementDetails().BestEngagement, 1e-9)
}

func TestLearningModeValid(t *testing.T) {
	t.Parallel()

	assert.True(t, LearningPassive.Valid())
	assert.True(t, LearningAutonomous.Valid())
	assert.False(t, LearningMode("eager").Valid())
}
