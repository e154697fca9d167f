package scorer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

// scenarioProspect is an established salon with strong reviews and a quiet
// Instagram account.
func scenarioProspect() (*model.Prospect, *model.SocialProfile) {
	p := &model.Prospect{
		BusinessName:       "Glow Studio",
		City:               "Denver",
		GoogleRating:       4.6,
		GoogleReviewsCount: 80,
		InstagramURL:       "https://instagram.com/glowstudio",
		ProspectSource:     model.SourceOutscraper,
	}
	social := &model.SocialProfile{
		Platform:        model.PlatformInstagram,
		Followers:       1200,
		PostsLast30Days: 0,
		ToolsDetected:   []string{"canva"},
	}
	return p, social
}

func TestScore_EndToEndOutscraper(t *testing.T) {
	t.Parallel()
	p, social := scenarioProspect()

	r := New(DefaultConfig()).Score(p, social)

	assert.Equal(t, 60, r.Score)
	assert.Equal(t, model.Tier3, r.Tier)

	want := map[string]int{
		KeyInconsistentPosting: 10,
		KeyLowEngagement:       7,
		KeyReviewSocialGap:     10,
		KeyPartialPlatform:     5,
		KeyGenericContent:      4,
		KeyUsingTools:          4,
		KeyReviewQuality:       10,
		KeyFollowerRange:       10,
		KeyContentQualityGap:   0,
		KeyEmailConfidence:     0,
	}
	for k, pts := range want {
		assert.Equal(t, pts, r.Breakdown[k].Points, k)
		assert.NotEmpty(t, r.Breakdown[k].Reason, k)
	}
	assert.Equal(t, 36, r.ProblemScore)
	assert.Equal(t, 24, r.ReadinessScore)
	_, hasBonus := r.Breakdown[KeyEngagementBonus]
	assert.False(t, hasBonus)
}

func TestScore_EndToEndEngagement(t *testing.T) {
	t.Parallel()
	p, social := scenarioProspect()
	p.ProspectSource = model.SourceEngagement

	r := New(DefaultConfig()).Score(p, social)

	assert.Equal(t, 75, r.Score)
	assert.Equal(t, model.Tier2, r.Tier)
	assert.Equal(t, 15, r.Breakdown[KeyEngagementBonus].Points)
}

func TestScore_EngagementBonusIsExactlyFifteen(t *testing.T) {
	t.Parallel()
	s := New(DefaultConfig())

	p := &model.Prospect{GoogleRating: 3.9, GoogleReviewsCount: 5}
	base := s.Score(p, nil)

	p.ProspectSource = model.SourceEngagement
	bumped := s.Score(p, nil)

	assert.Equal(t, 15, bumped.Score-base.Score)
}

func TestScore_NoSocialUsesDefaults(t *testing.T) {
	t.Parallel()
	p := &model.Prospect{}

	r := New(DefaultConfig()).Score(p, nil)

	assert.Equal(t, 8, r.Breakdown[KeyInconsistentPosting].Points)
	assert.Equal(t, 5, r.Breakdown[KeyLowEngagement].Points)
	assert.Equal(t, 0, r.Breakdown[KeyReviewSocialGap].Points)
	assert.Equal(t, 7, r.Breakdown[KeyPartialPlatform].Points)
	assert.Equal(t, 4, r.Breakdown[KeyGenericContent].Points)
	assert.Equal(t, 0, r.Breakdown[KeyUsingTools].Points)
	assert.Equal(t, 3, r.Breakdown[KeyFollowerRange].Points)
	assert.Equal(t, 27, r.Score)
	assert.Equal(t, model.Tier5, r.Tier)
}

func TestScore_DefaultsAreConfigurable(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Defaults = Defaults{}

	r := New(cfg).Score(&model.Prospect{}, nil)
	assert.Equal(t, 7, r.Score, "only the platform signal should score")
}

func TestScore_MaximumIsClamped(t *testing.T) {
	t.Parallel()
	p := &model.Prospect{
		GoogleRating:       4.9,
		GoogleReviewsCount: 300,
		ContactEmail:       "owner@salon.com",
		EmailConfidence:    model.ConfidenceHigh,
		ProspectSource:     model.SourceEngagement,
	}
	social := &model.SocialProfile{
		Followers:        2000,
		EngagementRate:   0.4,
		ToolsDetected:    []string{"canva", "linktree", "later", "vagaro"},
		ContentBreakdown: map[string]model.ContentShare{"promotional": {Count: 9, Pct: 90}},
		RawData: model.SocialRawData{
			PostingPatterns:   &model.PostingPatterns{MaxGapDays: 45},
			EngagementDetails: &model.EngagementDetails{BestEngagement: 8, WorstEngagement: 1},
		},
	}

	r := New(DefaultConfig()).Score(p, social)
	assert.Equal(t, 50, r.ProblemScore)
	assert.Equal(t, 50, r.ReadinessScore)
	assert.Equal(t, 100, r.Score)
	assert.Equal(t, model.Tier1, r.Tier)
	assert.Equal(t, 12, r.Breakdown[KeyUsingTools].Points)
	assert.Equal(t, 15, r.Breakdown[KeyInconsistentPosting].Points)
}

func TestScore_AlwaysWithinBounds(t *testing.T) {
	t.Parallel()
	s := New(DefaultConfig())

	ratings := []float64{0, 3.5, 4.0, 4.7}
	reviews := []int{0, 10, 25, 120}
	followers := []int{0, 150, 300, 2500, 9000, 40000}
	posts := []int{0, 2, 5, 12}
	sources := []model.Source{model.SourceOutscraper, model.SourceFresh, model.SourceEngagement}

	for _, rating := range ratings {
		for _, rv := range reviews {
			for _, f := range followers {
				for _, n := range posts {
					for _, src := range sources {
						p := &model.Prospect{GoogleRating: rating, GoogleReviewsCount: rv, ProspectSource: src}
						social := &model.SocialProfile{Followers: f, PostsLast30Days: n}
						for _, sp := range []*model.SocialProfile{nil, social} {
							r := s.Score(p, sp)
							require.GreaterOrEqual(t, r.Score, 0)
							require.LessOrEqual(t, r.Score, 100)
						}
					}
				}
			}
		}
	}
}

func TestTier_BoundariesAndMonotonic(t *testing.T) {
	t.Parallel()
	s := New(DefaultConfig())

	tests := []struct {
		score int
		want  model.Tier
	}{
		{100, model.Tier1},
		{80, model.Tier1},
		{79, model.Tier2},
		{70, model.Tier2},
		{69, model.Tier3},
		{60, model.Tier3},
		{59, model.Tier4},
		{50, model.Tier4},
		{49, model.Tier5},
		{0, model.Tier5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.Tier(tt.score), "score %d", tt.score)
	}

	prev := s.Tier(0).Rank()
	for score := 1; score <= 100; score++ {
		rank := s.Tier(score).Rank()
		require.GreaterOrEqual(t, rank, prev, "score %d", score)
		prev = rank
	}
}

func TestSignals_Engagement(t *testing.T) {
	t.Parallel()
	d := DefaultConfig().Defaults

	tests := []struct {
		rate float64
		want int
	}{
		{0, 7},
		{0.5, 10},
		{1.5, 7},
		{3.0, 4},
		{3.5, 1},
		{8, 1},
	}
	for _, tt := range tests {
		got := engagement(&model.SocialProfile{EngagementRate: tt.rate}, d)
		assert.Equal(t, tt.want, got.Points, "rate %.1f", tt.rate)
	}
}

func TestSignals_PostingGap(t *testing.T) {
	t.Parallel()
	d := DefaultConfig().Defaults

	social := &model.SocialProfile{
		PostsLast30Days: 5,
		RawData:         model.SocialRawData{PostingPatterns: &model.PostingPatterns{MaxGapDays: 20}},
	}
	got := postingConsistency(social, d)
	assert.Equal(t, 7, got.Points)
	assert.Contains(t, got.Reason, "20-day posting gap")

	social.PostsLast30Days = 10
	social.RawData.PostingPatterns.MaxGapDays = 3
	got = postingConsistency(social, d)
	assert.Equal(t, 0, got.Points)
	assert.Equal(t, "Consistent posting", got.Reason)
}

func TestSignals_ContentVariance(t *testing.T) {
	t.Parallel()

	mk := func(best, worst float64) *model.SocialProfile {
		return &model.SocialProfile{RawData: model.SocialRawData{
			EngagementDetails: &model.EngagementDetails{BestEngagement: best, WorstEngagement: worst},
		}}
	}
	assert.Equal(t, 10, contentVariance(mk(7, 2)).Points)
	assert.Equal(t, 7, contentVariance(mk(5, 2)).Points)
	assert.Equal(t, 4, contentVariance(mk(3.2, 2)).Points)
	assert.Equal(t, 0, contentVariance(mk(2.5, 2)).Points)
	assert.Equal(t, 0, contentVariance(mk(5, 0)).Points)
}

func TestSignals_EmailConfidence(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, emailConfidence(&model.Prospect{}).Points)
	assert.Equal(t, 8, emailConfidence(&model.Prospect{ContactEmail: "a@b.co", EmailConfidence: model.ConfidenceHigh}).Points)
	assert.Equal(t, 5, emailConfidence(&model.Prospect{OwnerEmail: "a@b.co", EmailConfidence: model.ConfidenceMedium}).Points)
	assert.Equal(t, 3, emailConfidence(&model.Prospect{ContactEmail: "a@b.co"}).Points)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateConfig(DefaultConfig()))

	cfg := DefaultConfig()
	cfg.Tier3Min = 75
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "strictly descending")

	cfg = DefaultConfig()
	cfg.Defaults.Content = 9
	err = ValidateConfig(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defaults.content")
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	got := FromConfig(config.ScoringConfig{
		Tier1Min: 80, Tier2Min: 70, Tier3Min: 60, Tier4Min: 50,
		NoSocialPosting: 8, NoSocialEngagement: 5, NoEngagementRate: 7,
		NoSocialContent: 4, NoSocialFollowers: 3,
	})
	assert.Equal(t, DefaultConfig(), got)
	assert.Equal(t, ConfigHash(DefaultConfig()), ConfigHash(got))
	assert.Len(t, ConfigHash(got), 16)
}

func TestScoreAndSave(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "score.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	p, social := scenarioProspect()
	p.PipelineStatus = model.PipelineEnriched
	_, err = store.InsertProspect(ctx, st, p)
	require.NoError(t, err)
	social.LeadID = p.ID
	_, err = store.SaveSocialProfile(ctx, st, social)
	require.NoError(t, err)

	r, err := New(DefaultConfig()).ScoreAndSave(ctx, st, p)
	require.NoError(t, err)
	assert.Equal(t, 60, r.Score)

	got, err := store.GetProspect(ctx, st, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.GeosparkScore)
	assert.Equal(t, model.Tier3, got.ScoreTier)
	assert.Equal(t, model.PipelineScored, got.PipelineStatus)
	assert.Equal(t, 36, got.ProblemScore)
	assert.Contains(t, got.ScoreBreakdown, KeyReviewQuality)
}

func TestSave_DoesNotRewindStatus(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "score.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, st.Migrate(ctx))

	p := &model.Prospect{BusinessName: "Late", PipelineStatus: model.PipelineEmailsGenerated}
	_, err = store.InsertProspect(ctx, st, p)
	require.NoError(t, err)

	s := New(DefaultConfig())
	require.NoError(t, Save(ctx, st, p, s.Score(p, nil)))

	got, err := store.GetProspect(ctx, st, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PipelineEmailsGenerated, got.PipelineStatus)
	assert.Equal(t, 27, got.GeosparkScore)
}
