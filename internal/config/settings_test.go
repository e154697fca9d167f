package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

func TestParseSettings(t *testing.T) {
	t.Parallel()

	got := ParseSettings(map[string]any{
		KeyPipelineEnabled:   false,
		KeyDailyScrapeTarget: float64(40),
		KeyLearningMode:      "active",
		KeyTargetCity:        "Austin, TX",
		KeyUploadEnabled:     "true",
		KeyTargetCreators: map[string]any{
			"Hair Salon": []any{"@salonguru", "stylecoach", 7},
		},
		"unrelated": "x",
	})

	require.NotNil(t, got.PipelineEnabled)
	assert.False(t, *got.PipelineEnabled)
	require.NotNil(t, got.DailyScrapeTarget)
	assert.Equal(t, 40, *got.DailyScrapeTarget)
	require.NotNil(t, got.LearningMode)
	assert.Equal(t, model.LearningActive, *got.LearningMode)
	require.NotNil(t, got.TargetCity)
	assert.Equal(t, "Austin, TX", *got.TargetCity)
	assert.Nil(t, got.TargetCategory)
	require.NotNil(t, got.UploadEnabled)
	assert.True(t, *got.UploadEnabled)
	assert.Equal(t, []string{"salonguru", "stylecoach"}, got.TargetCreators["Hair Salon"])
}

func TestParseSettings_IgnoresMalformed(t *testing.T) {
	t.Parallel()

	got := ParseSettings(map[string]any{
		KeyPipelineEnabled:   []any{"yes"},
		KeyDailyScrapeTarget: float64(-3),
		KeyLearningMode:      "chaotic",
		KeyTargetCategory:    "   ",
	})
	assert.Nil(t, got.PipelineEnabled)
	assert.Nil(t, got.DailyScrapeTarget)
	assert.Nil(t, got.LearningMode)
	assert.Nil(t, got.TargetCategory)
}

func TestSnapshot_ApplyAndOverride(t *testing.T) {
	t.Parallel()

	base := Snapshot{
		Enabled:      true,
		City:         "Denver, CO",
		Category:     "Hair Salon",
		DailyTarget:  100,
		LearningMode: model.LearningPassive,
	}
	off := false
	target := 30
	snap := base.Apply(Settings{PipelineEnabled: &off, DailyScrapeTarget: &target})
	assert.False(t, snap.Enabled)
	assert.Equal(t, 30, snap.DailyTarget)
	assert.Equal(t, "Denver, CO", snap.City)
	assert.True(t, base.Enabled, "apply must not mutate the receiver")

	snap = snap.Override(Overrides{City: "Boulder, CO", DailyTarget: 5})
	assert.Equal(t, "Boulder, CO", snap.City)
	assert.Equal(t, "Hair Salon", snap.Category)
	assert.Equal(t, 5, snap.DailyTarget)

	m := snap.Map()
	assert.Equal(t, "Boulder, CO", m["target_city"])
	assert.Equal(t, 5, m["daily_target"])
	assert.Equal(t, "passive", m["learning_mode"])
}

func TestStoreSettings_Fetch(t *testing.T) {
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	require.NoError(t, store.PutSetting(ctx, s, KeyPipelineEnabled, false))
	require.NoError(t, store.PutSetting(ctx, s, KeyDailyScrapeTarget, 12))

	got, err := NewStoreSettings(s).Fetch(ctx)
	require.NoError(t, err)
	require.NotNil(t, got.PipelineEnabled)
	assert.False(t, *got.PipelineEnabled)
	require.NotNil(t, got.DailyScrapeTarget)
	assert.Equal(t, 12, *got.DailyScrapeTarget)
}
