package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/resilience"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

// loadDefaults returns a Config populated from defaults only.
func loadDefaults(t *testing.T) *Config {
	t.Helper()
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "Denver, CO", cfg.Target.City)
	assert.Equal(t, "Hair Salon", cfg.Target.Category)
	assert.Equal(t, 100, cfg.Target.DailyTarget)
	assert.True(t, cfg.Pipeline.Enabled)
	assert.False(t, cfg.Pipeline.UploadEnabled)
	assert.Equal(t, "passive", cfg.Pipeline.LearningMode)
	assert.Equal(t, 50, cfg.Pipeline.InsightsBatch)
	assert.Equal(t, 500, cfg.Pipeline.ScoreBatch)
	assert.Equal(t, []int{0, 3, 7, 12}, cfg.Pipeline.SequenceDaySpacing)
	assert.Equal(t, 80, cfg.Scoring.Tier1Min)
	assert.Equal(t, 50, cfg.Scoring.Tier4Min)
	assert.InDelta(t, 60, cfg.RateLimits.InstagramSecs, 0.001)
	assert.Equal(t, 20, cfg.RateLimits.ClaudeRPM)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.Anthropic.Model)
	assert.Equal(t, 2000, cfg.Anthropic.InsightsMaxTokens)
	assert.Equal(t, 3000, cfg.Anthropic.EmailsMaxTokens)
	assert.Equal(t, "https://api.instantly.ai/api/v2", cfg.Instantly.BaseURL)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
	assert.InDelta(t, 0.5, cfg.Monitoring.PartialRateThreshold, 0.001)
	assert.Equal(t, 7, cfg.Monitoring.LookbackDays)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/geospark
log:
  level: debug
  format: console
target:
  city: Austin, TX
  category: Nail Salon
  daily_target: 25
pipeline:
  learning_mode: autonomous
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "Austin, TX", cfg.Target.City)
	assert.Equal(t, 25, cfg.Target.DailyTarget)
	assert.Equal(t, "autonomous", cfg.Pipeline.LearningMode)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Pipeline.EmailsBatch)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GEOSPARK_STORE_DRIVER", "postgres")
	t.Setenv("GEOSPARK_LOG_LEVEL", "warn")
	t.Setenv("GEOSPARK_TARGET_DAILY_TARGET", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Target.DailyTarget)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestValidateRun_AllPresent(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Outscraper.Key = "os-key"
	cfg.Anthropic.Key = "sk-ant-key"

	assert.NoError(t, cfg.Validate(ModeRun))
}

func TestValidateRun_MissingKeys(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Pipeline.UploadEnabled = true

	err := cfg.Validate(ModeRun)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outscraper.key is required")
	assert.Contains(t, err.Error(), "anthropic.key is required")
	assert.Contains(t, err.Error(), "instantly.key is required")
}

func TestValidateServe_NoCredentialsNeeded(t *testing.T) {
	cfg := loadDefaults(t)
	assert.NoError(t, cfg.Validate(ModeServe))
}

func TestValidate_StructTags(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Server.Port = 0
	cfg.Pipeline.LearningMode = "reckless"
	cfg.Pipeline.InsightsBatch = 80

	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Server.Port")
	assert.Contains(t, err.Error(), "Pipeline.LearningMode")
	assert.Contains(t, err.Error(), "Pipeline.InsightsBatch")
}

func TestValidate_MonitoringWebhookURL(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Monitoring.WebhookURL = "not a url"

	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Monitoring.WebhookURL")

	cfg.Monitoring.WebhookURL = "https://hooks.example.com/geospark"
	assert.NoError(t, cfg.Validate(ModeServe))
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate(ModeServe)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_TierCutoffsDescending(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Scoring.Tier2Min = 85

	err := cfg.Validate(ModeScore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tier cutoffs")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := loadDefaults(t)
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestRateLimitIntervals(t *testing.T) {
	cfg := loadDefaults(t)
	got := cfg.RateLimitIntervals()

	assert.Equal(t, 60*time.Second, got[resilience.ResourceInstagram])
	assert.Equal(t, 3*time.Second, got[resilience.ResourceYelp])
	assert.Equal(t, 3*time.Second, got[resilience.ResourceClaude])
}

func TestRetryPolicy(t *testing.T) {
	cfg := loadDefaults(t)
	p := cfg.RetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 2*time.Second, p.Delay)
	assert.InDelta(t, 2.0, p.Backoff, 0.001)
	assert.Equal(t, 2, cfg.BreakerPolicy().FailureThreshold)
}
