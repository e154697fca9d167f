package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/geospark-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Target     TargetConfig     `yaml:"target" mapstructure:"target"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	RateLimits RateLimitConfig  `yaml:"rate_limits" mapstructure:"rate_limits"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Outscraper OutscraperConfig `yaml:"outscraper" mapstructure:"outscraper"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Instantly  InstantlyConfig  `yaml:"instantly" mapstructure:"instantly"`
	Instagram  InstagramConfig  `yaml:"instagram" mapstructure:"instagram"`
	Catalog    CatalogConfig    `yaml:"catalog" mapstructure:"catalog"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// ServerConfig configures the webhook server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port" validate:"gt=0,lt=65536"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// TargetConfig is the static market a daily run scrapes.
type TargetConfig struct {
	City        string `yaml:"city" mapstructure:"city" validate:"required"`
	State       string `yaml:"state" mapstructure:"state"`
	Category    string `yaml:"category" mapstructure:"category" validate:"required"`
	DailyTarget int    `yaml:"daily_target" mapstructure:"daily_target" validate:"gt=0"`
}

// PipelineConfig configures step behavior of the daily run.
type PipelineConfig struct {
	Enabled            bool    `yaml:"enabled" mapstructure:"enabled"`
	UploadEnabled      bool    `yaml:"upload_enabled" mapstructure:"upload_enabled"`
	LearningMode       string  `yaml:"learning_mode" mapstructure:"learning_mode" validate:"oneof=passive active autonomous"`
	ScoreBatch         int     `yaml:"score_batch" mapstructure:"score_batch" validate:"gt=0"`
	InsightsBatch      int     `yaml:"insights_batch" mapstructure:"insights_batch" validate:"gt=0,lte=50"`
	InsightsDelaySecs  float64 `yaml:"insights_delay_secs" mapstructure:"insights_delay_secs" validate:"gte=0"`
	EmailsBatch        int     `yaml:"emails_batch" mapstructure:"emails_batch" validate:"gt=0"`
	MaxCompetitors     int     `yaml:"max_competitors" mapstructure:"max_competitors" validate:"gte=0"`
	SenderFirstName    string  `yaml:"sender_first_name" mapstructure:"sender_first_name"`
	SocialProofStage   int     `yaml:"social_proof_stage" mapstructure:"social_proof_stage"`
	SequenceDaySpacing []int   `yaml:"sequence_day_spacing" mapstructure:"sequence_day_spacing" validate:"len=4"`
	MinSampleSize      int     `yaml:"min_sample_size" mapstructure:"min_sample_size" validate:"gt=0"`
	AutoApplyThreshold int     `yaml:"auto_apply_threshold" mapstructure:"auto_apply_threshold" validate:"gte=0,lte=100"`
}

// ScoringConfig holds tier cutoffs and the neutral values used when a
// prospect has no social data.
type ScoringConfig struct {
	Tier1Min int `yaml:"tier_1_min" mapstructure:"tier_1_min"`
	Tier2Min int `yaml:"tier_2_min" mapstructure:"tier_2_min"`
	Tier3Min int `yaml:"tier_3_min" mapstructure:"tier_3_min"`
	Tier4Min int `yaml:"tier_4_min" mapstructure:"tier_4_min"`

	NoSocialPosting    int `yaml:"no_social_posting" mapstructure:"no_social_posting"`
	NoSocialEngagement int `yaml:"no_social_engagement" mapstructure:"no_social_engagement"`
	NoEngagementRate   int `yaml:"no_engagement_rate" mapstructure:"no_engagement_rate"`
	NoSocialContent    int `yaml:"no_social_content" mapstructure:"no_social_content"`
	NoSocialFollowers  int `yaml:"no_social_followers" mapstructure:"no_social_followers"`
}

// RateLimitConfig holds the minimum seconds between calls per resource.
type RateLimitConfig struct {
	InstagramSecs  float64 `yaml:"instagram_secs" mapstructure:"instagram_secs" validate:"gte=0"`
	YelpSecs       float64 `yaml:"yelp_secs" mapstructure:"yelp_secs" validate:"gte=0"`
	SearchSecs     float64 `yaml:"search_secs" mapstructure:"search_secs" validate:"gte=0"`
	WebSecs        float64 `yaml:"web_secs" mapstructure:"web_secs" validate:"gte=0"`
	OutscraperSecs float64 `yaml:"outscraper_secs" mapstructure:"outscraper_secs" validate:"gte=0"`
	InstantlySecs  float64 `yaml:"instantly_secs" mapstructure:"instantly_secs" validate:"gte=0"`
	ClaudeRPM      int     `yaml:"claude_rpm" mapstructure:"claude_rpm" validate:"gt=0"`
}

// RetryConfig is the default retry policy for external calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts" validate:"gt=0"`
	DelaySecs        float64 `yaml:"delay_secs" mapstructure:"delay_secs" validate:"gte=0"`
	Backoff          float64 `yaml:"backoff" mapstructure:"backoff" validate:"gte=1"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold" validate:"gt=0"`
}

// OutscraperConfig holds Outscraper API settings.
type OutscraperConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url" validate:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	Model             string `yaml:"model" mapstructure:"model" validate:"required"`
	InsightsMaxTokens int    `yaml:"insights_max_tokens" mapstructure:"insights_max_tokens" validate:"gt=0"`
	EmailsMaxTokens   int    `yaml:"emails_max_tokens" mapstructure:"emails_max_tokens" validate:"gt=0"`
}

// InstantlyConfig holds Instantly v2 API settings.
type InstantlyConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url" validate:"url"`
	Timezone    string `yaml:"timezone" mapstructure:"timezone"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
}

// InstagramConfig holds settings for the Instagram web profile endpoint.
type InstagramConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url" validate:"url"`
	SessionID   string `yaml:"session_id" mapstructure:"session_id"`
	MaxPosts    int    `yaml:"max_posts" mapstructure:"max_posts" validate:"gt=0,lte=50"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
}

// CatalogConfig points at an optional source catalog override file.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// MonitoringConfig configures run health alerts.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url" validate:"omitempty,url"`
	PartialRateThreshold float64 `yaml:"partial_rate_threshold" mapstructure:"partial_rate_threshold" validate:"gte=0,lte=1"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd" validate:"gte=0"`
	LookbackDays         int     `yaml:"lookback_days" mapstructure:"lookback_days" validate:"gte=0"`
	StuckRunHours        int     `yaml:"stuck_run_hours" mapstructure:"stuck_run_hours" validate:"gte=0"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs" validate:"gte=0"`
}

// Validation modes.
const (
	ModeRun   = "run"
	ModeServe = "serve"
	ModeScore = "score"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GEOSPARK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "geospark.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("target.city", "Denver, CO")
	v.SetDefault("target.state", "Colorado")
	v.SetDefault("target.category", "Hair Salon")
	v.SetDefault("target.daily_target", 100)

	v.SetDefault("pipeline.enabled", true)
	v.SetDefault("pipeline.upload_enabled", false)
	v.SetDefault("pipeline.learning_mode", "passive")
	v.SetDefault("pipeline.score_batch", 500)
	v.SetDefault("pipeline.insights_batch", 50)
	v.SetDefault("pipeline.insights_delay_secs", 2)
	v.SetDefault("pipeline.emails_batch", 50)
	v.SetDefault("pipeline.max_competitors", 2)
	v.SetDefault("pipeline.sender_first_name", "James")
	v.SetDefault("pipeline.social_proof_stage", 1)
	v.SetDefault("pipeline.sequence_day_spacing", []int{0, 3, 7, 12})
	v.SetDefault("pipeline.min_sample_size", 50)
	v.SetDefault("pipeline.auto_apply_threshold", 85)

	v.SetDefault("scoring.tier_1_min", 80)
	v.SetDefault("scoring.tier_2_min", 70)
	v.SetDefault("scoring.tier_3_min", 60)
	v.SetDefault("scoring.tier_4_min", 50)
	v.SetDefault("scoring.no_social_posting", 8)
	v.SetDefault("scoring.no_social_engagement", 5)
	v.SetDefault("scoring.no_engagement_rate", 7)
	v.SetDefault("scoring.no_social_content", 4)
	v.SetDefault("scoring.no_social_followers", 3)

	v.SetDefault("rate_limits.instagram_secs", 60)
	v.SetDefault("rate_limits.yelp_secs", 3)
	v.SetDefault("rate_limits.search_secs", 3)
	v.SetDefault("rate_limits.web_secs", 1)
	v.SetDefault("rate_limits.outscraper_secs", 1)
	v.SetDefault("rate_limits.instantly_secs", 1)
	v.SetDefault("rate_limits.claude_rpm", 20)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay_secs", 2)
	v.SetDefault("retry.backoff", 2.0)
	v.SetDefault("retry.failure_threshold", 2)

	v.SetDefault("outscraper.base_url", "https://api.app.outscraper.com")
	v.SetDefault("outscraper.timeout_secs", 120)
	v.SetDefault("anthropic.model", "claude-sonnet-4-20250514")
	v.SetDefault("anthropic.insights_max_tokens", 2000)
	v.SetDefault("anthropic.emails_max_tokens", 3000)
	v.SetDefault("instantly.base_url", "https://api.instantly.ai/api/v2")
	v.SetDefault("instantly.timezone", "America/Denver")
	v.SetDefault("instantly.timeout_secs", 30)
	v.SetDefault("instagram.base_url", "https://i.instagram.com")
	v.SetDefault("instagram.max_posts", 50)
	v.SetDefault("instagram.timeout_secs", 30)

	v.SetDefault("monitoring.partial_rate_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 25.0)
	v.SetDefault("monitoring.lookback_days", 7)
	v.SetDefault("monitoring.stuck_run_hours", 6)
	v.SetDefault("monitoring.check_interval_secs", 3600)
}

// Validate checks struct constraints and the credentials the given mode
// needs. Every problem is reported in one error.
func (c *Config) Validate(mode string) error {
	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if eris.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fe.Namespace()+" failed "+fe.Tag())
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for postgres")
	}
	s := c.Scoring
	if !(s.Tier1Min > s.Tier2Min && s.Tier2Min > s.Tier3Min && s.Tier3Min > s.Tier4Min && s.Tier4Min >= 0 && s.Tier1Min <= 100) {
		problems = append(problems, "scoring tier cutoffs must be strictly descending within 0-100")
	}

	switch mode {
	case ModeServe, ModeScore:
	case ModeRun:
		if c.Outscraper.Key == "" {
			problems = append(problems, "outscraper.key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Pipeline.UploadEnabled && c.Instantly.Key == "" {
			problems = append(problems, "instantly.key is required when upload is enabled")
		}
	default:
		problems = append(problems, "unknown mode "+mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// RateLimitIntervals returns the per-resource limiter intervals.
func (c *Config) RateLimitIntervals() map[string]time.Duration {
	r := c.RateLimits
	out := map[string]time.Duration{
		resilience.ResourceInstagram:  resilience.Seconds(r.InstagramSecs),
		resilience.ResourceYelp:       resilience.Seconds(r.YelpSecs),
		resilience.ResourceSearch:     resilience.Seconds(r.SearchSecs),
		resilience.ResourceWeb:        resilience.Seconds(r.WebSecs),
		resilience.ResourceOutscraper: resilience.Seconds(r.OutscraperSecs),
		resilience.ResourceInstantly:  resilience.Seconds(r.InstantlySecs),
	}
	if r.ClaudeRPM > 0 {
		out[resilience.ResourceClaude] = time.Minute / time.Duration(r.ClaudeRPM)
	}
	return out
}

// RetryPolicy returns the configured retry policy.
func (c *Config) RetryPolicy() resilience.RetryConfig {
	return resilience.FromRetrySettings(c.Retry.MaxAttempts, c.Retry.DelaySecs, c.Retry.Backoff)
}

// BreakerPolicy returns the configured channel breaker policy.
func (c *Config) BreakerPolicy() resilience.BreakerConfig {
	return resilience.FromBreakerSettings(c.Retry.FailureThreshold)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
