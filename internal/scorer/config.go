// Package scorer computes the 100-point GeoSpark prospect score: five
// problem signals and five readiness signals of 50 points each, plus a flat
// bonus for engagement-sourced prospects.
package scorer

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/config"
)

// Defaults are the points awarded when the signal's data is missing. They
// encode a business judgment and are configurable.
type Defaults struct {
	// Posting is used when there is no social profile at all.
	Posting int `json:"posting"`
	// Engagement is used when there is no social profile at all.
	Engagement int `json:"engagement"`
	// EngagementRate is used when a profile exists but has no engagement rate.
	EngagementRate int `json:"engagement_rate"`
	// Content is used when there is no profile or no content classification.
	Content int `json:"content"`
	// Followers is used when there is no social profile at all.
	Followers int `json:"followers"`
}

// Config holds the tier cut points and no-data defaults.
type Config struct {
	Tier1Min int      `json:"tier_1_min"`
	Tier2Min int      `json:"tier_2_min"`
	Tier3Min int      `json:"tier_3_min"`
	Tier4Min int      `json:"tier_4_min"`
	Defaults Defaults `json:"defaults"`
}

// DefaultConfig returns the standard cut points (80/70/60/50) and defaults.
func DefaultConfig() Config {
	return Config{
		Tier1Min: 80,
		Tier2Min: 70,
		Tier3Min: 60,
		Tier4Min: 50,
		Defaults: Defaults{
			Posting:        8,
			Engagement:     5,
			EngagementRate: 7,
			Content:        4,
			Followers:      3,
		},
	}
}

// FromConfig converts the scoring section of the application config.
func FromConfig(c config.ScoringConfig) Config {
	return Config{
		Tier1Min: c.Tier1Min,
		Tier2Min: c.Tier2Min,
		Tier3Min: c.Tier3Min,
		Tier4Min: c.Tier4Min,
		Defaults: Defaults{
			Posting:        c.NoSocialPosting,
			Engagement:     c.NoSocialEngagement,
			EngagementRate: c.NoEngagementRate,
			Content:        c.NoSocialContent,
			Followers:      c.NoSocialFollowers,
		},
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	if c.Tier1Min > 100 {
		errs = append(errs, "tier_1_min must be <= 100")
	}
	if !(c.Tier1Min > c.Tier2Min && c.Tier2Min > c.Tier3Min && c.Tier3Min > c.Tier4Min) {
		errs = append(errs, "tier cut points must be strictly descending")
	}
	if c.Tier4Min < 0 {
		errs = append(errs, "tier_4_min must be >= 0")
	}

	d := c.Defaults
	limits := []struct {
		name     string
		val, max int
	}{
		{"defaults.posting", d.Posting, maxPosting},
		{"defaults.engagement", d.Engagement, maxEngagement},
		{"defaults.engagement_rate", d.EngagementRate, maxEngagement},
		{"defaults.content", d.Content, maxContent},
		{"defaults.followers", d.Followers, maxFollowers},
	}
	for _, l := range limits {
		if l.val < 0 || l.val > l.max {
			errs = append(errs, fmt.Sprintf("%s must be between 0 and %d", l.name, l.max))
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ConfigHash returns a short SHA-256 hash of the scoring config so a run can
// record which calibration produced its scores.
func ConfigHash(cfg Config) string {
	data, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:8])
}
