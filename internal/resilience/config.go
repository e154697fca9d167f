package resilience

import (
	"time"
)

// FromRetrySettings converts config values to a RetryConfig.
func FromRetrySettings(maxAttempts int, delaySecs, backoff float64) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if delaySecs >= 0 {
		cfg.Delay = Seconds(delaySecs)
	}
	if backoff > 0 {
		cfg.Backoff = backoff
	}
	return cfg
}

// FromBreakerSettings converts config values to a BreakerConfig.
func FromBreakerSettings(failureThreshold int) BreakerConfig {
	cfg := BreakerConfig{FailureThreshold: 2}
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	return cfg
}

// Seconds converts a fractional number of seconds to a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
