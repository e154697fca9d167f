package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts (including the first try).
	// A value of 1 means no retries. Default: 3.
	MaxAttempts int

	// Delay is the wait before the second attempt. Default: 2s.
	Delay time.Duration

	// Backoff scales the wait after each attempt: the wait before attempt
	// n+1 is Delay * Backoff^(n-1). Default: 2.0.
	Backoff float64

	// MaxDelay caps a single wait. Zero means uncapped.
	MaxDelay time.Duration

	// JitterFraction adds random jitter as a fraction of the computed delay.
	// Zero (the default) keeps waits deterministic.
	JitterFraction float64

	// ShouldRetry optionally overrides the default Retryable check.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with attempt number and error.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the retry policy used for scraping and API calls.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       2 * time.Second,
		Backoff:     2.0,
	}
}

// Retryable is the default retry predicate. Every failure is retried except
// rate limiting, parse errors and caller cancellation.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimited(err) || IsParse(err) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// Do executes fn with retry logic according to cfg. After the final attempt
// the last error is returned unchanged.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal executes fn returning a value with retry logic. Same semantics as Do
// but preserves the return value from the successful call.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = Retryable
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(lastErr) || attempt == cfg.MaxAttempts {
			return zero, lastErr
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, lastErr)
		}

		timer := time.NewTimer(BackoffFor(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 2.0
	}
	if cfg.JitterFraction < 0 {
		cfg.JitterFraction = 0
	}
	return cfg
}

// BackoffFor returns the wait after the given failed attempt (1-based):
// Delay * Backoff^(attempt-1), capped by MaxDelay and jittered if configured.
func BackoffFor(attempt int, cfg RetryConfig) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.Delay) * math.Pow(cfg.Backoff, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}

	if cfg.JitterFraction > 0 {
		jitterRange := delay * cfg.JitterFraction
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
