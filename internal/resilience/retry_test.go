package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts: attempts,
		Delay:       1 * time.Millisecond,
		Backoff:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("temporary"), 503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_AlwaysFailing_CalledMaxAttemptsAndErrorUnchanged(t *testing.T) {
	sentinel := errors.New("connection refused by upstream")
	for _, attempts := range []int{1, 2, 3, 5} {
		var calls int
		err := Do(context.Background(), fastRetry(attempts), func(_ context.Context) error {
			calls++
			return sentinel
		})
		if err != sentinel {
			t.Fatalf("attempts=%d: expected original error, got %v", attempts, err)
		}
		if calls != attempts {
			t.Errorf("attempts=%d: expected %d calls, got %d", attempts, attempts, calls)
		}
	}
}

func TestDo_RateLimited_NoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return RateLimitedf("instagram: 429")
	})
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call for rate-limited error, got %d", calls)
	}
}

func TestDo_ParseError_NoRetry(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetry(3), func(_ context.Context) error {
		calls++
		return NewParseError("yelp", errors.New("no rating element"))
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 call for parse error, got %d", calls)
	}
}

func TestDo_ContextCancelled_StopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts: 5,
		Delay:       50 * time.Millisecond,
		Backoff:     2.0,
	}

	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Errorf("expected 2 calls after cancel, got %d", calls)
	}
}

func TestDo_CustomShouldRetry(t *testing.T) {
	var calls int
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool {
		return err.Error() == "retry me"
	}

	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("retry me")
		}
		return errors.New("stop here")
	})
	if err == nil || err.Error() != "stop here" {
		t.Fatalf("expected stop error, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 calls, got %d", calls)
	}
}

func TestDo_OnRetryCallback(t *testing.T) {
	var retryAttempts []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, _ error) {
		retryAttempts = append(retryAttempts, attempt)
	}

	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("fail"), 500)
	})

	if len(retryAttempts) != 2 {
		t.Fatalf("expected 2 OnRetry calls, got %d", len(retryAttempts))
	}
	if retryAttempts[0] != 1 || retryAttempts[1] != 2 {
		t.Errorf("expected attempts [1, 2], got %v", retryAttempts)
	}
}

func TestDo_WaitsBetweenAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, Delay: 10 * time.Millisecond, Backoff: 2.0}

	start := time.Now()
	_ = Do(context.Background(), cfg, func(_ context.Context) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)

	// 10ms + 20ms between three attempts.
	if elapsed < 30*time.Millisecond {
		t.Errorf("expected at least 30ms of backoff, got %v", elapsed)
	}
}

func TestDoVal_ReturnsValueOnSuccess(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewTransientError(errors.New("fail"), 500)
		}
		return "hello", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "hello" {
		t.Errorf("expected %q, got %q", "hello", val)
	}
}

func TestDoVal_EmptyResultIsNotRetried(t *testing.T) {
	var calls int
	val, err := DoVal(context.Background(), fastRetry(3), func(_ context.Context) (*string, error) {
		calls++
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil result, got %v", *val)
	}
	if calls != 1 {
		t.Errorf("expected 1 call for empty result, got %d", calls)
	}
}

func TestDoVal_ReturnsZeroOnFailure(t *testing.T) {
	val, err := DoVal(context.Background(), fastRetry(2), func(_ context.Context) (int, error) {
		return 42, NewTransientError(errors.New("fail"), 500)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if val != 0 {
		t.Errorf("expected zero value on failure, got %d", val)
	}
}

func TestDo_DefaultConfig(t *testing.T) {
	var calls atomic.Int32
	err := Do(context.Background(), RetryConfig{}, func(_ context.Context) error {
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestBackoffFor_ExponentialGrowth(t *testing.T) {
	cfg := applyDefaults(RetryConfig{Delay: 2 * time.Second, Backoff: 2.0})

	expected := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, want := range expected {
		if got := BackoffFor(i+1, cfg); got != want {
			t.Errorf("attempt %d: expected %v, got %v", i+1, want, got)
		}
	}
}

func TestBackoffFor_CapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{Delay: time.Second, Backoff: 10.0, MaxDelay: 5 * time.Second})

	if delay := BackoffFor(5, cfg); delay != 5*time.Second {
		t.Errorf("expected delay capped at 5s, got %v", delay)
	}
}

func TestBackoffFor_WithJitter(t *testing.T) {
	cfg := applyDefaults(RetryConfig{Delay: time.Second, Backoff: 2.0, JitterFraction: 0.5})

	seen := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		d := BackoffFor(1, cfg)
		seen[d] = true
		if d < 500*time.Millisecond || d > 1500*time.Millisecond {
			t.Errorf("delay %v outside expected range [500ms, 1500ms]", d)
		}
	}
	if len(seen) < 2 {
		t.Error("expected jitter to produce varying delays")
	}
}

func TestFromRetrySettings(t *testing.T) {
	cfg := FromRetrySettings(4, 1.5, 3)
	if cfg.MaxAttempts != 4 {
		t.Errorf("expected 4 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.Delay != 1500*time.Millisecond {
		t.Errorf("expected 1.5s delay, got %v", cfg.Delay)
	}
	if cfg.Backoff != 3 {
		t.Errorf("expected backoff 3, got %v", cfg.Backoff)
	}

	def := FromRetrySettings(0, -1, 0)
	if def.MaxAttempts != 3 || def.Delay != 2*time.Second || def.Backoff != 2.0 {
		t.Errorf("expected defaults, got %+v", def)
	}
}

func TestRetryLogger(t *testing.T) {
	t.Parallel()
	logger := RetryLogger("outscraper", "maps_search")
	logger(1, errors.New("test error"))
}
