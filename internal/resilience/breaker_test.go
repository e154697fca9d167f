package resilience

import (
	"context"
	"errors"
	"testing"
)

func TestBreaker_RateLimitedTripsImmediately(t *testing.T) {
	b := NewBreaker("engagement", BreakerConfig{FailureThreshold: 5})

	err := b.Execute(context.Background(), func(_ context.Context) error {
		return RateLimitedf("instagram: please wait")
	})
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	if !b.Open() {
		t.Fatal("expected breaker to open after rate limiting")
	}

	called := false
	err = b.Execute(context.Background(), func(_ context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrChannelDisabled) {
		t.Fatalf("expected ErrChannelDisabled, got %v", err)
	}
	if called {
		t.Error("disabled channel should not execute fn")
	}
	if !IsRateLimited(b.Cause()) {
		t.Error("cause should be the rate limit error")
	}
}

func TestBreaker_ConsecutiveFailures(t *testing.T) {
	b := NewBreaker("instagram", BreakerConfig{FailureThreshold: 2})
	fail := func(_ context.Context) error { return errors.New("timeout") }
	ok := func(_ context.Context) error { return nil }

	_ = b.Execute(context.Background(), fail)
	_ = b.Execute(context.Background(), ok)
	_ = b.Execute(context.Background(), fail)
	if b.Open() {
		t.Fatal("non-consecutive failures should not open the breaker")
	}

	_ = b.Execute(context.Background(), fail)
	if !b.Open() {
		t.Fatal("two consecutive failures should open the breaker")
	}
}

func TestBreaker_ParseErrorsDoNotCount(t *testing.T) {
	b := NewBreaker("yelp", BreakerConfig{FailureThreshold: 1})
	_ = b.Execute(context.Background(), func(_ context.Context) error {
		return NewParseError("yelp", errors.New("bad html"))
	})
	if b.Open() {
		t.Error("parse errors should not disable a channel")
	}
}

func TestExecuteVal(t *testing.T) {
	b := NewBreaker("outscraper", BreakerConfig{})
	v, err := ExecuteVal(context.Background(), b, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || v != "ok" {
		t.Fatalf("expected ok, got %q %v", v, err)
	}

	b.Trip(errors.New("manual"))
	v, err = ExecuteVal(context.Background(), b, func(_ context.Context) (string, error) {
		return "late", nil
	})
	if v != "" || !errors.Is(err, ErrChannelDisabled) {
		t.Fatalf("expected disabled, got %q %v", v, err)
	}
}

func TestBreakers_Registry(t *testing.T) {
	bs := NewBreakers(BreakerConfig{})
	if bs.Get("fresh") != bs.Get("fresh") {
		t.Fatal("expected same breaker per name")
	}
	bs.Get("engagement").Trip(ErrRateLimited)
	disabled := bs.Disabled()
	if len(disabled) != 1 || disabled[0] != "engagement" {
		t.Errorf("expected [engagement], got %v", disabled)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{RateLimitedf("x"), KindRateLimited},
		{NewParseError("x", errors.New("y")), KindParse},
		{NewTransientError(errors.New("x"), 503), KindTransport},
		{NewBreaker("x", BreakerConfig{}).allow(), ""},
		{errors.New("x"), KindOther},
	}
	for _, tc := range cases {
		if got := Classify(tc.err); got != tc.want {
			t.Errorf("Classify(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}

	b := NewBreaker("x", BreakerConfig{})
	b.Trip(errors.New("manual"))
	if got := Classify(b.allow()); got != KindDisabled {
		t.Errorf("expected disabled kind, got %q", got)
	}
}
