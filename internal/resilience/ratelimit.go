package resilience

import (
	"context"
	"sync"
	"time"
)

// Resource names shared by every caller in the process.
const (
	ResourceInstagram  = "instagram"
	ResourceYelp       = "yelp"
	ResourceSearch     = "search"
	ResourceWeb        = "web"
	ResourceOutscraper = "outscraper"
	ResourceClaude     = "claude"
	ResourceInstantly  = "instantly"
)

// Limiter enforces a minimum interval between call attempts against a single
// external resource. The last-call time is recorded after every attempt,
// successful or not, so spacing is measured between attempts.
type Limiter struct {
	name     string
	interval time.Duration

	mu       sync.Mutex
	lastCall time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter for the named resource.
func NewLimiter(name string, interval time.Duration) *Limiter {
	return &Limiter{
		name:     name,
		interval: interval,
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// Name returns the resource name.
func (l *Limiter) Name() string { return l.name }

// Interval returns the configured minimum spacing.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}

// SetInterval changes the minimum spacing for subsequent calls.
func (l *Limiter) SetInterval(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.interval = d
}

// LastCall returns the time the most recent attempt finished.
func (l *Limiter) LastCall() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastCall
}

// Do waits out the residual interval since the previous attempt, runs fn and
// records the attempt. Callers are serialized so the interval holds across
// the whole process.
func (l *Limiter) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastCall.IsZero() {
		if wait := l.interval - l.now().Sub(l.lastCall); wait > 0 {
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	err := fn(ctx)
	l.lastCall = l.now()
	return err
}

// CallVal is Do for functions that return a value.
func CallVal[T any](ctx context.Context, l *Limiter, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Limiters is a registry of per-resource limiters. Get always returns the
// same Limiter for a name.
type Limiters struct {
	mu       sync.Mutex
	limiters map[string]*Limiter
	fallback time.Duration
}

// NewLimiters creates a registry. Resources without an explicit interval use
// fallback.
func NewLimiters(intervals map[string]time.Duration, fallback time.Duration) *Limiters {
	r := &Limiters{
		limiters: make(map[string]*Limiter, len(intervals)),
		fallback: fallback,
	}
	for name, d := range intervals {
		r.limiters[name] = NewLimiter(name, d)
	}
	return r
}

// Get returns the limiter for the named resource, creating it on first use.
func (r *Limiters) Get(name string) *Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters[name]; ok {
		return l
	}
	l := NewLimiter(name, r.fallback)
	r.limiters[name] = l
	return l
}

// Configure sets intervals on existing or new limiters.
func (r *Limiters) Configure(intervals map[string]time.Duration) {
	for name, d := range intervals {
		r.Get(name).SetInterval(d)
	}
}
