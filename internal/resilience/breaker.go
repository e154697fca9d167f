// Package resilience provides rate limiting, retry and channel breakers for
// calls to external services and scraping targets.
package resilience

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrChannelDisabled is returned when a call is rejected because its channel
// was disabled earlier in the run.
var ErrChannelDisabled = eris.New("channel disabled for this run")

// BreakerConfig controls when a channel is disabled.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that disable
	// the channel. Default: 2.
	FailureThreshold int

	// ShouldCount optionally decides whether an error counts as a failure.
	// If nil, every error except parse errors counts.
	ShouldCount func(err error) bool
}

// Breaker disables one scraping channel for the remainder of a run once the
// target rate-limits us or fails too many times in a row. It never re-closes
// on its own; a new run gets a new Breaker.
type Breaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	open        bool
	cause       error
	consecutive int
}

// NewBreaker creates a breaker for the named channel.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 2
	}
	return &Breaker{name: name, cfg: cfg}
}

// Name returns the channel name.
func (b *Breaker) Name() string { return b.name }

// Execute runs fn unless the channel is disabled. A rate-limited error
// disables the channel immediately.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// Open reports whether the channel has been disabled.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// Cause returns the error that disabled the channel, if any.
func (b *Breaker) Cause() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cause
}

// Trip disables the channel with the given cause.
func (b *Breaker) Trip(cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trip(cause)
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return eris.Wrapf(ErrChannelDisabled, "%s", b.name)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.consecutive = 0
		return
	}
	if IsRateLimited(err) {
		b.trip(err)
		return
	}

	count := b.cfg.ShouldCount
	if count == nil {
		count = func(e error) bool { return !IsParse(e) }
	}
	if !count(err) {
		return
	}

	b.consecutive++
	if b.consecutive >= b.cfg.FailureThreshold {
		b.trip(err)
	}
}

func (b *Breaker) trip(cause error) {
	if b.open {
		return
	}
	b.open = true
	b.cause = cause
	zap.L().Warn("channel disabled for remainder of run",
		zap.String("channel", b.name),
		zap.Int("consecutive_failures", b.consecutive),
		zap.Error(cause),
	)
}

// Breakers holds one Breaker per channel for a run.
type Breakers struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	cfg      BreakerConfig
}

// NewBreakers creates a registry of per-channel breakers.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
	}
}

// Get returns the breaker for the named channel, creating one if needed.
func (bs *Breakers) Get(name string) *Breaker {
	bs.mu.RLock()
	b, ok := bs.breakers[name]
	bs.mu.RUnlock()
	if ok {
		return b
	}

	bs.mu.Lock()
	defer bs.mu.Unlock()
	if b, ok = bs.breakers[name]; ok {
		return b
	}
	b = NewBreaker(name, bs.cfg)
	bs.breakers[name] = b
	return b
}

// Disabled returns the names of channels disabled so far.
func (bs *Breakers) Disabled() []string {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	var out []string
	for name, b := range bs.breakers {
		if b.Open() {
			out = append(out, name)
		}
	}
	return out
}
