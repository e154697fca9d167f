package scrape

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On a block it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnBlock halves the rate after the host pushed back.
func (a *AdaptiveLimiter) OnBlock(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
	zap.L().Warn("scrape: reducing host rate after block",
		zap.String("host", host),
		zap.Float64("new_rate", float64(a.currentRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// hostLimiters hands out one AdaptiveLimiter per host.
type hostLimiters struct {
	mu     sync.Mutex
	limit  rate.Limit
	burst  int
	byHost map[string]*AdaptiveLimiter
}

func newHostLimiters(limit rate.Limit, burst int) *hostLimiters {
	return &hostLimiters{limit: limit, burst: burst, byHost: make(map[string]*AdaptiveLimiter)}
}

func (h *hostLimiters) get(host string) *AdaptiveLimiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	if l, ok := h.byHost[host]; ok {
		return l
	}
	l := NewAdaptiveLimiter(h.limit, h.burst)
	h.byHost[host] = l
	return l
}
