// Package cost attributes API spend to the daily run.
package cost

import (
	"maps"
	"sync"

	"github.com/sells-group/geospark-cli/pkg/anthropic"
)

// Provider names used in the ledger.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOutscraper = "outscraper"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Outscraper OutscraperRate       `yaml:"outscraper" mapstructure:"outscraper"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// OutscraperRate holds Google Maps search pricing per returned place.
type OutscraperRate struct {
	PerPlace float64 `yaml:"per_place" mapstructure:"per_place"`
	// ContactsPerPlace is added when the contacts enrichment is requested.
	ContactsPerPlace float64 `yaml:"contacts_per_place" mapstructure:"contacts_per_place"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}
	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul
	return inCost + outCost + cwCost + crCost
}

// Outscraper computes the cost of a maps search that returned places.
func (c *Calculator) Outscraper(places int, withContacts bool) float64 {
	per := c.rates.Outscraper.PerPlace
	if withContacts {
		per += c.rates.Outscraper.ContactsPerPlace
	}
	return float64(places) * per
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00, CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-20250514": {
				Input: 3.00, Output: 15.00, CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00, CacheWriteMul: 2.0, CacheReadMul: 0.1,
			},
		},
		Outscraper: OutscraperRate{PerPlace: 0.003, ContactsPerPlace: 0.002},
	}
}

// Tracker accumulates spend per provider. A nil Tracker records nothing.
type Tracker struct {
	calc *Calculator

	mu     sync.Mutex
	spend  map[string]float64
	counts map[string]int
}

// NewTracker creates a tracker pricing calls with rates.
func NewTracker(rates Rates) *Tracker {
	return &Tracker{
		calc:   NewCalculator(rates),
		spend:  make(map[string]float64),
		counts: make(map[string]int),
	}
}

func (t *Tracker) add(provider string, usd float64) {
	t.mu.Lock()
	t.spend[provider] += usd
	t.counts[provider]++
	t.mu.Unlock()
}

// Claude records one model call.
func (t *Tracker) Claude(model string, u anthropic.TokenUsage) {
	if t == nil {
		return
	}
	t.add(ProviderAnthropic, t.calc.Claude(model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens))
}

// Outscraper records one maps search.
func (t *Tracker) Outscraper(places int, withContacts bool) {
	if t == nil {
		return
	}
	t.add(ProviderOutscraper, t.calc.Outscraper(places, withContacts))
}

// Total returns the spend recorded since the last reset.
func (t *Tracker) Total() float64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum float64
	for _, v := range t.spend {
		sum += v
	}
	return sum
}

// Breakdown returns spend and call counts per provider.
func (t *Tracker) Breakdown() (spend map[string]float64, calls map[string]int) {
	if t == nil {
		return map[string]float64{}, map[string]int{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.spend), maps.Clone(t.counts)
}

// Reset clears the ledger at the start of a run.
func (t *Tracker) Reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	clear(t.spend)
	clear(t.counts)
	t.mu.Unlock()
}
