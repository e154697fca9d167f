// Package monitoring watches recent pipeline runs and raises webhook alerts.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geospark-cli/internal/model"
	"github.com/sells-group/geospark-cli/internal/store"
)

// maxRunsScanned bounds how many recent runs one collection reads.
const maxRunsScanned = 500

// MetricsSnapshot holds a point-in-time view of pipeline health.
type MetricsSnapshot struct {
	// Runs started within the lookback window.
	RunsTotal     int     `json:"runs_total"`
	RunsCompleted int     `json:"runs_completed"`
	RunsPartial   int     `json:"runs_partial"`
	RunsRunning   int     `json:"runs_running"`
	PartialRate   float64 `json:"partial_rate"`

	// StuckRuns are runs still running past the stuck threshold.
	StuckRuns []string `json:"stuck_runs,omitempty"`

	ErrorsByKind map[string]int `json:"errors_by_kind,omitempty"`
	Scraped      int            `json:"scraped"`
	Uploaded     int            `json:"uploaded"`

	// RunCostUSD is the spend of the run that triggered the check, if any.
	RunCostUSD float64 `json:"run_cost_usd"`

	LookbackDays int       `json:"lookback_days"`
	CollectedAt  time.Time `json:"collected_at"`
}

// RunLister lists the most recent pipeline runs, newest first.
type RunLister interface {
	ListRuns(ctx context.Context, limit uint64) ([]model.PipelineRun, error)
}

// StoreRuns reads runs from a record store.
type StoreRuns struct {
	Store store.Store
}

// ListRuns implements RunLister.
func (s StoreRuns) ListRuns(ctx context.Context, limit uint64) ([]model.PipelineRun, error) {
	return store.ListRuns(ctx, s.Store, limit)
}

// Collector gathers run metrics.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarizes runs started within lookbackDays. Runs still running
// after stuckAfter are reported by id.
func (c *Collector) Collect(ctx context.Context, lookbackDays int, stuckAfter time.Duration) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		ErrorsByKind: make(map[string]int),
		LookbackDays: lookbackDays,
		CollectedAt:  now,
	}

	runs, err := c.runs.ListRuns(ctx, maxRunsScanned)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	cutoff := now.AddDate(0, 0, -lookbackDays)
	for _, r := range runs {
		if lookbackDays > 0 && r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		snap.Scraped += r.Scraped
		snap.Uploaded += r.Uploaded

		switch r.Status {
		case model.RunStatusCompleted:
			snap.RunsCompleted++
		case model.RunStatusPartial:
			snap.RunsPartial++
		case model.RunStatusRunning:
			snap.RunsRunning++
			if stuckAfter > 0 && now.Sub(r.StartedAt) > stuckAfter {
				snap.StuckRuns = append(snap.StuckRuns, r.ID)
			}
		}

		for _, e := range r.Errors {
			kind := e.Kind
			if kind == "" {
				kind = "other"
			}
			snap.ErrorsByKind[kind]++
		}
	}

	if finished := snap.RunsCompleted + snap.RunsPartial; finished > 0 {
		snap.PartialRate = float64(snap.RunsPartial) / float64(finished)
	}
	return snap, nil
}
