package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/config"
)

const defaultCheckInterval = time.Hour

// Checker evaluates run health on a schedule or on demand.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
}

// NewChecker creates an alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_days", c.cfg.LookbackDays),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			if _, err := c.Check(ctx, 0); err != nil {
				log.Error("monitoring: failed to collect metrics", zap.Error(err))
			}
		}
	}
}

// Check collects metrics once, attributing runCostUSD to the run that just
// finished, and sends any resulting alerts. It returns the alerts raised.
func (c *Checker) Check(ctx context.Context, runCostUSD float64) ([]Alert, error) {
	stuck := time.Duration(c.cfg.StuckRunHours) * time.Hour
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackDays, stuck)
	if err != nil {
		return nil, err
	}
	snap.RunCostUSD = runCostUSD

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) == 0 {
		zap.L().Debug("monitoring: no alerts triggered")
		return nil, nil
	}

	sent := c.alerter.SendAlerts(ctx, alerts)
	zap.L().Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(alerts)),
		zap.Int("alerts_sent", sent),
	)
	return alerts, nil
}
