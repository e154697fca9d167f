package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geospark-cli/internal/config"
)

// minFinishedRuns is the sample below which the partial rate is not alerted.
const minFinishedRuns = 3

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertPartialRate  AlertType = "pipeline_partial_rate"
	AlertStuckRun     AlertType = "pipeline_stuck_run"
	AlertCostOverrun  AlertType = "cost_overrun"
	AlertRateLimiting AlertType = "rate_limiting"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.RunsCompleted + snap.RunsPartial
	if finished >= minFinishedRuns && snap.PartialRate > a.cfg.PartialRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertPartialRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"%.1f%% of runs finished partial, threshold %.1f%% (%d of %d in last %dd)",
				snap.PartialRate*100, a.cfg.PartialRateThreshold*100,
				snap.RunsPartial, finished, snap.LookbackDays,
			),
			Details: map[string]any{
				"partial_rate":   snap.PartialRate,
				"threshold":      a.cfg.PartialRateThreshold,
				"partial":        snap.RunsPartial,
				"finished":       finished,
				"errors_by_kind": snap.ErrorsByKind,
			},
			Timestamp: now,
		})
	}

	if len(snap.StuckRuns) > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStuckRun,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d run(s) still running after %dh: %s",
				len(snap.StuckRuns), a.cfg.StuckRunHours, strings.Join(snap.StuckRuns, ", "),
			),
			Details:   map[string]any{"run_ids": snap.StuckRuns},
			Timestamp: now,
		})
	}

	if limited := snap.ErrorsByKind["rate_limited"]; limited > 0 && finished >= minFinishedRuns && limited >= finished {
		alerts = append(alerts, Alert{
			Type:     AlertRateLimiting,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d rate-limited step(s) across %d runs in last %dd",
				limited, finished, snap.LookbackDays,
			),
			Details:   map[string]any{"rate_limited": limited, "finished": finished},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.RunCostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			Message: fmt.Sprintf(
				"Run API cost $%.2f exceeds threshold $%.2f",
				snap.RunCostUSD, a.cfg.CostThresholdUSD,
			),
			Details: map[string]any{
				"cost_usd":      snap.RunCostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
