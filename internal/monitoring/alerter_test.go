package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		PartialRateThreshold: 0.5,
		CostThresholdUSD:     25.0,
		LookbackDays:         7,
		StuckRunHours:        6,
	}
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := &MetricsSnapshot{
		RunsTotal:     7,
		RunsCompleted: 6,
		RunsPartial:   1,
		PartialRate:   1.0 / 7.0,
		RunCostUSD:    4.20,
		LookbackDays:  7,
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_PartialRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := &MetricsSnapshot{
		RunsTotal:     5,
		RunsCompleted: 1,
		RunsPartial:   4,
		PartialRate:   0.8,
		LookbackDays:  7,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertPartialRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "80.0%")
}

func TestAlerter_Evaluate_MinimumRunsRequired(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	// Two finished runs is below the minimum sample.
	snap := &MetricsSnapshot{
		RunsCompleted: 0,
		RunsPartial:   2,
		PartialRate:   1.0,
		ErrorsByKind:  map[string]int{"rate_limited": 5},
	}

	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_StuckRun(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{StuckRuns: []string{"run-a", "run-b"}})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStuckRun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "run-a, run-b")
	assert.Contains(t, alerts[0].Message, "6h")
}

func TestAlerter_Evaluate_RateLimiting(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := &MetricsSnapshot{
		RunsCompleted: 3,
		ErrorsByKind:  map[string]int{"rate_limited": 3},
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRateLimiting, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestAlerter_Evaluate_CostOverrun(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{RunCostUSD: 31.5})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "$31.50")
}

func TestAlerter_Evaluate_ZeroCostThreshold(t *testing.T) {
	cfg := testMonitoringConfig()
	cfg.CostThresholdUSD = 0
	a := NewAlerter(cfg)

	assert.Empty(t, a.Evaluate(&MetricsSnapshot{RunCostUSD: 999}))
}

func TestAlerter_Evaluate_MultipleAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := &MetricsSnapshot{
		RunsCompleted: 1,
		RunsPartial:   3,
		PartialRate:   0.75,
		StuckRuns:     []string{"run-x"},
		RunCostUSD:    40,
	}

	types := make(map[AlertType]bool)
	for _, alert := range a.Evaluate(snap) {
		types[alert.Type] = true
	}
	assert.True(t, types[AlertPartialRate])
	assert.True(t, types[AlertStuckRun])
	assert.True(t, types[AlertCostOverrun])
	assert.False(t, types[AlertRateLimiting])
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertPartialRate, Severity: "high", Message: "test alert 1"},
		{Type: AlertCostOverrun, Severity: "high", Message: "test alert 2"},
	})
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertPartialRate, Message: "test"}})
	assert.Zero(t, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	assert.Zero(t, a.SendAlerts(context.Background(), nil))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertPartialRate, Message: "test"}})
	assert.Zero(t, sent)
}
