package monitoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geospark-cli/internal/config"
	"github.com/sells-group/geospark-cli/internal/model"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, LookbackDays: 7}
	checker := NewChecker(NewCollector(&fakeRuns{}), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_DefaultInterval(t *testing.T) {
	checker := NewChecker(NewCollector(&fakeRuns{}), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

func TestChecker_CheckSendsRunCostAlert(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL
	runs := &fakeRuns{runs: []model.PipelineRun{
		{ID: "1", Status: model.RunStatusCompleted, StartedAt: time.Now()},
	}}
	checker := NewChecker(NewCollector(runs), NewAlerter(cfg), cfg)

	alerts, err := checker.Check(context.Background(), 30)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCostOverrun, alerts[0].Type)
	assert.Equal(t, int32(1), received.Load())
}

func TestChecker_CheckHealthy(t *testing.T) {
	cfg := testMonitoringConfig()
	checker := NewChecker(NewCollector(&fakeRuns{}), NewAlerter(cfg), cfg)

	alerts, err := checker.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, alerts)
}
