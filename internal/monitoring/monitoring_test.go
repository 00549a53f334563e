package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/config"
	"github.com/sells-group/orderrisk/internal/inspection"
)

func TestAlerter_Evaluate_Healthy(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	alerts := a.Evaluate(inspection.Status{Loaded: true, BreakerState: "closed"})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_Missing(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	alerts := a.Evaluate(inspection.Status{Stale: true, BreakerState: "closed"})
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertSnapshotMissing, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
}

func TestAlerter_Evaluate_StaleAndOpen(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	alerts := a.Evaluate(inspection.Status{
		Loaded:       true,
		Stale:        true,
		SnapshotID:   "abc",
		AgeHours:     200,
		BreakerState: "open",
	})
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertSnapshotStale, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "200h")
	assert.Equal(t, "abc", alerts[0].Details["snapshot_id"])
	assert.Equal(t, AlertBreakerOpen, alerts[1].Type)
}

func TestAlerter_SendAlerts(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Alert
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var a Alert
		require.NoError(t, json.NewDecoder(r.Body).Decode(&a))
		mu.Lock()
		received = append(received, a)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertSnapshotMissing, Severity: "high", Message: "gone"},
	})

	assert.Equal(t, 1, sent)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, AlertSnapshotMissing, received[0].Type)
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: srv.URL})
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertBreakerOpen}})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertBreakerOpen}}))
}

type statusFunc func() inspection.Status

func (f statusFunc) Status() inspection.Status { return f() }

func TestChecker_SendsOnlyNewAlerts(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		posts.Add(1)
	}))
	defer srv.Close()

	st := inspection.Status{BreakerState: "closed"}
	cfg := config.MonitoringConfig{WebhookURL: srv.URL}
	c := NewChecker(statusFunc(func() inspection.Status { return st }), NewAlerter(cfg), cfg)
	log := zap.NewNop()
	ctx := context.Background()

	c.check(ctx, log)
	c.check(ctx, log)
	assert.EqualValues(t, 1, posts.Load(), "an unchanged alert is not repeated")

	st = inspection.Status{Loaded: true, BreakerState: "closed"}
	c.check(ctx, log)
	assert.EqualValues(t, 1, posts.Load())

	st = inspection.Status{BreakerState: "closed"}
	c.check(ctx, log)
	assert.EqualValues(t, 2, posts.Load(), "a cleared alert fires again")
}

func TestChecker_RunStopsOnCancel(t *testing.T) {
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1}
	c := NewChecker(statusFunc(func() inspection.Status { return inspection.Status{Loaded: true} }), NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("checker did not stop")
	}
}
