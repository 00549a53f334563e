// Package monitoring posts webhook alerts when the inspection snapshot goes
// missing, goes stale, or the provider circuit opens.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/config"
	"github.com/sells-group/orderrisk/internal/inspection"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertSnapshotMissing AlertType = "snapshot_missing"
	AlertSnapshotStale   AlertType = "snapshot_stale"
	AlertBreakerOpen     AlertType = "provider_breaker_open"
)

// Alert is a single webhook payload.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter turns a store status into alerts and delivers them.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	now    func() time.Time
}

// NewAlerter creates an Alerter.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
}

// Evaluate returns the alerts st warrants. A missing snapshot suppresses the
// stale alert.
func (a *Alerter) Evaluate(st inspection.Status) []Alert {
	var alerts []Alert
	now := a.now().UTC()

	if !st.Loaded {
		alerts = append(alerts, Alert{
			Type:      AlertSnapshotMissing,
			Severity:  "high",
			Message:   "No inspection snapshot is loaded; analytics queries are returning data_unavailable",
			Timestamp: now,
		})
	} else if st.Stale {
		alerts = append(alerts, Alert{
			Type:     AlertSnapshotStale,
			Severity: "medium",
			Message:  fmt.Sprintf("Inspection snapshot %s is %.0fh old", st.SnapshotID, st.AgeHours),
			Details: map[string]any{
				"snapshot_id": st.SnapshotID,
				"age_hours":   st.AgeHours,
				"fetched_at":  st.FetchedAt,
			},
			Timestamp: now,
		})
	}

	if st.BreakerState == "open" {
		alerts = append(alerts, Alert{
			Type:      AlertBreakerOpen,
			Severity:  "medium",
			Message:   "Inspection provider circuit breaker is open; refreshes are suspended",
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook and returns how many
// were accepted.
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
