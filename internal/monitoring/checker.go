package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/orderrisk/internal/config"
	"github.com/sells-group/orderrisk/internal/inspection"
)

// StatusSource reports the current snapshot status. *inspection.Store
// satisfies it.
type StatusSource interface {
	Status() inspection.Status
}

// Checker evaluates the store status on an interval and alerts on change.
type Checker struct {
	source  StatusSource
	alerter *Alerter
	cfg     config.MonitoringConfig

	// active holds the alert types sent last round; an alert is re-sent only
	// after it has cleared.
	active map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(source StatusSource, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		source:  source,
		alerter: alerter,
		cfg:     cfg,
		active:  make(map[AlertType]bool),
	}
}

// Run checks once immediately, then on every tick until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.check(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	alerts := c.alerter.Evaluate(c.source.Status())

	current := make(map[AlertType]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		current[a.Type] = true
		if !c.active[a.Type] {
			fresh = append(fresh, a)
		}
	}
	c.active = current

	if len(fresh) == 0 {
		log.Debug("monitoring: no new alerts", zap.Int("active", len(current)))
		return
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(fresh)),
		zap.Int("alerts_sent", sent),
	)
}
