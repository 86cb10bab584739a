package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/cadastre-cli/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker periodically snapshots job outcomes and raises alerts on
// threshold breaches. An alert is delivered when its condition starts and
// not again until the condition has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	interval  time.Duration
	lookback  int
	log       *zap.Logger

	// active holds the alert types breached at the last check.
	active map[AlertType]bool
}

// NewChecker creates a job outcome checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	interval := time.Duration(cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &Checker{
		collector: collector,
		alerter:   alerter,
		interval:  interval,
		lookback:  cfg.LookbackWindowHours,
		log:       zap.L().With(zap.String("component", "monitoring.checker")),
		active:    make(map[AlertType]bool),
	}
}

// Run checks once at startup, then on every interval until ctx is
// cancelled. Run must not be called concurrently with Check.
func (c *Checker) Run(ctx context.Context) {
	c.log.Info("monitoring: checker started",
		zap.Duration("interval", c.interval),
		zap.Int("lookback_hours", c.lookback),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.Check(ctx); err != nil && ctx.Err() == nil {
			c.log.Error("monitoring: check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.log.Info("monitoring: checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// Check collects a job snapshot, evaluates it and delivers the alerts whose
// condition was not already breached at the previous check. It returns the
// alerts it raised.
func (c *Checker) Check(ctx context.Context) ([]Alert, error) {
	snap, err := c.collector.Collect(ctx, c.lookback)
	if err != nil {
		return nil, err
	}
	c.log.Info("monitoring: job snapshot",
		zap.Int("jobs_total", snap.JobsTotal),
		zap.Int("succeeded", snap.Succeeded),
		zap.Int("failed", snap.Failed),
		zap.Int("pending", snap.Pending),
		zap.Int("running", snap.Running),
		zap.Float64("job_fail_rate", snap.JobFailRate),
		zap.Float64("avg_row_success_rate", snap.AvgRowSuccessRate),
		zap.Int("rows_processed", snap.RowsProcessed),
	)

	breached := make(map[AlertType]bool)
	var raised []Alert
	for _, alert := range c.alerter.Evaluate(snap) {
		breached[alert.Type] = true
		if !c.active[alert.Type] {
			raised = append(raised, alert)
		}
	}
	for t := range c.active {
		if !breached[t] {
			c.log.Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.active = breached

	if len(raised) > 0 {
		sent := c.alerter.SendAlerts(ctx, raised)
		c.log.Warn("monitoring: alerts raised",
			zap.Int("raised", len(raised)),
			zap.Int("sent", sent),
		)
	}
	return raised, nil
}
