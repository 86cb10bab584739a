package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/store"
)

// collectLimit caps the number of jobs read per snapshot.
const collectLimit = 10000

// MetricsSnapshot holds a point-in-time view of job outcomes.
type MetricsSnapshot struct {
	JobsTotal int `json:"jobs_total" yaml:"jobs_total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`
	Pending   int `json:"pending" yaml:"pending"`
	Running   int `json:"running" yaml:"running"`

	// JobFailRate is failed / (succeeded + failed).
	JobFailRate float64 `json:"job_fail_rate" yaml:"job_fail_rate"`

	// AvgRowSuccessRate averages the per-job success rate over succeeded
	// jobs that processed at least one row.
	AvgRowSuccessRate float64 `json:"avg_row_success_rate" yaml:"avg_row_success_rate"`
	RatedJobs         int     `json:"rated_jobs" yaml:"rated_jobs"`
	RowsProcessed     int     `json:"rows_processed" yaml:"rows_processed"`

	LookbackHours int       `json:"lookback_hours" yaml:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at" yaml:"collected_at"`
}

// Collector gathers job metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot of job metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	jobs, err := c.store.ListJobs(ctx, store.JobFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        collectLimit,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list jobs")
	}

	snap.JobsTotal = len(jobs)
	var rateSum float64
	for _, j := range jobs {
		switch j.Status {
		case model.JobStatusSuccess:
			snap.Succeeded++
		case model.JobStatusFailure:
			snap.Failed++
		case model.JobStatusPending:
			snap.Pending++
		case model.JobStatusRunning:
			snap.Running++
		}
		if j.Result == nil {
			continue
		}
		snap.RowsProcessed += j.Result.TotalRows
		if j.Result.SuccessRate.Valid {
			rateSum += j.Result.SuccessRate.Value
			snap.RatedJobs++
		}
	}

	if finished := snap.Succeeded + snap.Failed; finished > 0 {
		snap.JobFailRate = float64(snap.Failed) / float64(finished)
	}
	if snap.RatedJobs > 0 {
		snap.AvgRowSuccessRate = rateSum / float64(snap.RatedJobs)
	}
	return snap, nil
}
