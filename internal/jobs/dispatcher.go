// Package jobs runs dataset-processing jobs asynchronously on a bounded
// worker pool and records their outcome in the job store.
package jobs

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/cadastre-cli/internal/metrics"
	"github.com/sells-group/cadastre-cli/internal/model"
	"github.com/sells-group/cadastre-cli/internal/store"
)

// ErrQueueFull is returned by Submit when no queue slot is free.
var ErrQueueFull = errors.New("job queue is full")

// Runner validates and executes one job. *pipeline.Processor implements it.
type Runner interface {
	Validate(ctx context.Context, req model.JobRequest) error
	Process(ctx context.Context, req model.JobRequest) (*model.JobResult, error)
}

// Options configures a Dispatcher.
type Options struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single job. Zero means no limit.
	Timeout time.Duration
}

// Dispatcher queues submitted jobs and executes them on Workers goroutines.
type Dispatcher struct {
	store   store.Store
	runner  Runner
	queue   chan model.Job
	workers int
	timeout time.Duration

	// claimed holds the ids of jobs this process has queued and not yet
	// finished, so a job is never queued twice.
	claimed sync.Map
}

// recoverPageSize is the page size used to read back unfinished jobs.
const recoverPageSize = 500

// Reasons recorded on jobs settled at startup.
const (
	reasonInterrupted = "interrupted: dispatcher restarted while the job was running"
	reasonNotStarted  = "dispatcher could not mark the job running"
)

// NewDispatcher creates a Dispatcher. Call Run to start the workers.
func NewDispatcher(st store.Store, runner Runner, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Dispatcher{
		store:   st,
		runner:  runner,
		queue:   make(chan model.Job, opts.QueueSize),
		workers: opts.Workers,
		timeout: opts.Timeout,
	}
}

// Submit validates req, records a pending job and queues it. Validation
// errors are returned as-is and no job is created.
func (d *Dispatcher) Submit(ctx context.Context, req model.JobRequest) (*model.Job, error) {
	if err := d.runner.Validate(ctx, req); err != nil {
		return nil, err
	}

	job, err := d.store.CreateJob(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "jobs: create job")
	}

	if _, loaded := d.claimed.LoadOrStore(job.ID, struct{}{}); loaded {
		// Already picked up by the startup recovery.
		return job, nil
	}

	select {
	case d.queue <- *job:
	default:
		metrics.JobsRejected.Inc()
		if ferr := d.store.FailJob(ctx, job.ID, ErrQueueFull.Error()); ferr != nil {
			zap.L().Warn("jobs: failed to record rejected job", zap.String("job_id", job.ID), zap.Error(ferr))
		}
		// Released only once the record is failed, so recovery skips it.
		d.claimed.Delete(job.ID)
		return nil, ErrQueueFull
	}
	metrics.QueueDepth.Set(float64(len(d.queue)))

	zap.L().Info("jobs: submitted",
		zap.String("job_id", job.ID),
		zap.String("input", req.InputFilename),
	)
	return job, nil
}

// Status returns the current record of job id.
func (d *Dispatcher) Status(ctx context.Context, id string) (*model.Job, error) {
	return d.store.GetJob(ctx, id)
}

// Run settles the jobs a previous process left unfinished, starts the
// workers and blocks until ctx is cancelled. Jobs left running are failed;
// jobs left pending are queued again. Jobs still queued when ctx is
// cancelled stay pending and are picked up by the next Run.
func (d *Dispatcher) Run(ctx context.Context) error {
	pending, err := d.recoverJobs(ctx)
	if err != nil {
		return err
	}

	zap.L().Info("jobs: dispatcher started",
		zap.Int("workers", d.workers),
		zap.Int("queue_size", cap(d.queue)),
		zap.Int("recovered", len(pending)),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		worker := i
		g.Go(func() error {
			d.work(gctx, worker)
			return nil
		})
	}
	if len(pending) > 0 {
		g.Go(func() error {
			d.requeue(gctx, pending)
			return nil
		})
	}
	err = g.Wait()

	zap.L().Info("jobs: dispatcher stopped", zap.Int("pending", len(d.queue)))
	return err
}

// recoverJobs fails the jobs recorded as running and returns the pending
// ones, oldest first. No worker of this process has run yet, so every
// running record belongs to a previous process.
func (d *Dispatcher) recoverJobs(ctx context.Context) ([]model.Job, error) {
	running, err := d.listAll(ctx, model.JobStatusRunning)
	if err != nil {
		return nil, err
	}
	for _, j := range running {
		if err := d.store.FailJob(ctx, j.ID, reasonInterrupted); err != nil {
			return nil, eris.Wrapf(err, "jobs: fail interrupted job %s", j.ID)
		}
		zap.L().Warn("jobs: failed interrupted job", zap.String("job_id", j.ID))
	}

	pending, err := d.listAll(ctx, model.JobStatusPending)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(pending, func(a, b model.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return pending, nil
}

func (d *Dispatcher) listAll(ctx context.Context, status model.JobStatus) ([]model.Job, error) {
	var all []model.Job
	for offset := 0; ; offset += recoverPageSize {
		page, err := d.store.ListJobs(ctx, store.JobFilter{
			Status: status,
			Limit:  recoverPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "jobs: list %s jobs", status)
		}
		all = append(all, page...)
		if len(page) < recoverPageSize {
			return all, nil
		}
	}
}

// requeue queues recovered jobs, blocking while the queue is full. A job
// already claimed by Submit, or no longer pending, is skipped.
func (d *Dispatcher) requeue(ctx context.Context, jobs []model.Job) {
	for _, job := range jobs {
		if _, loaded := d.claimed.LoadOrStore(job.ID, struct{}{}); loaded {
			continue
		}
		current, err := d.store.GetJob(ctx, job.ID)
		if err != nil || current.Status != model.JobStatusPending {
			d.claimed.Delete(job.ID)
			continue
		}

		select {
		case d.queue <- *current:
			metrics.QueueDepth.Set(float64(len(d.queue)))
			zap.L().Info("jobs: requeued pending job", zap.String("job_id", job.ID))
		case <-ctx.Done():
			d.claimed.Delete(job.ID)
			return
		}
	}
}

func (d *Dispatcher) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			metrics.QueueDepth.Set(float64(len(d.queue)))
			d.execute(ctx, worker, job)
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, worker int, job model.Job) {
	log := zap.L().With(zap.String("job_id", job.ID), zap.Int("worker", worker))
	defer d.claimed.Delete(job.ID)

	// Record writes outlive cancellation so a shutdown still settles the job.
	recordCtx := context.WithoutCancel(ctx)

	if err := d.store.MarkRunning(recordCtx, job.ID); err != nil {
		log.Error("jobs: mark running", zap.Error(err))
		if ferr := d.store.FailJob(recordCtx, job.ID, reasonNotStarted+": "+err.Error()); ferr != nil {
			log.Error("jobs: record failure", zap.Error(ferr))
		}
		return
	}

	jobCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := d.runner.Process(jobCtx, job.Request)
	if err != nil {
		observe(model.JobStatusFailure, start)
		log.Error("jobs: job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		if ferr := d.store.FailJob(recordCtx, job.ID, err.Error()); ferr != nil {
			log.Error("jobs: record failure", zap.Error(ferr))
		}
		return
	}

	if err := d.store.CompleteJob(recordCtx, job.ID, result); err != nil {
		log.Error("jobs: record result", zap.Error(err))
		return
	}
	observe(model.JobStatusSuccess, start)
	log.Info("jobs: job complete",
		zap.String("output", result.OutputFilename),
		zap.String("success_rate", result.SuccessRate.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func observe(status model.JobStatus, start time.Time) {
	metrics.JobsTotal.WithLabelValues(string(status)).Inc()
	metrics.JobDurationSeconds.WithLabelValues(string(status)).Observe(time.Since(start).Seconds())
}
