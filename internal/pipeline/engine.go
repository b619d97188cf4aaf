package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conveyorhq/conveyor/internal/core/domain"
	"github.com/conveyorhq/conveyor/internal/core/fault"
	"github.com/conveyorhq/conveyor/internal/infra/guard"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore"
	"github.com/conveyorhq/conveyor/internal/metrics"
)

// ErrJobCancelled is returned when a run stops because its job record
// was deleted mid-flight.
var ErrJobCancelled = errors.New("job cancelled")

// Config holds engine-wide defaults; per-run options override them.
type Config struct {
	RecordTTL  time.Duration
	MaxRetries int
}

// RunOptions configure one run. The zero value is usable.
type RunOptions struct {
	// JobID names the job; empty generates a UUID.
	JobID string
	// MaxRetries caps resume attempts; zero uses the engine default.
	MaxRetries int
	// TTL overrides the record TTL; zero uses the engine default.
	TTL time.Duration
	// OnProgress is called synchronously at each stage boundary.
	OnProgress ProgressFunc
}

// Engine executes pipelines with per-stage checkpointing. Stage
// outputs are recorded as they complete, so a failed job resumes at
// the first incomplete stage instead of starting over. Everything is
// constructor-injected; two engines in one process never share state.
type Engine struct {
	cfg      Config
	store    jobstore.Store
	guards   map[string]*guard.Guard
	registry *Registry
	log      *slog.Logger
	wg       sync.WaitGroup
}

func NewEngine(cfg Config, store jobstore.Store, guards map[string]*guard.Guard, registry *Registry) *Engine {
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Engine{
		cfg:      cfg,
		store:    store,
		guards:   guards,
		registry: registry,
		log:      slog.Default().With("component", "engine"),
	}
}

// Run executes the pipeline synchronously and returns the final stage
// output, or a *fault.WorkflowError carrying the failing stage and a
// resumable snapshot.
func (e *Engine) Run(ctx context.Context, pl *Pipeline, input any, opts RunOptions) (any, error) {
	entry, err := e.prepare(ctx, pl, input, opts)
	if err != nil {
		return nil, err
	}
	return e.execute(ctx, entry)
}

// Submit starts the run in a background goroutine and returns the job
// id immediately. The run outcome lands in the job record; poll GetJob
// or resume/cancel by id. Wait blocks until all submitted runs finish.
func (e *Engine) Submit(ctx context.Context, pl *Pipeline, input any, opts RunOptions) (string, error) {
	entry, err := e.prepare(ctx, pl, input, opts)
	if err != nil {
		return "", err
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(ctx, entry)
	}()
	return entry.job.ID, nil
}

// Wait blocks until all submitted runs have finished.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Resume re-enters a failed run at its first incomplete stage. It
// requires an errored job with retry budget left; recorded stage
// outputs are never recomputed.
func (e *Engine) Resume(ctx context.Context, jobID string) (any, error) {
	entry, err := e.registry.claim(jobID)
	if err != nil {
		return nil, err
	}

	e.log.Info("resuming job",
		"job", jobID,
		"retry", entry.job.RetryCount,
		"completed", entry.job.Completed.Len(),
	)

	status := domain.JobStatusRunning
	msg := "resuming"
	if _, err := e.store.Update(ctx, jobID, jobstore.Patch{Status: &status, Message: &msg}); err != nil {
		if !errors.Is(err, jobstore.ErrNotFound) {
			e.log.Warn("failed to persist resume state", "job", jobID, "error", err)
		} else if perr := e.store.Put(ctx, jobID, e.newRecord(entry.job), e.ttl(entry.opts)); perr != nil {
			// The record expired while the job sat in error state.
			e.log.Warn("failed to recreate job record", "job", jobID, "error", perr)
		}
	}

	return e.execute(ctx, entry)
}

// Cancel deletes the job's persisted record and registry entry. An
// in-flight stage call is not interrupted; its late result is
// discarded by the write-back existence check.
func (e *Engine) Cancel(ctx context.Context, jobID string) (bool, error) {
	existed, err := e.store.Delete(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if e.registry.remove(jobID) {
		existed = true
	}
	if existed {
		e.log.Info("job cancelled", "job", jobID)
	}
	return existed, nil
}

// GetJob returns the persisted record for status polling;
// jobstore.ErrNotFound when unknown or expired.
func (e *Engine) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	return e.store.Get(ctx, jobID)
}

func (e *Engine) prepare(ctx context.Context, pl *Pipeline, input any, opts RunOptions) (*regEntry, error) {
	if err := pl.Validate(); err != nil {
		return nil, err
	}
	for _, st := range pl.Stages {
		if st.Service != "" && e.guards[st.Service] == nil {
			return nil, fmt.Errorf("pipeline %s: stage %s: no guard for service %s", pl.Name, st.Name, st.Service)
		}
	}

	if opts.JobID == "" {
		opts.JobID = uuid.NewString()
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = e.cfg.MaxRetries
	}

	job := domain.NewJob(opts.JobID, pl.Name, pl.StageNames(), input, maxRetries)
	entry := &regEntry{job: job, pipeline: pl, opts: opts}
	if err := e.registry.add(job.ID, entry); err != nil {
		return nil, err
	}

	if err := e.store.Put(ctx, job.ID, e.newRecord(job), e.ttl(opts)); err != nil {
		e.registry.remove(job.ID)
		return nil, fmt.Errorf("persist job %s: %w", job.ID, err)
	}

	e.log.Info("job started", "job", job.ID, "pipeline", pl.Name, "stages", len(pl.Stages))
	return entry, nil
}

func (e *Engine) execute(ctx context.Context, entry *regEntry) (any, error) {
	job, pl, opts := entry.job, entry.pipeline, entry.opts
	log := e.log.With("job", job.ID, "pipeline", pl.Name)

	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	for _, st := range pl.Stages {
		if job.Completed.Has(st.Name) {
			log.Debug("stage output recorded, skipping", "stage", st.Name)
			continue
		}
		job.CurrentStage = st.Name

		out, err := e.runStage(ctx, job, st)
		if err != nil {
			return nil, e.fail(ctx, job, st, err, log)
		}

		job.Completed.Record(st.Name, out)
		if err := e.checkpoint(ctx, job, st, opts); err != nil {
			metrics.JobsTotal.WithLabelValues(job.Pipeline, "cancelled").Inc()
			log.Info("job record gone, discarding stage result", "stage", st.Name)
			return nil, err
		}
	}

	return e.complete(ctx, job, log)
}

// checkpoint persists stage completion. The merge targets an existing
// record only, so a cancelled job's late result is dropped here
// instead of resurrecting the job.
func (e *Engine) checkpoint(ctx context.Context, job *domain.Job, st Stage, opts RunOptions) error {
	percent := job.Progress()
	msg := fmt.Sprintf("completed %s", st.Name)
	stage := st.Name

	_, err := e.store.Update(ctx, job.ID, jobstore.Patch{
		Progress: &percent,
		Stage:    &stage,
		Message:  &msg,
	})
	if errors.Is(err, jobstore.ErrNotFound) {
		e.registry.remove(job.ID)
		return ErrJobCancelled
	}
	if err != nil {
		// The projection is best-effort; the run itself carries on.
		e.log.Warn("failed to persist checkpoint", "job", job.ID, "stage", st.Name, "error", err)
	}

	if opts.OnProgress != nil {
		opts.OnProgress(st.Name, msg, percent)
	}
	return nil
}

func (e *Engine) runStage(ctx context.Context, job *domain.Job, st Stage) (any, error) {
	sc := &StageContext{
		JobID:   job.ID,
		Input:   job.Input,
		Outputs: job.Completed.Map(),
	}
	op := func(ctx context.Context) (any, error) {
		return st.Run(ctx, sc)
	}

	start := time.Now()
	var out any
	var err error
	if st.Service != "" {
		out, err = e.guards[st.Service].Do(ctx, op)
	} else {
		out, err = op(ctx)
	}

	metrics.StageLatency.WithLabelValues(job.Pipeline, st.Name).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.StageAttemptsTotal.WithLabelValues(job.Pipeline, st.Name, outcome).Inc()

	return out, err
}

func (e *Engine) fail(ctx context.Context, job *domain.Job, st Stage, err error, log *slog.Logger) error {
	se := fault.Classify(err, st.Service)
	job.Status = domain.JobStatusError
	job.LastError = se.Error()
	e.registry.markErrored(job.ID)

	wfErr := &fault.WorkflowError{
		Stage:   st.Name,
		Service: st.Service,
		Err:     se,
		Job:     job.Snapshot(),
	}

	status := domain.JobStatusError
	stage := st.Name
	errMsg := se.Error()
	if _, uerr := e.store.Update(ctx, job.ID, jobstore.Patch{
		Status: &status,
		Stage:  &stage,
		Error:  &errMsg,
	}); uerr != nil && !errors.Is(uerr, jobstore.ErrNotFound) {
		log.Warn("failed to persist error state", "error", uerr)
	}

	metrics.JobsTotal.WithLabelValues(job.Pipeline, "error").Inc()
	log.Error("pipeline failed",
		"stage", st.Name,
		"service", st.Service,
		"error_type", string(se.Type),
		"retryable", se.Retryable,
		"error", se,
	)
	return wfErr
}

func (e *Engine) complete(ctx context.Context, job *domain.Job, log *slog.Logger) (any, error) {
	job.Status = domain.JobStatusCompleted
	_, result, _ := job.Completed.Last()

	status := domain.JobStatusCompleted
	percent := job.Progress()
	msg := "completed"
	_, err := e.store.Update(ctx, job.ID, jobstore.Patch{
		Status:   &status,
		Progress: &percent,
		Message:  &msg,
		Result:   result,
	})
	if errors.Is(err, jobstore.ErrNotFound) {
		e.registry.remove(job.ID)
		metrics.JobsTotal.WithLabelValues(job.Pipeline, "cancelled").Inc()
		return nil, ErrJobCancelled
	}
	if err != nil {
		log.Warn("failed to persist completion", "error", err)
	}

	e.registry.remove(job.ID)
	metrics.JobsTotal.WithLabelValues(job.Pipeline, "completed").Inc()
	log.Info("pipeline completed", "duration", time.Since(job.StartTime))
	return result, nil
}

func (e *Engine) newRecord(job *domain.Job) *domain.JobRecord {
	now := time.Now()
	return &domain.JobRecord{
		ID:        job.ID,
		Status:    job.Status,
		Progress:  job.Progress(),
		Stage:     job.CurrentStage,
		Message:   "starting",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (e *Engine) ttl(opts RunOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	return e.cfg.RecordTTL
}
