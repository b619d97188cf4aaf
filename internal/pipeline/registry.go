package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/domain"
)

var (
	// ErrJobNotFound is returned when no live job carries the id
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists is returned when a job id is already registered
	ErrJobExists = errors.New("job already exists")

	// ErrJobNotResumable is returned when the job is not in an error state
	ErrJobNotResumable = errors.New("job is not in a resumable state")

	// ErrRetriesExhausted is returned when the resume budget is spent
	ErrRetriesExhausted = errors.New("job retry budget exhausted")
)

type regEntry struct {
	job       *domain.Job
	pipeline  *Pipeline
	opts      RunOptions
	erroredAt time.Time // zero while the job is running
}

// Registry tracks live jobs. A failed job stays resumable here until
// it is cancelled, resumed to completion, or aged out by the retention
// sweep. Stage bodies are not serializable, so resumption only works
// within the process that started the run.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*regEntry

	retention time.Duration
	log       *slog.Logger
}

func NewRegistry(retention time.Duration) *Registry {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Registry{
		entries:   make(map[string]*regEntry),
		retention: retention,
		log:       slog.Default().With("component", "registry"),
	}
}

func (r *Registry) add(id string, e *regEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; ok {
		return ErrJobExists
	}
	r.entries[id] = e
	return nil
}

func (r *Registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	return true
}

func (r *Registry) markErrored(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.erroredAt = time.Now()
	}
}

// claim atomically flips an errored job back to running and spends one
// retry, so concurrent resume calls cannot double-run a job.
func (r *Registry) claim(id string) (*regEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	if e.job.Status != domain.JobStatusError {
		return nil, ErrJobNotResumable
	}
	if e.job.RetryCount >= e.job.MaxRetries {
		return nil, ErrRetriesExhausted
	}
	e.job.RetryCount++
	e.job.Status = domain.JobStatusRunning
	e.erroredAt = time.Time{}
	return e, nil
}

// Stats reports live jobs by state, for health reporting.
func (r *Registry) Stats() (running, errored int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.job.Status == domain.JobStatusError {
			errored++
		} else {
			running++
		}
	}
	return running, errored
}

// Run ages out errored jobs past the retention window until ctx is
// cancelled.
func (r *Registry) Run(ctx context.Context) {
	interval := min(r.retention/10, time.Minute)
	interval = max(interval, time.Second)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.retention)

	r.mu.Lock()
	removed := 0
	for id, e := range r.entries {
		if !e.erroredAt.IsZero() && e.erroredAt.Before(cutoff) {
			delete(r.entries, id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.log.Info("swept stale errored jobs", "removed", removed)
	}
}
