package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/domain"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore"
)

type entry struct {
	rec       domain.JobRecord
	expiresAt time.Time // zero means no expiry
}

// Store is an in-process job store with TTL eviction. Expired entries
// are never served; the sweep loop reclaims their memory.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	sweepEvery time.Duration
	log        *slog.Logger
}

func New(sweepEvery time.Duration) *Store {
	if sweepEvery <= 0 {
		sweepEvery = 30 * time.Second
	}
	return &Store{
		entries:    make(map[string]*entry),
		sweepEvery: sweepEvery,
		log:        slog.Default().With("component", "jobstore"),
	}
}

func (s *Store) Put(ctx context.Context, id string, rec *domain.JobRecord, ttl time.Duration) error {
	e := &entry{rec: *rec}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.expired(time.Now()) {
		return nil, jobstore.ErrNotFound
	}
	cp := e.rec
	return &cp, nil
}

func (s *Store) Update(ctx context.Context, id string, patch jobstore.Patch) (*domain.JobRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.expired(time.Now()) {
		return nil, jobstore.ErrNotFound
	}
	patch.Apply(&e.rec)
	cp := e.rec
	return &cp, nil
}

func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return false, nil
	}
	delete(s.entries, id)
	return !e.expired(time.Now()), nil
}

func (s *Store) Close() error {
	return nil
}

// Len reports live entries, for health reporting.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, e := range s.entries {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Run sweeps expired entries until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()

	s.mu.Lock()
	removed := 0
	for id, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, id)
			removed++
		}
	}
	s.mu.Unlock()

	if removed > 0 {
		s.log.Debug("swept expired job records", "removed", removed)
	}
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
