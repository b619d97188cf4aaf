package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/domain"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore"
)

func liveStore(t *testing.T) *Store {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("Skipping live redis test. Set REDIS_URL to run.")
	}
	s, err := New(Config{URL: url})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		s.PurgeAll(context.Background())
		s.Close()
	})
	return s
}

func TestJobKeyFormat(t *testing.T) {
	if got := jobKey("abc-123"); got != "conveyor:job:abc-123" {
		t.Errorf("jobKey = %q", got)
	}
}

func TestRedisRoundtrip(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := &domain.JobRecord{
		ID:        "rt-1",
		Status:    domain.JobStatusRunning,
		Progress:  50,
		Stage:     "enrich",
		Result:    map[string]any{"count": float64(3)},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Put(ctx, "rt-1", rec, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Get(ctx, "rt-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.JobStatusRunning || got.Progress != 50 || got.Stage != "enrich" {
		t.Errorf("record mismatch: %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, jobstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRedisUpdateKeepsTTLAndFields(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()

	rec := &domain.JobRecord{ID: "u-1", Status: domain.JobStatusRunning, Message: "working"}
	if err := s.Put(ctx, "u-1", rec, time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	status := domain.JobStatusCompleted
	progress := 100.0
	updated, err := s.Update(ctx, "u-1", jobstore.Patch{Status: &status, Progress: &progress})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.JobStatusCompleted || updated.Progress != 100 {
		t.Errorf("patch not applied: %+v", updated)
	}
	if updated.Message != "working" {
		t.Errorf("unpatched field clobbered: %+v", updated)
	}

	ttl, err := s.rdb.TTL(ctx, jobKey("u-1")).Result()
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v, update should not reset it", ttl)
	}
}

func TestRedisUpdateNeverRecreatesDeleted(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()

	s.Put(ctx, "c-1", &domain.JobRecord{ID: "c-1", Status: domain.JobStatusRunning}, time.Minute)
	if existed, _ := s.Delete(ctx, "c-1"); !existed {
		t.Fatal("delete missed the record")
	}

	status := domain.JobStatusCompleted
	if _, err := s.Update(ctx, "c-1", jobstore.Patch{Status: &status}); !errors.Is(err, jobstore.ErrNotFound) {
		t.Fatalf("update after delete = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "c-1"); !errors.Is(err, jobstore.ErrNotFound) {
		t.Error("update recreated a deleted record")
	}
}

func TestRedisDeleteAndPurge(t *testing.T) {
	s := liveStore(t)
	ctx := context.Background()

	s.Put(ctx, "d-1", &domain.JobRecord{ID: "d-1"}, time.Minute)
	s.Put(ctx, "d-2", &domain.JobRecord{ID: "d-2"}, time.Minute)

	if existed, err := s.Delete(ctx, "d-1"); err != nil || !existed {
		t.Errorf("delete = %v/%v, want true/nil", existed, err)
	}
	if existed, _ := s.Delete(ctx, "d-1"); existed {
		t.Error("second delete reported a record")
	}

	n, err := s.PurgeAll(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n < 1 {
		t.Errorf("purged %d, want at least d-2", n)
	}
}
