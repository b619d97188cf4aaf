package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/domain"
	"github.com/conveyorhq/conveyor/internal/infra/jobstore"
)

func testRecord(id string) *domain.JobRecord {
	now := time.Now()
	return &domain.JobRecord{
		ID:        id,
		Status:    domain.JobStatusRunning,
		Progress:  0,
		Stage:     "validate",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPutGetRoundtrip(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.Put(ctx, "j1", testRecord("j1"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec, err := s.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.ID != "j1" || rec.Status != domain.JobStatusRunning || rec.Stage != "validate" {
		t.Errorf("record mismatch: %+v", rec)
	}

	// The store hands out copies, not interior pointers.
	rec.Stage = "mutated"
	rec2, _ := s.Get(ctx, "j1")
	if rec2.Stage != "validate" {
		t.Error("store leaked interior pointer")
	}
}

func TestGetMissing(t *testing.T) {
	s := New(0)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, jobstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	s.Put(ctx, "j1", testRecord("j1"), 30*time.Millisecond)
	if _, err := s.Get(ctx, "j1"); err != nil {
		t.Fatalf("get before expiry: %v", err)
	}

	time.Sleep(40 * time.Millisecond)
	if _, err := s.Get(ctx, "j1"); !errors.Is(err, jobstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after expiry", err)
	}
	if existed, _ := s.Delete(ctx, "j1"); existed {
		t.Error("delete reported an expired record as live")
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	rec := testRecord("j1")
	rec.Message = "starting"
	rec.UpdatedAt = time.Now().Add(-time.Hour)
	s.Put(ctx, "j1", rec, time.Minute)

	status := domain.JobStatusError
	progress := 33.3
	errMsg := "stage blew up"
	updated, err := s.Update(ctx, "j1", jobstore.Patch{
		Status:   &status,
		Progress: &progress,
		Error:    &errMsg,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if updated.Status != domain.JobStatusError || updated.Progress != 33.3 || updated.Error != "stage blew up" {
		t.Errorf("patched fields not applied: %+v", updated)
	}
	// Fields the patch did not mention survive.
	if updated.Message != "starting" || updated.Stage != "validate" {
		t.Errorf("unpatched fields clobbered: %+v", updated)
	}
	if !updated.UpdatedAt.After(rec.UpdatedAt) {
		t.Error("UpdatedAt not refreshed")
	}
}

func TestUpdateMissing(t *testing.T) {
	s := New(0)
	status := domain.JobStatusCompleted
	if _, err := s.Update(context.Background(), "nope", jobstore.Patch{Status: &status}); !errors.Is(err, jobstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	s.Put(ctx, "j1", testRecord("j1"), time.Minute)
	if existed, err := s.Delete(ctx, "j1"); err != nil || !existed {
		t.Errorf("first delete = %v/%v, want true/nil", existed, err)
	}
	if existed, err := s.Delete(ctx, "j1"); err != nil || existed {
		t.Errorf("second delete = %v/%v, want false/nil", existed, err)
	}
}

func TestSweepReclaimsExpired(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	s.Put(ctx, "old", testRecord("old"), 10*time.Millisecond)
	s.Put(ctx, "live", testRecord("live"), time.Minute)

	time.Sleep(20 * time.Millisecond)
	s.sweep()

	if n := s.Len(); n != 1 {
		t.Errorf("len = %d after sweep, want 1", n)
	}
	if _, err := s.Get(ctx, "live"); err != nil {
		t.Errorf("live record swept: %v", err)
	}
}
