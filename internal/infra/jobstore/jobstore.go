package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/domain"
)

var (
	// ErrNotFound is returned when a job record does not exist or its
	// TTL has expired
	ErrNotFound = errors.New("job not found")
)

// Patch is a partial record update. Nil fields keep their stored
// values, so an update never clobbers fields it does not mention.
type Patch struct {
	Status   *domain.JobStatus
	Progress *float64
	Stage    *string
	Message  *string
	Error    *string
	Result   any
}

// Apply merges the patch into rec and stamps UpdatedAt.
func (p Patch) Apply(rec *domain.JobRecord) {
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.Progress != nil {
		rec.Progress = *p.Progress
	}
	if p.Stage != nil {
		rec.Stage = *p.Stage
	}
	if p.Message != nil {
		rec.Message = *p.Message
	}
	if p.Error != nil {
		rec.Error = *p.Error
	}
	if p.Result != nil {
		rec.Result = p.Result
	}
	rec.UpdatedAt = time.Now()
}

// Store persists job records with a bounded TTL. Implementations must
// be safe for concurrent use.
type Store interface {
	// Put writes a record, replacing any existing one, with the given TTL
	Put(ctx context.Context, id string, rec *domain.JobRecord, ttl time.Duration) error

	// Get retrieves a record; ErrNotFound when absent or expired
	Get(ctx context.Context, id string) (*domain.JobRecord, error)

	// Update merges a patch into an existing record, leaving the
	// remaining TTL untouched; ErrNotFound when absent or expired
	Update(ctx context.Context, id string, patch Patch) (*domain.JobRecord, error)

	// Delete removes a record, reporting whether one existed
	Delete(ctx context.Context, id string) (bool, error)

	// Close releases backend resources
	Close() error
}
