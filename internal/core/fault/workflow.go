package fault

import (
	"fmt"

	"github.com/conveyorhq/conveyor/internal/core/domain"
)

// WorkflowError reports a failed pipeline run. It carries the failing
// stage, the classified cause, and a snapshot of the job taken at the
// moment of failure so callers can inspect completed work and decide
// whether to resume.
type WorkflowError struct {
	Stage   string
	Service string
	Err     *ServiceError
	Job     *domain.Job
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}
