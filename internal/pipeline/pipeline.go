package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// StageContext is what a stage body may see: the job id, the original
// run input, and the outputs of every prior stage.
type StageContext struct {
	JobID   string
	Input   any
	Outputs map[string]any
}

// StageFunc is the body of one pipeline step. It must return a
// classifiable error on failure (an *fault.HTTPError, a classified
// *fault.ServiceError, or a stdlib net/context error).
type StageFunc func(ctx context.Context, sc *StageContext) (any, error)

// Stage binds a name and an external dependency to a body. Service
// selects the guard protecting the call; stages with an empty Service
// run unguarded.
type Stage struct {
	Name    string
	Service string
	Run     StageFunc
}

// Pipeline is a named, ordered sequence of stages. The declared order
// is the execution order.
type Pipeline struct {
	Name   string
	Stages []Stage
}

// Validate rejects pipelines that cannot run.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return errors.New("pipeline has no name")
	}
	if len(p.Stages) == 0 {
		return fmt.Errorf("pipeline %s has no stages", p.Name)
	}
	seen := make(map[string]bool, len(p.Stages))
	for i, s := range p.Stages {
		if s.Name == "" {
			return fmt.Errorf("pipeline %s: stage %d has no name", p.Name, i)
		}
		if s.Run == nil {
			return fmt.Errorf("pipeline %s: stage %s has no body", p.Name, s.Name)
		}
		if seen[s.Name] {
			return fmt.Errorf("pipeline %s: duplicate stage %s", p.Name, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// StageNames returns the declared stage order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.Stages))
	for i, s := range p.Stages {
		names[i] = s.Name
	}
	return names
}

// ProgressFunc is invoked synchronously at each stage boundary. It
// must not panic and should return quickly; slow callbacks stall the
// job.
type ProgressFunc func(stage, message string, percent float64)
