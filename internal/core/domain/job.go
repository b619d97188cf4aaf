package domain

import "time"

// Job is the live execution state of a single pipeline run
type Job struct {
	ID           string
	Pipeline     string
	Input        any
	Stages       []string
	CurrentStage string
	Completed    *StageOutputs
	RetryCount   int
	MaxRetries   int
	LastError    string
	Status       JobStatus
	StartTime    time.Time
}

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// NewJob builds a fresh job positioned at the first declared stage.
func NewJob(id, pipeline string, stages []string, input any, maxRetries int) *Job {
	j := &Job{
		ID:         id,
		Pipeline:   pipeline,
		Input:      input,
		Stages:     append([]string(nil), stages...),
		Completed:  NewStageOutputs(),
		MaxRetries: maxRetries,
		Status:     JobStatusRunning,
		StartTime:  time.Now(),
	}
	if len(j.Stages) > 0 {
		j.CurrentStage = j.Stages[0]
	}
	return j
}

// Progress derives completion percentage from recorded stages.
func (j *Job) Progress() float64 {
	if len(j.Stages) == 0 {
		return 0
	}
	return float64(j.Completed.Len()) / float64(len(j.Stages)) * 100
}

// Remaining lists declared stages that have no recorded output yet,
// preserving declaration order.
func (j *Job) Remaining() []string {
	var rest []string
	for _, s := range j.Stages {
		if !j.Completed.Has(s) {
			rest = append(rest, s)
		}
	}
	return rest
}

// Snapshot copies the job for error reporting. Stage outputs are
// shallow-copied; callers must not mutate them.
func (j *Job) Snapshot() *Job {
	cp := *j
	cp.Stages = append([]string(nil), j.Stages...)
	cp.Completed = j.Completed.Clone()
	return &cp
}
