// Package ops exposes health and metrics endpoints for the engine.
package ops

// SystemStatus represents the overall health state of the system or a
// component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ServiceHealth reports guard state for one external dependency.
type ServiceHealth struct {
	Service    string       `json:"service"`
	Status     SystemStatus `json:"status"`
	Breaker    string       `json:"breaker"`
	QueueDepth int          `json:"queue_depth"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus             `json:"system_status"`
	Store        string                   `json:"store"`
	JobsRunning  int                      `json:"jobs_running"`
	JobsErrored  int                      `json:"jobs_errored"`
	Services     map[string]ServiceHealth `json:"services"`
}
