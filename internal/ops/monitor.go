package ops

import (
	"context"
	"sync"
	"time"

	"github.com/conveyorhq/conveyor/internal/infra/guard"
	"github.com/conveyorhq/conveyor/internal/pipeline"
)

// StorePinger checks job store reachability. Backends without a remote
// side pass nil.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// Monitor aggregates health from the guards, the job store and the run
// registry.
type Monitor struct {
	guards   map[string]*guard.Guard
	registry *pipeline.Registry
	pinger   StorePinger

	mu         sync.Mutex
	lastCheck  time.Time
	lastReport HealthReport
}

// NewMonitor creates a new health monitor.
func NewMonitor(guards map[string]*guard.Guard, registry *pipeline.Registry, pinger StorePinger) *Monitor {
	return &Monitor{guards: guards, registry: registry, pinger: pinger}
}

// CheckHealth builds the report for all components.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks so probes stay cheap
	if time.Since(m.lastCheck) < 5*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	report := HealthReport{
		SystemStatus: StatusHealthy,
		Store:        "ok",
		Services:     make(map[string]ServiceHealth, len(m.guards)),
	}

	if m.pinger != nil {
		if err := m.pinger.Ping(ctx); err != nil {
			report.Store = err.Error()
			report.SystemStatus = StatusCritical
		}
	}

	for name, g := range m.guards {
		state := g.Breaker().State()
		sh := ServiceHealth{
			Service:    name,
			Status:     StatusHealthy,
			Breaker:    state.String(),
			QueueDepth: g.QueueDepth(),
		}
		switch state {
		case guard.StateOpen:
			sh.Status = StatusCritical
		case guard.StateHalfOpen:
			sh.Status = StatusDegraded
		}
		// An open breaker degrades the system but does not take it down;
		// only an unreachable store is critical overall.
		if sh.Status != StatusHealthy && report.SystemStatus == StatusHealthy {
			report.SystemStatus = StatusDegraded
		}
		report.Services[name] = sh
	}

	report.JobsRunning, report.JobsErrored = m.registry.Stats()

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
