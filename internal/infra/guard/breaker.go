package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/fault"
	"github.com/conveyorhq/conveyor/internal/metrics"
)

// BreakerState represents the circuit breaker position.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned without invoking the operation while the
// breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker open")

// BreakerConfig defines trip behavior for one dependency.
type BreakerConfig struct {
	FailureThreshold int
	ResetTimeout     time.Duration
	// MonitorWindow bounds how long a failure counts toward the
	// threshold. Defaults to twice ResetTimeout.
	MonitorWindow time.Duration
}

// DefaultBreakerConfig provides sensible defaults.
var DefaultBreakerConfig = BreakerConfig{
	FailureThreshold: 5,
	ResetTimeout:     30 * time.Second,
	MonitorWindow:    60 * time.Second,
}

// CircuitBreaker guards one dependency. One instance per dependency,
// shared by every job calling it.
type CircuitBreaker struct {
	service string
	cfg     BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    []time.Time
	lastFailure time.Time
	trial       bool
}

func NewCircuitBreaker(service string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultBreakerConfig.ResetTimeout
	}
	if cfg.MonitorWindow <= 0 {
		cfg.MonitorWindow = 2 * cfg.ResetTimeout
	}
	return &CircuitBreaker{service: service, cfg: cfg}
}

// Execute runs op under the breaker. While OPEN and inside the reset
// timeout, calls fail fast without invoking op. After the timeout, a
// single trial call probes the dependency; concurrent callers keep
// failing fast until the trial settles.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation) (any, error) {
	if err := cb.admit(); err != nil {
		return nil, err
	}

	result, err := op(ctx)
	cb.record(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// State returns the current breaker position.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Service returns the dependency this breaker guards.
func (cb *CircuitBreaker) Service() string {
	return cb.service
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cfg.ResetTimeout {
			return cb.openError()
		}
		cb.setState(StateHalfOpen)
		cb.trial = true
		return nil
	case StateHalfOpen:
		if cb.trial {
			return cb.openError()
		}
		cb.trial = true
		return nil
	}
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	// A cancelled caller says nothing about dependency health. An
	// aborted trial frees the slot for the next caller.
	if err != nil && errors.Is(err, context.Canceled) {
		if cb.state == StateHalfOpen {
			cb.trial = false
		}
		return
	}

	if cb.state == StateHalfOpen {
		cb.trial = false
		if err == nil {
			cb.setState(StateClosed)
			cb.failures = nil
			return
		}
		cb.setState(StateOpen)
		metrics.BreakerTripsTotal.WithLabelValues(cb.service).Inc()
		cb.lastFailure = time.Now()
		return
	}

	if err == nil {
		cb.failures = nil
		return
	}

	now := time.Now()
	cb.failures = append(cb.failures, now)
	cb.lastFailure = now

	// Evict failures that fell out of the monitor window.
	if cb.cfg.MonitorWindow > 0 {
		cutoff := now.Add(-cb.cfg.MonitorWindow)
		kept := make([]time.Time, 0, len(cb.failures))
		for _, t := range cb.failures {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		cb.failures = kept
	}

	if len(cb.failures) >= cb.cfg.FailureThreshold {
		cb.setState(StateOpen)
		metrics.BreakerTripsTotal.WithLabelValues(cb.service).Inc()
	}
}

func (cb *CircuitBreaker) setState(s BreakerState) {
	cb.state = s
	metrics.BreakerState.WithLabelValues(cb.service).Set(float64(s))
}

func (cb *CircuitBreaker) openError() *fault.ServiceError {
	return &fault.ServiceError{
		Type:      fault.TypeServiceUnavailable,
		Service:   cb.service,
		Retryable: true,
		Cause:     ErrCircuitOpen,
	}
}
