package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal tracks finished jobs per pipeline and outcome
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conveyor_jobs_total",
			Help: "Total number of finished jobs",
		},
		[]string{"pipeline", "status"},
	)

	// JobsInFlight tracks jobs currently executing
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "conveyor_jobs_in_flight",
			Help: "Number of jobs currently executing",
		},
	)

	// StageAttemptsTotal tracks stage executions per pipeline, stage and outcome
	StageAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conveyor_stage_attempts_total",
			Help: "Total number of stage executions",
		},
		[]string{"pipeline", "stage", "outcome"},
	)

	// StageLatency tracks wall-clock stage duration including retries
	StageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conveyor_stage_duration_seconds",
			Help:    "Stage duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "stage"},
	)

	// RetriesTotal tracks retry sleeps per dependency and error type
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conveyor_retries_total",
			Help: "Total number of retries",
		},
		[]string{"service", "error_type"},
	)

	// BreakerState exposes the breaker position per dependency
	// (0 closed, 1 open, 2 half-open)
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conveyor_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"service"},
	)

	// BreakerTripsTotal tracks CLOSED to OPEN transitions per dependency
	BreakerTripsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conveyor_breaker_trips_total",
			Help: "Total number of circuit breaker trips",
		},
		[]string{"service"},
	)

	// QueueDepth tracks tasks waiting in a request queue
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "conveyor_queue_depth",
			Help: "Number of tasks waiting for dispatch",
		},
		[]string{"service"},
	)

	// QueueWaitSeconds tracks time between enqueue and dispatch
	QueueWaitSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conveyor_queue_wait_seconds",
			Help:    "Time a task waited in the queue before dispatch",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// JobStoreErrors tracks job store failures per backend and operation
	JobStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conveyor_jobstore_errors_total",
			Help: "Total number of job store failures",
		},
		[]string{"backend", "op"},
	)
)
