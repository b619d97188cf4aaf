package guard

import (
	"context"
	"time"
)

// Config bundles the protection settings for one dependency.
type Config struct {
	Service string
	// Timeout races each individual attempt; zero disables it.
	Timeout time.Duration
	Retry   RetryConfig
	Breaker BreakerConfig
	// MinInterval spaces dispatches to the dependency; zero disables
	// the rate limiter.
	MinInterval time.Duration
	// Serialize funnels all callers through a FIFO queue. Required for
	// dependencies with a shared global rate limit.
	Serialize   bool
	QueueBuffer int
}

// Guard composes retry, circuit breaking, queueing, rate limiting and
// per-attempt timeouts for one dependency. All jobs calling that
// dependency share a single Guard, so one job's failures trip the
// breaker for everyone.
type Guard struct {
	service string
	cfg     Config
	breaker *CircuitBreaker
	limiter *RateLimiter
	queue   *RequestQueue
}

func New(cfg Config) *Guard {
	if cfg.Retry.MaxRetries <= 0 {
		cfg.Retry.MaxRetries = DefaultRetryConfig.MaxRetries
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = DefaultRetryConfig.BaseDelay
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = DefaultRetryConfig.MaxDelay
	}
	if cfg.Retry.Multiplier <= 0 {
		cfg.Retry.Multiplier = DefaultRetryConfig.Multiplier
	}
	if cfg.Retry.Jitter <= 0 {
		cfg.Retry.Jitter = DefaultRetryConfig.Jitter
	}

	g := &Guard{
		service: cfg.Service,
		cfg:     cfg,
		breaker: NewCircuitBreaker(cfg.Service, cfg.Breaker),
	}
	if cfg.MinInterval > 0 {
		g.limiter = NewRateLimiter(cfg.MinInterval)
	}
	if cfg.Serialize {
		g.queue = NewRequestQueue(cfg.Service, g.limiter, cfg.QueueBuffer)
	}
	return g
}

// Service returns the dependency this guard protects.
func (g *Guard) Service() string {
	return g.service
}

// Breaker exposes the underlying circuit breaker for health reporting.
func (g *Guard) Breaker() *CircuitBreaker {
	return g.breaker
}

// QueueDepth reports pending queued calls, zero when not serialized.
func (g *Guard) QueueDepth() int {
	if g.queue == nil {
		return 0
	}
	return g.queue.Depth()
}

// Run drives the request queue drain loop until ctx is cancelled.
// Guards without a queue return immediately.
func (g *Guard) Run(ctx context.Context) {
	if g.queue == nil {
		return
	}
	g.queue.Run(ctx)
}

// Do executes op under the full policy chain:
// retry(breaker(queue|limiter(timeout(op)))).
func (g *Guard) Do(ctx context.Context, op Operation) (any, error) {
	return Retry(ctx, g.cfg.Retry, g.service, func(ctx context.Context) (any, error) {
		return g.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
			return g.submit(ctx, op)
		})
	})
}

func (g *Guard) submit(ctx context.Context, op Operation) (any, error) {
	bounded := func(ctx context.Context) (any, error) {
		return g.attempt(ctx, op)
	}
	if g.queue != nil {
		return g.queue.Enqueue(ctx, bounded)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return bounded(ctx)
}

// attempt races op against the per-attempt timeout so a stuck call
// cannot wedge the job. The losing goroutine's result is discarded.
func (g *Guard) attempt(ctx context.Context, op Operation) (any, error) {
	if g.cfg.Timeout <= 0 {
		return op(ctx)
	}

	actx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	done := make(chan queueResult, 1)
	go func() {
		value, err := op(actx)
		done <- queueResult{value: value, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-actx.Done():
		return nil, actx.Err()
	}
}
