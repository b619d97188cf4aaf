package guard

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/conveyorhq/conveyor/internal/core/fault"
	"github.com/conveyorhq/conveyor/internal/metrics"
)

// Operation is a single attempt against an external dependency.
type Operation func(ctx context.Context) (any, error)

// RetryConfig defines backoff behavior for one dependency.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     time.Duration
}

// DefaultRetryConfig provides sensible defaults.
var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   30 * time.Second,
	Multiplier: 2.0,
	Jitter:     100 * time.Millisecond,
}

// Backoff computes the delay before the retry following attempt
// (0-based): BaseDelay*Multiplier^attempt capped at MaxDelay, plus
// uniform jitter.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := float64(c.BaseDelay) * math.Pow(c.Multiplier, float64(attempt))
	if d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	delay := time.Duration(d)
	if c.Jitter > 0 {
		delay += time.Duration(rand.Int63n(int64(c.Jitter)))
	}
	return delay
}

// Retry executes op with exponential backoff, attempts 0..MaxRetries.
// Every failure goes through fault.Classify; a non-retryable
// classification returns immediately. A RATE_LIMIT error carrying a
// server-sent Retry-After sleeps that value verbatim instead of the
// computed backoff.
func Retry(ctx context.Context, cfg RetryConfig, service string, op Operation) (any, error) {
	var lastErr *fault.ServiceError

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		se := fault.Classify(err, service)
		lastErr = se
		if !se.Retryable {
			return nil, se
		}
		if attempt == cfg.MaxRetries {
			break
		}

		delay := cfg.Backoff(attempt)
		if se.Type == fault.TypeRateLimit && se.RetryAfter > 0 {
			delay = se.RetryAfter
		}

		metrics.RetriesTotal.WithLabelValues(service, string(se.Type)).Inc()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", service, cfg.MaxRetries+1, lastErr)
}
