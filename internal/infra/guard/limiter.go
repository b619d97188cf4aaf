package guard

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between dispatches to one
// dependency.
type RateLimiter struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{interval: minInterval}
}

// Wait blocks until the interval since the previous dispatch has
// elapsed, then claims the slot. A zero interval returns immediately.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil || rl.interval <= 0 {
		return nil
	}

	for {
		rl.mu.Lock()
		now := time.Now()
		next := rl.last.Add(rl.interval)
		if !now.Before(next) {
			rl.last = now
			rl.mu.Unlock()
			return nil
		}
		wait := next.Sub(now)
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
