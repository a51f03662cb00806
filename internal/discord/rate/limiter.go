package rate

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum delay between outbound Discord requests so
// best-effort notifications cannot storm a channel.
type Limiter struct {
	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// New creates a rate limiter with the given minimum interval between calls.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		lastRequest: time.Now().Add(-minInterval),
		minInterval: minInterval,
	}
}

// WaitForNextSlot blocks until enough time has passed since the last request.
func (r *Limiter) WaitForNextSlot(ctx context.Context) error {
	r.mu.Lock()
	waitDuration := r.minInterval - time.Since(r.lastRequest)
	r.mu.Unlock()

	if waitDuration > 0 {
		timer := time.NewTimer(waitDuration)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r.mu.Lock()
	r.lastRequest = time.Now()
	r.mu.Unlock()

	return nil
}
