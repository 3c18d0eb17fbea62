package image

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Throttle spaces calls at least interval apart across all goroutines
// sharing it.
type Throttle struct {
	limiter *rate.Limiter
}

// NewThrottle creates a Throttle with the given minimum spacing.
// A zero interval never blocks.
func NewThrottle(interval time.Duration) *Throttle {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Throttle{limiter: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the caller may proceed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}
