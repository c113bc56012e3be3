package geocode

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// limiter enforces a minimum interval between outbound lookups.
type limiter struct {
	rl *rate.Limiter
}

func newLimiter(minDelay time.Duration) *limiter {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	return &limiter{rl: rate.NewLimiter(limit, 1)}
}

// Wait blocks until the next lookup is allowed.
func (l *limiter) Wait(ctx context.Context) error {
	return l.rl.Wait(ctx)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
