package transport

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles how often new streams are opened. It never retries.
type Limited struct {
	next    Caller
	limiter *rate.Limiter
}

// NewLimited wraps next with a token bucket of rps streams per second. A
// non-positive rps disables the limit and returns next unchanged.
func NewLimited(next Caller, rps float64, burst int) Caller {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limited) Stream(ctx context.Context, call Call, onFrame func(Frame)) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return l.next.Stream(ctx, call, onFrame)
}
