package resolver

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// Throttled caps the rate of outbound queries issued through the wrapped
// Resolver. Waiting for a token counts against the caller's deadline, so a
// saturated limiter surfaces as ErrTimeout rather than an unbounded stall.
type Throttled struct {
	next    Resolver
	limiter *rate.Limiter
}

// NewThrottled allows qps queries per second with a burst of burst. A
// non-positive qps returns next unchanged.
func NewThrottled(next Resolver, qps float64, burst int) Resolver {
	if qps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

// LookupTXT waits for a token, then delegates.
func (t *Throttled) LookupTXT(ctx context.Context, name string) ([]string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		// Wait fails early when the token would arrive after the deadline.
		return nil, ErrTimeout
	}
	return t.next.LookupTXT(ctx, name)
}
