package chat

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles an underlying Sender with a token bucket.
type Limited struct {
	next    Sender
	limiter *rate.Limiter
}

// NewLimited allows perSecond sends on average with the given burst.
// A non-positive perSecond disables throttling.
func NewLimited(next Sender, perSecond float64, burst int) *Limited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, burst)}
}

// Send waits for a token, then delegates.
func (l *Limited) Send(ctx context.Context, to string, msg Message) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return l.next.Send(ctx, to, msg)
}
