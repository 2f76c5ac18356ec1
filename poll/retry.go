package poll

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// RetryPolicy controls how outbound calls inside a poll cycle are retried:
// MaxRetries+1 attempts in total, waiting BaseDelay, 2*BaseDelay, 4*BaseDelay...
// between them. There is no jitter and no cap.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration

	observe func(time.Duration) // test hook, called with each computed delay
}

// DefaultRetryPolicy is 3 retries starting at 5 seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 5 * time.Second}
}

// Backoff returns the wait before retry n (0-based). It saturates instead of overflowing.
func (p RetryPolicy) Backoff(n uint) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if n >= 63 || p.BaseDelay > time.Duration(math.MaxInt64>>n) {
		return time.Duration(math.MaxInt64)
	}
	return p.BaseDelay << n
}

func (p RetryPolicy) attempts() uint {
	if p.MaxRetries < 0 {
		return 1
	}
	return uint(p.MaxRetries) + 1
}

// Retry runs fn under policy p. If every attempt fails the final error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := retry.Do(
		func() error {
			v, err := fn(ctx)
			if err != nil {
				return err
			}
			result = v
			return nil
		},
		retry.Attempts(p.attempts()),
		retry.Delay(p.BaseDelay),
		// n is the attempt count, already incremented: 1 before the first retry.
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			if n > 0 {
				n--
			}
			d := p.Backoff(n)
			if p.observe != nil {
				p.observe(d)
			}
			return d
		}),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			if n+1 >= p.attempts() {
				return
			}
			logger.Info("Retrying after error",
				"op", op,
				"attempt", n+1,
				"max_attempts", p.attempts(),
				"next_delay", p.Backoff(n).String(),
				"error", err)
		}),
	)
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// RetryErr is Retry for calls that return only an error.
func RetryErr(ctx context.Context, p RetryPolicy, logger *slog.Logger, op string, fn func(context.Context) error) error {
	_, err := Retry(ctx, p, logger, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
