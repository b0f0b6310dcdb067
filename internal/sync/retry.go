package sync

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tripcraft/tripsync/internal/domain"
)

// Retryer wraps a single network operation with bounded attempts, a fixed
// inter-attempt delay, and a per-attempt timeout. The delay is deliberately
// constant rather than exponential: the attempt budget is small and bounded,
// and a predictable worst-case pass duration matters more than politeness.
//
// Classification comes from the error taxonomy: network, timeout, and 5xx
// failures are retried; auth and validation failures return on first
// occurrence. Do never panics past its boundary — callers always get back
// nil or a classified terminal error.
type Retryer struct {
	// MaxAttempts is the total attempt budget, first try included.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Delay is the fixed pause between attempts.
	Delay time.Duration
	// AttemptTimeout bounds each individual attempt. Zero disables the
	// per-attempt bound (the caller's context still applies).
	AttemptTimeout time.Duration
}

// Do runs op until it succeeds, fails fatally, or the attempt budget is
// exhausted, whichever comes first. An attempt that exceeds AttemptTimeout
// is classified as a timeout failure and counts against the budget.
// Cancellation of ctx stops retrying immediately and returns ctx's error.
func (r Retryer) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := r.Delay
	if delay <= 0 {
		delay = time.Nanosecond // retry.NewConstant rejects non-positive delays
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(delay))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.attempt(ctx, op)
		if err == nil {
			return nil
		}
		if domain.Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// attempt runs op once under the per-attempt timeout and normalizes a
// deadline overrun into a classified timeout error. An overrun of the
// caller's own context is left untouched so cancellation propagates as
// cancellation, not as a retryable timeout.
func (r Retryer) attempt(ctx context.Context, op func(ctx context.Context) error) error {
	attemptCtx := ctx
	if r.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, r.AttemptTimeout)
		defer cancel()
	}

	err := op(attemptCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && domain.KindOf(err) == "" {
		return domain.NewSyncError(domain.KindTimeout, 0, err)
	}
	return err
}
