package coreerr

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff with jitter, matching the
// object store adapter's contract (spec §4.1): bounded attempts, a base
// delay, and a cap.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first
	// (not "retries"), so MaxAttempts=6 means up to 5 retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultRetryPolicy matches spec §4.1's default object store retry
// contract: 6 attempts, 100ms base, capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 6,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Jitter:      true,
	}
}

// Retry runs fn until it succeeds, ctx is cancelled, the policy is
// exhausted, or fn returns a non-retryable error. Non-retryable errors
// (per IsRetryable) return immediately without consuming further attempts.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	_, err := RetryWithResult(ctx, policy, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult is Retry for functions that also produce a value.
func RetryWithResult[T any](ctx context.Context, policy RetryPolicy, fn func() (T, error)) (T, error) {
	var zero T
	delay := policy.BaseDelay

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}

		if !IsRetryable(err) || attempt >= policy.MaxAttempts {
			return zero, err
		}

		wait := delay
		if policy.Jitter {
			wait = time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}

		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}
