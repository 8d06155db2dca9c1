package llm

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries        int     // retry attempts after the initial call
	BaseDelay         float64 // initial delay in seconds
	MaxDelay          float64 // maximum delay between retries
	BackoffMultiplier float64 // exponential backoff factor
	Jitter            bool    // randomize delays to prevent thundering herd
}

// DefaultRetryPolicy returns the default policy used by the adapters.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         1.0,
		MaxDelay:          30.0,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay calculates the delay for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := math.Min(p.BaseDelay*math.Pow(p.BackoffMultiplier, float64(attempt)), p.MaxDelay)
	if p.Jitter {
		// +/- 50% jitter
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay * float64(time.Second))
}

// Retry executes fn, retrying only retryable errors per the policy.
// A RateLimitError's Retry-After hint overrides the computed delay; if the
// hint exceeds MaxDelay the error is returned immediately.
func Retry[T any](ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	result, err := fn(ctx)
	for attempt := 0; err != nil && attempt < policy.MaxRetries; attempt++ {
		if !IsRetryable(err) {
			return zero, err
		}

		delay := policy.Delay(attempt)
		if rl, ok := err.(*RateLimitError); ok && rl.RetryAfter != nil {
			hinted := time.Duration(*rl.RetryAfter * float64(time.Second))
			if hinted > time.Duration(policy.MaxDelay*float64(time.Second)) {
				return zero, err
			}
			delay = hinted
		}

		select {
		case <-ctx.Done():
			return zero, &AbortError{SDKError: SDKError{Message: "request cancelled during retry", Cause: ctx.Err()}}
		case <-time.After(delay):
		}

		result, err = fn(ctx)
	}
	if err != nil {
		return zero, err
	}
	return result, nil
}
