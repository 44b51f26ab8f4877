package extract

import (
	"context"
	"time"
)

// RetryPolicy retries an operation with exponential backoff. The predicate
// decides retryability; by default only rate-limit upstream errors qualify,
// so a failing service is surfaced immediately instead of hammered.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry; doubled each attempt.
	BaseDelay time.Duration

	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration

	// IsRetryable determines if an error should be retried.
	IsRetryable func(error) bool
}

// DefaultRetryPolicy returns the policy used for extraction calls:
// three attempts, one-second base delay, rate-limit errors only.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		IsRetryable: IsRateLimited,
	}
}

// Do executes fn under the policy. A server-supplied Retry-After hint on a
// rate-limit error overrides the computed backoff for that wait.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.IsRetryable == nil {
		p.IsRetryable = IsRateLimited
	}

	var lastErr error
	delay := p.BaseDelay

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !p.IsRetryable(err) {
			return err
		}

		if attempt < p.MaxAttempts {
			wait := delay
			if hint := retryAfterHint(err); hint > 0 {
				wait = hint
			}
			if wait > p.MaxDelay {
				wait = p.MaxDelay
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			delay *= 2
		}
	}

	return lastErr
}
