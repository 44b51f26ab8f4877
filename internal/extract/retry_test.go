package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		IsRetryable: IsRateLimited,
	}
}

func TestRetryBoundOnPermanentRateLimit(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return &UpstreamError{Service: "llm", StatusCode: 429, Message: "rate limited"}
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls, "should stop after MaxAttempts")

	var ue *UpstreamError
	require.ErrorAs(t, err, &ue)
	assert.True(t, ue.RateLimited())
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	calls := 0
	upstream := &UpstreamError{Service: "parser", StatusCode: 500, Message: "boom"}
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		return upstream
	})

	require.ErrorIs(t, err, upstream)
	assert.Equal(t, 1, calls, "non-rate-limit errors must not be retried")
}

func TestRetrySucceedsAfterRateLimit(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return &UpstreamError{Service: "llm", StatusCode: 429}
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryHonorsRetryAfterHint(t *testing.T) {
	start := time.Now()
	hint := 20 * time.Millisecond
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &UpstreamError{Service: "llm", StatusCode: 429, RetryAfter: hint}
		}
		return nil
	})

	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), hint)
}

func TestRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastPolicy(3).Do(ctx, func() error {
		return &UpstreamError{StatusCode: 429}
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRateLimitedOnWrappedError(t *testing.T) {
	wrapped := errors.Join(errors.New("outer"), &UpstreamError{StatusCode: 429})
	assert.True(t, IsRateLimited(wrapped))
	assert.False(t, IsRateLimited(errors.New("plain")))
}
