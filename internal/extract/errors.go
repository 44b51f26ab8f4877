package extract

import (
	"errors"
	"fmt"
	"time"
)

// UpstreamError means the parsing or model service answered with a
// non-success status (or did not answer at all). Rate-limit responses are
// the only retryable variant.
type UpstreamError struct {
	Service    string // "parser" or "llm"
	StatusCode int
	Message    string

	// RetryAfter carries a server-supplied retry hint, zero when absent.
	RetryAfter time.Duration
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s upstream error: HTTP %d: %s", e.Service, e.StatusCode, e.Message)
}

// RateLimited reports whether the upstream response was a rate limit.
func (e *UpstreamError) RateLimited() bool {
	return e.StatusCode == 429
}

// ParseError means the upstream call succeeded but its body was not
// parseable as the expected structured format. Kept distinct from
// UpstreamError so operators can tell "service down" from "service
// answered nonsense".
type ParseError struct {
	Service string
	Detail  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s parse error: %s", e.Service, e.Detail)
}

// IsRateLimited reports whether err is a retryable rate-limit upstream error.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.RateLimited()
}

// retryAfterHint extracts the server-supplied retry delay, if any.
func retryAfterHint(err error) time.Duration {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.RetryAfter
	}
	return 0
}
