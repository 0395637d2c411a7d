package provider

import (
	"errors"
	"math/rand"
	"time"
)

// Retryable marks an error as explicitly retryable regardless of any HTTP
// status code — e.g. a provider's "authorization in progress" condition.
type Retryable struct {
	Cause error
}

func (r Retryable) Error() string { return "retryable: " + r.Cause.Error() }
func (r Retryable) Unwrap() error { return r.Cause }

// RetryPolicy bounds the exponential-backoff-with-jitter retry loop shared by
// every provider's HTTP client.
type RetryPolicy struct {
	RetryableStatuses map[int]bool
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

// DefaultRetryPolicy matches the teacher's existing transient-status set
// (429, 500, 502, 503, 504) with bounded exponential backoff and jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		RetryableStatuses: map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true},
		MaxAttempts:       3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
	}
}

// ShouldRetry reports whether attempt (0-indexed, the attempt that just
// failed) should be retried given status/err, and if so the delay to wait.
// A request is retried when the status is in the configured retry set or err
// is explicitly typed Retryable; all other errors are not retried. Bounded
// by MaxAttempts and MaxDelay.
func (p RetryPolicy) ShouldRetry(status int, err error, attempt int) (bool, time.Duration) {
	if attempt+1 >= p.MaxAttempts {
		return false, 0
	}
	var retryable Retryable
	isRetryable := p.RetryableStatuses[status] || errors.As(err, &retryable)
	if !isRetryable {
		return false, 0
	}
	delay := p.BaseDelay << attempt
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))
	return true, delay/2 + jitter
}
