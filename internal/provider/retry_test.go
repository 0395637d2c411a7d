package provider

import (
	"errors"
	"testing"
)

func TestShouldRetryMatchesConfiguredStatusesOnly(t *testing.T) {
	p := DefaultRetryPolicy()
	if ok, _ := p.ShouldRetry(429, nil, 0); !ok {
		t.Error("429 should be retryable")
	}
	if ok, _ := p.ShouldRetry(400, nil, 0); ok {
		t.Error("400 should not be retryable")
	}
	if ok, _ := p.ShouldRetry(404, errors.New("plain"), 0); ok {
		t.Error("plain error on non-retryable status should not retry")
	}
}

func TestShouldRetryExplicitRetryableType(t *testing.T) {
	p := DefaultRetryPolicy()
	err := Retryable{Cause: errors.New("auth in progress")}
	if ok, _ := p.ShouldRetry(0, err, 0); !ok {
		t.Error("explicit Retryable should retry regardless of status")
	}
}

func TestShouldRetryBoundedByMaxAttempts(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 2
	if ok, _ := p.ShouldRetry(429, nil, 1); ok {
		t.Error("attempt at MaxAttempts-1 boundary should not retry further")
	}
}

func TestShouldRetryDelayBounded(t *testing.T) {
	p := DefaultRetryPolicy()
	p.MaxAttempts = 10
	p.BaseDelay = 100 * p.MaxDelay // force clamping
	ok, delay := p.ShouldRetry(500, nil, 0)
	if !ok {
		t.Fatal("expected retry")
	}
	if delay > p.MaxDelay {
		t.Errorf("delay %v exceeds MaxDelay %v", delay, p.MaxDelay)
	}
}
