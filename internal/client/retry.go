package client

import (
	"context"
	"time"

	"github.com/vietddude/apiguard/internal/core/domain"
)

// DefaultRetryPredicate retries pure network failures, 5xx responses and the
// timeout/DNS transport codes. Client errors are never retried.
func DefaultRetryPredicate(f *domain.FailureInfo) bool {
	if f == nil {
		return false
	}
	if f.NoResponse() {
		return true
	}
	if f.Status >= 500 && f.Status <= 599 {
		return true
	}
	switch f.Code {
	case domain.CodeConnAborted, domain.CodeTimedOut, domain.CodeNotFound:
		return true
	}
	return false
}

// Delay is the unclamped backoff before attempt+1: min(MaxDelay, BaseDelay*2^attempt).
func Delay(p domain.RetryPolicy, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt >= 62 {
		return p.MaxDelay
	}
	d := p.BaseDelay << attempt
	if d <= 0 || d/p.BaseDelay != 1<<attempt || d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Backoff is Delay clamped to the remaining budget, with a MinClampedDelay
// floor once clamping applies.
func Backoff(p domain.RetryPolicy, attempt int, elapsed time.Duration) time.Duration {
	d := Delay(p, attempt)
	remaining := p.OverallTimeout - elapsed
	if remaining < d {
		d = max(remaining, domain.MinClampedDelay)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
