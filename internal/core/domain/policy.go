package domain

import "time"

const (
	DefaultMaxAttempts    = 6
	DefaultBaseDelay      = 2 * time.Second
	DefaultMaxDelay       = 10 * time.Second
	DefaultOverallTimeout = 10 * time.Second

	// MinAttemptTimeout floors the per-attempt timeout.
	MinAttemptTimeout = time.Second
	// MinClampedDelay is the shortest sleep used when the remaining budget is
	// smaller than the computed backoff.
	MinClampedDelay = 100 * time.Millisecond
)

// RetryPolicy controls the attempt loop of one logical call.
// OverallTimeout bounds the sum of attempt timeouts and inter-attempt delays.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	OverallTimeout time.Duration

	// RetryPredicate reports whether a failure may be retried.
	// nil means the client's default predicate.
	RetryPredicate func(*FailureInfo) bool

	// OnRetry observes a retry decision. It cannot influence control flow.
	OnRetry func(attempt int, failure *FailureInfo)
}

// DefaultRetryPolicy returns 1 initial attempt + 5 retries within 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		OverallTimeout: DefaultOverallTimeout,
	}
}

// WithDefaults fills zero fields from DefaultRetryPolicy.
func (p RetryPolicy) WithDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.OverallTimeout <= 0 {
		p.OverallTimeout = def.OverallTimeout
	}
	return p
}

// AttemptTimeout is OverallTimeout / MaxAttempts, floored at MinAttemptTimeout.
func (p RetryPolicy) AttemptTimeout() time.Duration {
	if p.MaxAttempts <= 0 {
		return max(MinAttemptTimeout, p.OverallTimeout)
	}
	return max(MinAttemptTimeout, p.OverallTimeout/time.Duration(p.MaxAttempts))
}

// AttemptContext is created fresh for each attempt.
type AttemptContext struct {
	Attempt     int // 0-based
	MaxAttempts int
	RequestID   string
	Elapsed     time.Duration
	Timeout     time.Duration
}
