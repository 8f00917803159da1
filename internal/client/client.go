// Package client is the only entry point callers use: it runs each logical
// call as a bounded, deadline-aware retry loop over the transport executor and
// funnels every terminal failure through the error normalizer.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/metrics"
)

// Executor performs one physical attempt.
type Executor interface {
	Execute(ctx context.Context, ac domain.AttemptContext, spec domain.RequestSpec) (*domain.Response, error)
}

// FailureHandler turns failures into caller-facing errors. Both methods
// always return a non-nil error.
type FailureHandler interface {
	Handle(ctx context.Context, err error, call domain.CallContext) error
	HandleTransport(ctx context.Context, f *domain.FailureInfo, userMessage string, call domain.CallContext) error
}

// Client is the retry coordinator.
type Client struct {
	exec        Executor
	failures    FailureHandler
	policy      domain.RetryPolicy
	credentials bool
	log         *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy sets the default policy for calls without an override.
func WithPolicy(p domain.RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithCredentials sets whether calls include credentials unless overridden.
func WithCredentials(include bool) Option {
	return func(c *Client) { c.credentials = include }
}

// WithClock replaces the time source and the inter-attempt sleep.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.now = now
		c.sleep = sleep
	}
}

// New creates a Client.
func New(exec Executor, failures FailureHandler, opts ...Option) *Client {
	c := &Client{
		exec:        exec,
		failures:    failures,
		policy:      domain.DefaultRetryPolicy(),
		credentials: true,
		log:         slog.Default(),
		now:         time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the effective policy for spec.
func (c *Client) Policy(spec domain.RequestSpec) domain.RetryPolicy {
	p := c.policy
	if spec.Policy != nil {
		p = *spec.Policy
	}
	p = p.WithDefaults()
	if p.RetryPredicate == nil {
		p.RetryPredicate = DefaultRetryPredicate
	}
	return p
}

// Do runs one logical call. On failure the returned error is the normalized
// *errs.APIError produced by the failure handler.
func (c *Client) Do(ctx context.Context, spec domain.RequestSpec) (*domain.Response, error) {
	policy := c.Policy(spec)
	requestID := domain.NewRequestID()
	timeout := policy.AttemptTimeout()
	method := spec.Verb()
	start := c.now()

	var last *domain.FailureInfo
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		ac := domain.AttemptContext{
			Attempt:     attempt,
			MaxAttempts: policy.MaxAttempts,
			RequestID:   requestID,
			Elapsed:     c.now().Sub(start),
			Timeout:     timeout,
		}
		resp, err := c.exec.Execute(ctx, ac, spec)
		if err == nil {
			metrics.RequestAttempts.WithLabelValues(method, "success").Inc()
			metrics.CallLatency.WithLabelValues(method, "success").Observe(c.now().Sub(start).Seconds())
			if attempt > 0 {
				c.log.Debug("Request succeeded after retry",
					"method", method, "url", spec.URL, "attempts", attempt+1, "request_id", requestID)
			}
			return resp, nil
		}
		metrics.RequestAttempts.WithLabelValues(method, "failure").Inc()

		last = toFailure(err, spec, ac)
		elapsed := c.now().Sub(start)
		isLastAttempt := attempt == policy.MaxAttempts-1
		deadlineExceeded := elapsed >= policy.OverallTimeout

		if isLastAttempt || deadlineExceeded || !policy.RetryPredicate(last) {
			return nil, c.giveUp(ctx, spec, last, attempt, policy, start)
		}

		delay := Backoff(policy, attempt, elapsed)
		c.log.Warn("Request attempt failed, retrying",
			"method", method,
			"url", spec.URL,
			"attempt", fmt.Sprintf("%d/%d", attempt+1, policy.MaxAttempts),
			"error", last.Message,
			"code", last.Code,
			"status", last.Status,
			"retry_in", delay,
			"request_id", requestID,
		)
		notifyRetry(policy.OnRetry, attempt, last)
		metrics.Retries.WithLabelValues(method).Inc()

		if err := c.sleep(ctx, delay); err != nil {
			return nil, c.giveUp(ctx, spec, last, attempt, policy, start)
		}
	}

	if last == nil {
		last = &domain.FailureInfo{
			Code:    domain.CodeUnknown,
			Message: domain.ErrAttemptsExhausted.Error(),
			Context: domain.FailureContext{RequestID: requestID, Endpoint: spec.EndpointName()},
			Err:     domain.ErrAttemptsExhausted,
		}
	}
	return nil, c.giveUp(ctx, spec, last, policy.MaxAttempts-1, policy, start)
}

// giveUp logs the terminal failure and hands it to the failure handler. The
// handler runs detached from ctx so a forced logout is never cut short.
func (c *Client) giveUp(
	ctx context.Context,
	spec domain.RequestSpec,
	f *domain.FailureInfo,
	attempt int,
	policy domain.RetryPolicy,
	start time.Time,
) error {
	c.log.Error("Request failed",
		"method", spec.Verb(),
		"url", spec.URL,
		"attempt", fmt.Sprintf("%d/%d", attempt+1, policy.MaxAttempts),
		"error", f.Message,
		"code", f.Code,
		"status", f.Status,
		"elapsed", c.now().Sub(start),
		"request_id", f.Context.RequestID,
	)
	metrics.CallLatency.WithLabelValues(spec.Verb(), "failure").Observe(c.now().Sub(start).Seconds())
	return c.failures.HandleTransport(context.WithoutCancel(ctx), f, spec.UserMessage, spec.Call)
}

// toFailure makes sure every attempt error is a FailureInfo carrying the
// call's correlation id.
func toFailure(err error, spec domain.RequestSpec, ac domain.AttemptContext) *domain.FailureInfo {
	var f *domain.FailureInfo
	if !errors.As(err, &f) {
		code := domain.CodeNetwork
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			code = domain.CodeConnAborted
		}
		f = &domain.FailureInfo{Code: code, Message: err.Error(), Err: err}
	}
	if f.Context.RequestID == "" {
		f.Context.RequestID = ac.RequestID
	}
	if f.Context.Endpoint == "" {
		f.Context.Endpoint = spec.EndpointName()
	}
	if f.Context.Timestamp.IsZero() {
		f.Context.Timestamp = time.Now().UTC()
	}
	return f
}

func notifyRetry(hook func(int, *domain.FailureInfo), attempt int, f *domain.FailureInfo) {
	if hook == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("OnRetry hook panicked", "panic", r)
		}
	}()
	hook(attempt, f)
}
