package errs

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/metrics"
)

// LogoutHandler tears the session down. It must not return before the
// teardown has finished (or given up).
type LogoutHandler interface {
	ForceLogout(ctx context.Context, reason domain.LogoutReason)
}

// UserResolver supplies the acting user id when the caller did not.
type UserResolver interface {
	UserID(ctx context.Context) string
}

// Normalizer is the single funnel every terminal failure passes through:
// extract, log, count, maybe tear down, return an *APIError.
type Normalizer struct {
	log      *slog.Logger
	counters *Counters
	logout   LogoutHandler
	users    UserResolver
	messages Messages
	now      func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

func WithLogger(l *slog.Logger) Option { return func(n *Normalizer) { n.log = l } }

func WithUserResolver(r UserResolver) Option { return func(n *Normalizer) { n.users = r } }

func WithMessages(m Messages) Option { return func(n *Normalizer) { n.messages = m } }

func WithClock(now func() time.Time) Option { return func(n *Normalizer) { n.now = now } }

// NewNormalizer creates a Normalizer. logout may be nil, in which case
// session-ending failures are only logged.
func NewNormalizer(counters *Counters, logout LogoutHandler, opts ...Option) *Normalizer {
	n := &Normalizer{
		log:      slog.Default(),
		counters: counters,
		logout:   logout,
		messages: DefaultMessages(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.counters == nil {
		n.counters = NewCounters(DefaultThreshold, DefaultWindow)
	}
	return n
}

// Counters returns the counter set owned by this normalizer.
func (n *Normalizer) Counters() *Counters { return n.counters }

// Handle normalizes any error. It always returns a non-nil *APIError; an
// error that is already an *APIError is returned unchanged.
func (n *Normalizer) Handle(ctx context.Context, err error, call domain.CallContext) error {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr
	}
	return n.process(ctx, n.extract(err), "", call)
}

// HandleTransport normalizes a failure from the retry loop. A non-empty
// userMessage replaces the table message.
func (n *Normalizer) HandleTransport(
	ctx context.Context,
	f *domain.FailureInfo,
	userMessage string,
	call domain.CallContext,
) error {
	if f == nil {
		f = &domain.FailureInfo{Code: domain.CodeUnknown, Message: domain.ErrAttemptsExhausted.Error(), Err: domain.ErrAttemptsExhausted}
	}
	return n.process(ctx, f, userMessage, call)
}

func (n *Normalizer) extract(err error) *domain.FailureInfo {
	var f *domain.FailureInfo
	if errors.As(err, &f) {
		return f
	}
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &domain.FailureInfo{Code: domain.CodeUnknown, Message: msg, Local: true, Err: err}
}

func (n *Normalizer) process(
	ctx context.Context,
	f *domain.FailureInfo,
	userMessage string,
	call domain.CallContext,
) error {
	n.fillContext(ctx, f, call)

	status := f.StatusOr(domain.NoStatusFallback)
	n.log.LogAttrs(ctx, slog.LevelError, "Request failed",
		slog.String("error_id", f.Context.RequestID),
		slog.String("code", f.Code),
		slog.Int("status", status),
		slog.String("error", f.Message),
		slog.Group("context",
			slog.String("endpoint", f.Context.Endpoint),
			slog.String("user_id", f.Context.UserID),
			slog.String("action", f.Context.Action),
			slog.String("timestamp", f.Context.Timestamp.Format(time.RFC3339Nano)),
		),
	)

	if count, reached := n.counters.Record(f); reached {
		n.log.Warn("Error rate threshold reached",
			"key", f.CounterKey(),
			"count", count,
			"window", n.counters.Window(),
		)
	}

	forced := ShouldForceLogout(f)
	if forced {
		reason := LogoutReasonFor(f)
		metrics.ForcedLogouts.WithLabelValues(string(reason)).Inc()
		n.forceLogout(ctx, reason, f)
	}

	msg := userMessage
	if msg == "" {
		msg = n.messages.Lookup(f)
	}
	return &APIError{
		StatusCode:    status,
		StatusMessage: StatusMessage(status),
		Data: ErrorData{
			Message:   msg,
			ErrorID:   f.Context.RequestID,
			Timestamp: f.Context.Timestamp.Format(time.RFC3339Nano),
		},
		Code:         f.Code,
		ForcedLogout: forced,
	}
}

func (n *Normalizer) fillContext(ctx context.Context, f *domain.FailureInfo, call domain.CallContext) {
	if f.Context.RequestID == "" {
		f.Context.RequestID = domain.NewRequestID()
	}
	if f.Context.Timestamp.IsZero() {
		f.Context.Timestamp = n.now().UTC()
	}
	if call.Endpoint != "" {
		f.Context.Endpoint = call.Endpoint
	}
	if call.Action != "" {
		f.Context.Action = call.Action
	}
	if call.UserID != "" {
		f.Context.UserID = call.UserID
	}
	if f.Context.UserID == "" && n.users != nil {
		f.Context.UserID = n.users.UserID(ctx)
	}
}

// forceLogout runs the teardown and contains any panic so the error is still
// returned to the caller.
func (n *Normalizer) forceLogout(ctx context.Context, reason domain.LogoutReason, f *domain.FailureInfo) {
	if n.logout == nil {
		n.log.Warn("Session-ending failure without logout handler", "reason", reason, "error_id", f.Context.RequestID)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("Forced logout panicked", "reason", reason, "panic", r)
		}
	}()
	n.log.Warn("Forcing logout",
		"reason", reason,
		"error_id", f.Context.RequestID,
		"endpoint", f.Context.Endpoint,
		"status", strconv.Itoa(f.Status),
	)
	n.logout.ForceLogout(ctx, reason)
}
