package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/apiguard/internal/core/domain"
)

// Executor performs the single server-side cookie deletion call.
type Executor interface {
	Execute(ctx context.Context, ac domain.AttemptContext, spec domain.RequestSpec) (*domain.Response, error)
}

// Auditor records finished teardown runs. Optional.
type Auditor interface {
	RecordTeardown(ctx context.Context, report Report) error
}

// Config holds the fixed sets teardown clears.
type Config struct {
	BaseURL         string
	CookieClearPath string
	HomePath        string
	CookieNames     []string
	CookiePaths     []string
	PersistentKeys  []string
	Databases       []string
	ServerTimeout   time.Duration
	NotificationTTL time.Duration
	// WaitTimeout bounds how long a caller waits for a teardown started by
	// someone else.
	WaitTimeout time.Duration
}

// DefaultConfig returns the default cookie, key and database sets.
func DefaultConfig() Config {
	return Config{
		CookieClearPath: "/api/auth/cookies",
		HomePath:        "/",
		CookieNames:     []string{"session", "session_id", "auth_token", "refresh_token", "csrf_token"},
		CookiePaths:     []string{"/", "/api", "/api/auth"},
		PersistentKeys:  []string{"auth_token", "refresh_token", "user", "session", "current_user", "token_expiry"},
		Databases:       []string{"identity_cache", "session_cache"},
		ServerTimeout:   5 * time.Second,
		NotificationTTL: 4 * time.Second,
		WaitTimeout:     5 * time.Second,
	}
}

// Report describes one teardown run.
type Report struct {
	RunID    string              `json:"run_id"`
	Reason   domain.LogoutReason `json:"reason,omitempty"`
	Steps    []StepResult        `json:"steps"`
	Shared   bool                `json:"shared"`
	TimedOut bool                `json:"timed_out"`
}

// Failed returns the steps that did not succeed.
func (r Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Err != nil || s.Error != "" {
			out = append(out, s)
		}
	}
	return out
}

// run is one in-flight teardown. done is closed once report is set.
type run struct {
	done     chan struct{}
	report   Report
	notified bool
}

// Teardown clears all client-held session state. Concurrent callers share
// one run.
type Teardown struct {
	cfg     Config
	base    *url.URL
	store   *Store
	exec    Executor
	auditor Auditor
	log     *slog.Logger

	mu     sync.Mutex
	active *run
}

// Option configures a Teardown.
type Option func(*Teardown)

func WithLogger(l *slog.Logger) Option { return func(t *Teardown) { t.log = l } }

func WithAuditor(a Auditor) Option { return func(t *Teardown) { t.auditor = a } }

// NewTeardown creates a Teardown. exec may be nil, in which case the server
// cookie call is reported as unsupported.
func NewTeardown(cfg Config, store *Store, exec Executor, opts ...Option) *Teardown {
	def := DefaultConfig()
	if cfg.HomePath == "" {
		cfg.HomePath = def.HomePath
	}
	if cfg.CookieClearPath == "" {
		cfg.CookieClearPath = def.CookieClearPath
	}
	if len(cfg.CookiePaths) == 0 {
		cfg.CookiePaths = def.CookiePaths
	}
	if cfg.ServerTimeout <= 0 {
		cfg.ServerTimeout = def.ServerTimeout
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = def.WaitTimeout
	}
	if store == nil {
		store = &Store{}
	}
	t := &Teardown{
		cfg:   cfg,
		store: store,
		exec:  exec,
		log:   slog.Default(),
	}
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		t.base = u
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ForceLogout shows a notification for reason and clears the session. It
// returns once the teardown finished, or after WaitTimeout when it joined a
// run another caller started.
func (t *Teardown) ForceLogout(ctx context.Context, reason domain.LogoutReason) {
	t.Logout(ctx, reason)
}

// Logout is ForceLogout returning the run's report.
func (t *Teardown) Logout(ctx context.Context, reason domain.LogoutReason) Report {
	return t.start(ctx, reason, true)
}

// CleanUserSession clears the session. It never fails; step errors are in
// the report.
func (t *Teardown) CleanUserSession(ctx context.Context) Report {
	return t.start(ctx, "", false)
}

// start runs a teardown, or joins the one in flight. The caller that starts
// a run waits for it to finish; a joiner waits at most WaitTimeout. A
// notification is shown once per run, as soon as any caller asks for one.
func (t *Teardown) start(ctx context.Context, reason domain.LogoutReason, notify bool) Report {
	runCtx := context.WithoutCancel(ctx)

	t.mu.Lock()
	r := t.active
	owner := r == nil
	if owner {
		r = &run{done: make(chan struct{})}
		t.active = r
	}
	showNotice := notify && !r.notified
	if showNotice {
		r.notified = true
	}
	t.mu.Unlock()

	if showNotice {
		t.notify(runCtx, reason)
	}

	if owner {
		return t.own(runCtx, r, reason)
	}

	timer := time.NewTimer(t.cfg.WaitTimeout)
	defer timer.Stop()
	select {
	case <-r.done:
		report := r.report
		report.Shared = true
		return report
	case <-timer.C:
		t.log.Warn("Teardown still running, continuing without waiting", "wait", t.cfg.WaitTimeout)
		return Report{Reason: reason, Shared: true, TimedOut: true}
	}
}

func (t *Teardown) own(ctx context.Context, r *run, reason domain.LogoutReason) (report Report) {
	defer func() {
		t.mu.Lock()
		r.report = report
		t.active = nil
		t.mu.Unlock()
		close(r.done)
	}()
	return t.clean(ctx, reason)
}

func (t *Teardown) notify(ctx context.Context, reason domain.LogoutReason) {
	if t.store.Notifier == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.log.Warn("Notification failed", "panic", r)
		}
	}()
	t.store.Notifier.Notify(ctx, Notification{
		ID:      uuid.NewString(),
		Reason:  reason,
		Message: reason.Message(),
		TTL:     t.cfg.NotificationTTL,
	})
}

func (t *Teardown) clean(ctx context.Context, reason domain.LogoutReason) Report {
	runID := uuid.NewString()
	log := t.log.With("run_id", runID)
	log.Info("Clearing user session", "reason", reason)

	r := &stepRunner{log: log}
	r.run(ctx, "server_cookies", t.deleteServerCookies)
	r.run(ctx, "local_cookies", func(context.Context) error {
		return expireCookies(t.store.Cookies, t.base, t.cfg.CookieNames, t.cfg.CookiePaths)
	})
	r.run(ctx, "persistent_storage", t.removePersistentKeys)
	r.run(ctx, "transient_storage", t.clearTransient)
	for _, name := range t.cfg.Databases {
		r.run(ctx, "database:"+name, func(ctx context.Context) error {
			if t.store.Databases == nil {
				return ErrUnsupported
			}
			return t.store.Databases.DeleteDatabase(ctx, name)
		})
	}
	r.run(ctx, "redirect", t.redirectHome)

	report := Report{RunID: runID, Reason: reason, Steps: r.results}
	if failed := report.Failed(); len(failed) > 0 {
		log.Warn("Session cleared with failed steps", "failed", len(failed), "steps", len(report.Steps))
	} else {
		log.Info("Session cleared", "steps", len(report.Steps))
	}
	if t.auditor != nil {
		if err := t.auditor.RecordTeardown(ctx, report); err != nil {
			log.Warn("Failed to record teardown", "error", err)
		}
	}
	return report
}

func (t *Teardown) deleteServerCookies(ctx context.Context) error {
	if t.exec == nil {
		return fmt.Errorf("server cookie call: %w", ErrUnsupported)
	}
	_, err := t.exec.Execute(ctx, domain.AttemptContext{
		MaxAttempts: 1,
		RequestID:   domain.NewRequestID(),
		Timeout:     t.cfg.ServerTimeout,
	}, domain.RequestSpec{
		Method:             http.MethodDelete,
		URL:                t.cfg.CookieClearPath,
		IncludeCredentials: true,
		Call:               domain.CallContext{Action: "clear_cookies"},
	})
	if err != nil {
		return fmt.Errorf("server cookie call: %w", err)
	}
	return nil
}

func (t *Teardown) removePersistentKeys(ctx context.Context) error {
	if t.store.Persistent == nil {
		return fmt.Errorf("persistent storage: %w", ErrUnsupported)
	}
	if len(t.cfg.PersistentKeys) == 0 {
		return nil
	}
	return t.store.Persistent.Remove(ctx, t.cfg.PersistentKeys...)
}

func (t *Teardown) clearTransient(ctx context.Context) error {
	if t.store.Transient == nil {
		return fmt.Errorf("transient storage: %w", ErrUnsupported)
	}
	return t.store.Transient.Clear(ctx)
}

// redirectHome falls back to a reload when the redirect itself fails.
func (t *Teardown) redirectHome(ctx context.Context) error {
	if t.store.Navigator == nil {
		return fmt.Errorf("navigator: %w", ErrUnsupported)
	}
	err := guard(ctx, func(ctx context.Context) error {
		return t.store.Navigator.Redirect(ctx, t.cfg.HomePath)
	})
	if err == nil {
		return nil
	}
	t.log.Warn("Redirect failed, reloading", "error", err)
	if rerr := t.store.Navigator.Reload(ctx); rerr != nil {
		return errors.Join(err, rerr)
	}
	return nil
}
