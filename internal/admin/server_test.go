package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/errs"
	"github.com/vietddude/apiguard/internal/infra/storage/postgres"
	"github.com/vietddude/apiguard/internal/session"
)

type stubSessions struct {
	cleaned int
	reasons []domain.LogoutReason
}

func (s *stubSessions) CleanUserSession(context.Context) session.Report {
	s.cleaned++
	return session.Report{RunID: "run-1", Steps: []session.StepResult{{Step: "redirect"}}}
}

func (s *stubSessions) ForceLogout(_ context.Context, reason domain.LogoutReason) {
	s.reasons = append(s.reasons, reason)
}

type stubHistory struct{ limit int }

func (h *stubHistory) Recent(_ context.Context, limit int) ([]postgres.TeardownRecord, error) {
	h.limit = limit
	return []postgres.TeardownRecord{{RunID: "run-1", Reason: "auth_failed"}}, nil
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	counters := errs.NewCounters(10, time.Minute)

	healthy := NewServer(counters, 0, WithCheck("redis", func(context.Context) error { return nil }))
	if rec := do(t, healthy.Handler(), http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rec.Code)
	}

	degraded := NewServer(counters, 0,
		WithCheck("redis", func(context.Context) error { return nil }),
		WithCheck("database", func(context.Context) error { return errors.New("connection refused") }),
	)
	rec := do(t, degraded.Handler(), http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("degraded status = %d", rec.Code)
	}

	rec = do(t, degraded.Handler(), http.MethodGet, "/health/detailed")
	var detail struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatal(err)
	}
	if detail.Status != StatusDegraded || detail.Checks["database"] != "connection refused" || detail.Checks["redis"] != "ok" {
		t.Errorf("detail = %+v", detail)
	}
}

func TestErrorCounters(t *testing.T) {
	counters := errs.NewCounters(10, time.Minute)
	counters.Increment("UNKNOWN:500")
	counters.Increment("UNKNOWN:500")
	counters.Increment("ECONNREFUSED:502")
	s := NewServer(counters, 0)

	rec := do(t, s.Handler(), http.MethodGet, "/debug/errors")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Threshold int64  `json:"threshold"`
		Window    string `json:"window"`
		Counters  []struct {
			Key   string `json:"key"`
			Count int64  `json:"count"`
		} `json:"counters"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Threshold != 10 || body.Window != "1m0s" || len(body.Counters) != 2 {
		t.Fatalf("body = %+v", body)
	}
	if body.Counters[0].Key != "UNKNOWN:500" || body.Counters[0].Count != 2 {
		t.Errorf("first counter = %+v", body.Counters[0])
	}

	if rec := do(t, s.Handler(), http.MethodGet, "/admin/errors/reset"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET reset status = %d, want 405", rec.Code)
	}
	if rec := do(t, s.Handler(), http.MethodPost, "/admin/errors/reset"); rec.Code != http.StatusNoContent {
		t.Errorf("reset status = %d", rec.Code)
	}
	if got := len(counters.Snapshot()); got != 0 {
		t.Errorf("counters after reset = %d", got)
	}
}

func TestSessionTeardown(t *testing.T) {
	counters := errs.NewCounters(10, time.Minute)

	if rec := do(t, NewServer(counters, 0).Handler(), http.MethodPost, "/admin/session/teardown"); rec.Code != http.StatusNotFound {
		t.Errorf("unconfigured status = %d", rec.Code)
	}

	sessions := &stubSessions{}
	s := NewServer(counters, 0, WithSessions(sessions))

	rec := do(t, s.Handler(), http.MethodPost, "/admin/session/teardown")
	if rec.Code != http.StatusOK || sessions.cleaned != 1 {
		t.Errorf("clean status = %d, cleaned = %d", rec.Code, sessions.cleaned)
	}

	rec = do(t, s.Handler(), http.MethodPost, "/admin/session/teardown?reason=session_expired")
	if rec.Code != http.StatusAccepted || len(sessions.reasons) != 1 || sessions.reasons[0] != domain.LogoutSessionExpired {
		t.Errorf("force status = %d, reasons = %v", rec.Code, sessions.reasons)
	}

	if rec := do(t, s.Handler(), http.MethodPost, "/admin/session/teardown?reason=bored"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad reason status = %d", rec.Code)
	}
}

func TestTeardownHistory(t *testing.T) {
	counters := errs.NewCounters(10, time.Minute)
	history := &stubHistory{}
	s := NewServer(counters, 0, WithHistory(history))

	rec := do(t, s.Handler(), http.MethodGet, "/debug/teardowns?limit=5")
	if rec.Code != http.StatusOK || history.limit != 5 {
		t.Errorf("status = %d, limit = %d", rec.Code, history.limit)
	}
	if rec := do(t, s.Handler(), http.MethodGet, "/debug/teardowns?limit=x"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d", rec.Code)
	}
}
