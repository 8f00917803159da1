// Package admin serves health, metrics and error-counter endpoints.
package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/errs"
	"github.com/vietddude/apiguard/internal/infra/storage/postgres"
	"github.com/vietddude/apiguard/internal/session"
)

// Status values reported by /health.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Check probes one backing service.
type Check func(ctx context.Context) error

// SessionManager runs teardowns on demand.
type SessionManager interface {
	CleanUserSession(ctx context.Context) session.Report
	ForceLogout(ctx context.Context, reason domain.LogoutReason)
}

// TeardownHistory lists recorded teardown runs.
type TeardownHistory interface {
	Recent(ctx context.Context, limit int) ([]postgres.TeardownRecord, error)
}

// Server provides the HTTP admin surface.
type Server struct {
	counters *errs.Counters
	checks   map[string]Check
	sessions SessionManager
	history  TeardownHistory
	server   *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithCheck adds a named health check.
func WithCheck(name string, c Check) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithSessions enables POST /admin/session/teardown.
func WithSessions(m SessionManager) Option { return func(s *Server) { s.sessions = m } }

// WithHistory enables GET /debug/teardowns.
func WithHistory(h TeardownHistory) Option { return func(s *Server) { s.history = h } }

// NewServer creates a new admin server.
func NewServer(counters *errs.Counters, port int, opts ...Option) *Server {
	mux := http.NewServeMux()
	s := &Server{
		counters: counters,
		checks:   make(map[string]Check),
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/detailed", s.handleDetailed)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /debug/errors", s.handleErrors)
	mux.HandleFunc("POST /admin/errors/reset", s.handleReset)
	mux.HandleFunc("GET /debug/teardowns", s.handleTeardowns)
	mux.HandleFunc("POST /admin/session/teardown", s.handleTeardown)

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) runChecks(ctx context.Context) map[string]string {
	var mu sync.Mutex
	report := make(map[string]string, len(s.checks))

	// Checks run in parallel; a failing check never cancels the others.
	var g errgroup.Group
	g.SetLimit(4)
	for name, check := range s.checks {
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			report[name] = status
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func aggregate(report map[string]string) string {
	for _, v := range report {
		if v != "ok" {
			return StatusDegraded
		}
	}
	return StatusHealthy
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := aggregate(s.runChecks(r.Context()))
	code := http.StatusOK
	if status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": status})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	report := s.runChecks(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status": aggregate(report),
		"checks": report,
	})
}

type counterView struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

func (s *Server) handleErrors(w http.ResponseWriter, _ *http.Request) {
	snap := s.counters.Snapshot()
	views := make([]counterView, 0, len(snap))
	for k, v := range snap {
		views = append(views, counterView{Key: k, Count: v})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].Count != views[j].Count {
			return views[i].Count > views[j].Count
		}
		return views[i].Key < views[j].Key
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold": s.counters.Threshold(),
		"window":    s.counters.Window().String(),
		"counters":  views,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.counters.Reset()
	slog.Info("Error counters reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTeardowns(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "teardown history not configured", http.StatusNotFound)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	out, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleTeardown clears the session; with ?reason= it runs a forced logout.
func (s *Server) handleTeardown(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		http.Error(w, "session teardown not configured", http.StatusNotFound)
		return
	}
	raw := r.URL.Query().Get("reason")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.sessions.CleanUserSession(r.Context()))
		return
	}
	reason, ok := domain.ParseLogoutReason(raw)
	if !ok {
		http.Error(w, "unknown reason "+strconv.Quote(raw), http.StatusBadRequest)
		return
	}
	s.sessions.ForceLogout(r.Context(), reason)
	writeJSON(w, http.StatusAccepted, map[string]string{"reason": string(reason)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
