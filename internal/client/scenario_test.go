package client

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/apiguard/internal/core/domain"
	"github.com/vietddude/apiguard/internal/errs"
	"github.com/vietddude/apiguard/internal/infra/transport"
	"github.com/vietddude/apiguard/internal/session"
)

type stack struct {
	client   *Client
	store    *session.Store
	nav      *session.LocationNavigator
	teardown *session.Teardown
	logs     *bytes.Buffer
}

func newStack(t *testing.T, baseURL string, exec Executor, opts ...Option) *stack {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	store := session.NewMemoryStore("identity_cache", "session_cache")
	nav := session.NewLocationNavigator("/dashboard", nil)
	store.Navigator = nav

	cfg := session.DefaultConfig()
	cfg.BaseURL = baseURL
	td := session.NewTeardown(cfg, store, transport.NewExecutor(transport.Config{BaseURL: baseURL, Jar: store.Cookies}), session.WithLogger(logger))

	normalizer := errs.NewNormalizer(errs.NewCounters(10, time.Minute), td, errs.WithLogger(logger))
	if exec == nil {
		exec = transport.NewExecutor(transport.Config{BaseURL: baseURL, Jar: store.Cookies})
	}
	opts = append([]Option{WithLogger(logger)}, opts...)
	return &stack{
		client:   New(exec, normalizer, opts...),
		store:    store,
		nav:      nav,
		teardown: td,
		logs:     logs,
	}
}

func TestScenario_WidgetsNetworkFailureSurfacesBadGateway(t *testing.T) {
	clock := newFakeClock()
	exec := &scriptedExecutor{fn: func(_ context.Context, ac domain.AttemptContext, _ domain.RequestSpec) (*domain.Response, error) {
		if ac.Attempt < 5 {
			return nil, &domain.FailureInfo{Code: domain.CodeConnRefused, Message: "connection refused"}
		}
		clock.Advance(8 * time.Second)
		return nil, &domain.FailureInfo{Code: domain.CodeConnAborted, Message: "timeout of 1666ms exceeded"}
	}}

	s := newStack(t, "http://api.example.test", exec, WithClock(clock.Now, clock.Sleep))
	policy := domain.DefaultRetryPolicy()
	policy.BaseDelay = 100 * time.Millisecond

	_, err := s.client.Get(context.Background(), "/api/widgets", WithRetryPolicy(policy))

	apiErr, ok := errs.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.Equal(t, "Bad Gateway", apiErr.StatusMessage)
	assert.Equal(t, "request took too long", apiErr.Data.Message)
	assert.True(t, domain.IsRequestID(apiErr.Data.ErrorID))
	assert.False(t, apiErr.ForcedLogout)
	assert.Len(t, exec.attempts, 6)

	redirects, _ := s.nav.Counts()
	assert.Zero(t, redirects, "teardown must not run for a non-critical endpoint")
	assert.Equal(t, "/dashboard", s.nav.Location())
}

func TestScenario_CurrentUserUnauthorizedForcesLogout(t *testing.T) {
	var userCalls, cookieDeletes atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/user/current-user":
			userCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"jwt expired"}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/auth/cookies":
			cookieDeletes.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	s := newStack(t, server.URL, nil)
	ctx := context.Background()
	u, _ := url.Parse(server.URL)
	s.store.Cookies.SetCookies(u, []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	require.NoError(t, s.store.Persistent.Set(ctx, "auth_token", "t"))

	_, err := s.client.Get(ctx, "/api/user/current-user")

	apiErr, ok := errs.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "authentication required", apiErr.Data.Message)
	assert.NotContains(t, apiErr.Data.Message, "jwt")
	assert.True(t, apiErr.ForcedLogout)

	assert.Equal(t, int32(1), userCalls.Load(), "401 must not be retried")
	assert.Equal(t, int32(1), cookieDeletes.Load())
	assert.Empty(t, s.store.Cookies.Cookies(u))
	_, found, _ := s.store.Persistent.Get(ctx, "auth_token")
	assert.False(t, found)
	assert.Equal(t, "/", s.nav.Location())
	assert.Contains(t, s.logs.String(), `"reason":"auth_failed"`)
}

func TestScenario_RefreshUnreachableForcesNetworkLogout(t *testing.T) {
	clock := newFakeClock()
	exec := &scriptedExecutor{fn: func(context.Context, domain.AttemptContext, domain.RequestSpec) (*domain.Response, error) {
		return nil, &domain.FailureInfo{Code: domain.CodeNetwork, Message: "network down"}
	}}
	s := newStack(t, "http://127.0.0.1:1", exec, WithClock(clock.Now, clock.Sleep))

	_, err := s.client.Post(context.Background(), "/api/auth/refresh", nil)

	apiErr, ok := errs.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.Equal(t, "network connectivity problem", apiErr.Data.Message)
	assert.True(t, apiErr.ForcedLogout)
	assert.Equal(t, "/", s.nav.Location())
	assert.Contains(t, s.logs.String(), `"reason":"network_error"`)
}

func TestScenario_CurrentUserMalformedBodyKeepsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/user/current-user" {
			_, _ = w.Write([]byte("not json"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	s := newStack(t, server.URL, nil)
	ctx := context.Background()
	require.NoError(t, s.store.Persistent.Set(ctx, "auth_token", "t"))

	_, err := GetJSON[map[string]any](ctx, s.client, "/api/user/current-user",
		WithCallContext(domain.CallContext{Endpoint: "/api/user/current-user", Action: "load_profile"}))

	apiErr, ok := errs.AsAPIError(err)
	require.True(t, ok, "expected APIError, got %v", err)
	assert.Equal(t, 502, apiErr.StatusCode)
	assert.False(t, apiErr.ForcedLogout)
	assert.Equal(t, "/dashboard", s.nav.Location())
	_, found, _ := s.store.Persistent.Get(ctx, "auth_token")
	assert.True(t, found)
	assert.Contains(t, s.logs.String(), `"endpoint":"/api/user/current-user"`)
}
