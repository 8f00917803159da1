package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/vietddude/apiguard/internal/core/domain"
)

func attempt(i int) domain.AttemptContext {
	return domain.AttemptContext{
		Attempt:     i,
		MaxAttempts: 6,
		RequestID:   "req_1700000000000_abcdefghi",
		Timeout:     2 * time.Second,
	}
}

func TestExecutor_AttachesTracingHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(HeaderRequestID); got != "req_1700000000000_abcdefghi" {
			t.Errorf("expected request id header, got %q", got)
		}
		if got := r.Header.Get(HeaderAttempt); got != "3" {
			t.Errorf("expected attempt header 3, got %q", got)
		}
		if r.URL.Path != "/api/widgets" {
			t.Errorf("expected path /api/widgets, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	e := NewExecutor(Config{BaseURL: server.URL})
	resp, err := e.Execute(context.Background(), attempt(3), domain.RequestSpec{URL: "/api/widgets"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(resp.Body) != `{"items":[]}` {
		t.Errorf("unexpected body %s", resp.Body)
	}
}

func TestExecutor_StatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"VALIDATION_ERROR","message":"name is required"}}`))
	}))
	defer server.Close()

	e := NewExecutor(Config{BaseURL: server.URL})
	_, err := e.Execute(context.Background(), attempt(0), domain.RequestSpec{
		Method: "post",
		URL:    "/api/widgets",
		Body:   []byte(`{}`),
		Call:   domain.CallContext{UserID: "u-1", Action: "create"},
	})

	f, ok := IsFailure(err)
	if !ok {
		t.Fatalf("expected FailureInfo, got %v", err)
	}
	if f.Status != 422 || !f.Response {
		t.Errorf("expected status 422 with response, got %d (response=%v)", f.Status, f.Response)
	}
	if f.Code != domain.CodeValidationError {
		t.Errorf("expected VALIDATION_ERROR, got %s", f.Code)
	}
	if f.Message != "name is required" {
		t.Errorf("unexpected message %q", f.Message)
	}
	if f.Context.Endpoint != "/api/widgets" || f.Context.UserID != "u-1" || f.Context.Action != "create" {
		t.Errorf("unexpected context %+v", f.Context)
	}
}

func TestExecutor_PlainStatusFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	e := NewExecutor(Config{BaseURL: server.URL})
	_, err := e.Execute(context.Background(), attempt(0), domain.RequestSpec{URL: "/x"})
	f, ok := IsFailure(err)
	if !ok {
		t.Fatalf("expected FailureInfo, got %v", err)
	}
	if f.Code != domain.CodeUnknown || f.Status != 503 {
		t.Errorf("expected UNKNOWN/503, got %s/%d", f.Code, f.Status)
	}
}

func TestExecutor_AttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	e := NewExecutor(Config{BaseURL: server.URL})
	ac := attempt(0)
	ac.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := e.Execute(context.Background(), ac, domain.RequestSpec{URL: "/slow"})
	if time.Since(start) > time.Second {
		t.Errorf("attempt ignored its timeout")
	}
	f, ok := IsFailure(err)
	if !ok {
		t.Fatalf("expected FailureInfo, got %v", err)
	}
	if f.Code != domain.CodeConnAborted || !f.NoResponse() {
		t.Errorf("expected ECONNABORTED without response, got %s (response=%v)", f.Code, f.Response)
	}
}

func TestExecutor_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	e := NewExecutor(Config{BaseURL: url})
	_, err := e.Execute(context.Background(), attempt(0), domain.RequestSpec{URL: "/gone"})
	f, ok := IsFailure(err)
	if !ok {
		t.Fatalf("expected FailureInfo, got %v", err)
	}
	if !f.NoResponse() || f.Status != 0 {
		t.Errorf("expected no response, got status %d", f.Status)
	}
}

func TestExecutor_Credentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
		case "/me":
			_, err := r.Cookie("session")
			auth := r.Header.Get("Authorization")
			if r.URL.Query().Get("anon") == "1" {
				if err == nil || auth != "" {
					t.Errorf("anonymous request carried credentials")
				}
				return
			}
			if err != nil {
				t.Errorf("expected session cookie")
			}
			if auth != "Bearer tok-1" {
				t.Errorf("expected bearer token, got %q", auth)
			}
		}
	}))
	defer server.Close()

	jar, _ := cookiejar.New(nil)
	e := NewExecutor(Config{
		BaseURL: server.URL,
		Jar:     jar,
		Tokens: oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: "tok-1",
			TokenType:   "Bearer",
		}),
	})

	ctx := context.Background()
	if _, err := e.Execute(ctx, attempt(0), domain.RequestSpec{URL: "/login", IncludeCredentials: true}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := e.Execute(ctx, attempt(0), domain.RequestSpec{URL: "/me", IncludeCredentials: true}); err != nil {
		t.Fatalf("me: %v", err)
	}
	if _, err := e.Execute(ctx, attempt(0), domain.RequestSpec{URL: "/me?anon=1"}); err != nil {
		t.Fatalf("anon: %v", err)
	}
}

func TestTransportCode(t *testing.T) {
	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	tests := []struct {
		name string
		ctx  context.Context
		err  error
		want string
	}{
		{"deadline", context.Background(), context.DeadlineExceeded, domain.CodeConnAborted},
		{"expired attempt", expired, errors.New("read: i/o"), domain.CodeConnAborted},
		{"dns", context.Background(), &net.DNSError{Err: "no such host", Name: "api.invalid", IsNotFound: true}, domain.CodeNotFound},
		{"other", context.Background(), errors.New("boom"), domain.CodeNetwork},
	}
	for _, tt := range tests {
		if got := TransportCode(tt.ctx, tt.err); got != tt.want {
			t.Errorf("%s: TransportCode() = %s, want %s", tt.name, got, tt.want)
		}
	}
}
