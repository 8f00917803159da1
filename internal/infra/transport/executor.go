// Package transport issues single HTTP attempts and packages transport
// failures into domain.FailureInfo. It never retries.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/vietddude/apiguard/internal/core/domain"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAttempt   = "X-Retry-Attempt"

	maxErrorBody = 1 << 20
)

// Config holds Executor settings.
type Config struct {
	BaseURL   string
	UserAgent string
	// Jar holds the session cookies sent on credentialed requests.
	Jar http.CookieJar
	// Tokens supplies the bearer token for credentialed requests. Optional.
	Tokens    oauth2.TokenSource
	Transport http.RoundTripper
}

// Executor performs exactly one physical attempt per Execute call.
type Executor struct {
	baseURL    string
	userAgent  string
	tokens     oauth2.TokenSource
	anonymous  *http.Client
	credential *http.Client
}

// NewExecutor creates an Executor. Both clients share one transport; only the
// credentialed one carries the cookie jar.
func NewExecutor(cfg Config) *Executor {
	rt := cfg.Transport
	if rt == nil {
		rt = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &Executor{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		tokens:     cfg.Tokens,
		anonymous:  &http.Client{Transport: rt},
		credential: &http.Client{Transport: rt, Jar: cfg.Jar},
	}
}

// Execute issues spec once with a timeout of ac.Timeout. Non-2xx responses and
// transport errors are returned as *domain.FailureInfo.
func (e *Executor) Execute(
	ctx context.Context,
	ac domain.AttemptContext,
	spec domain.RequestSpec,
) (*domain.Response, error) {
	timeout := ac.Timeout
	if timeout <= 0 {
		timeout = domain.MinAttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if len(spec.Body) > 0 {
		body = bytes.NewReader(spec.Body)
	}

	req, err := http.NewRequestWithContext(attemptCtx, spec.Verb(), e.ResolveURL(spec.URL), body)
	if err != nil {
		return nil, e.failure(spec, ac, domain.CodeUnknown, 0, fmt.Sprintf("create request: %v", err), nil, err)
	}
	for k, v := range spec.Headers {
		req.Header.Set(k, v)
	}
	if len(spec.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set(HeaderRequestID, ac.RequestID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(ac.Attempt))

	httpClient := e.anonymous
	if spec.IncludeCredentials {
		httpClient = e.credential
		e.attachToken(req)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		code := TransportCode(attemptCtx, err)
		return nil, e.failure(spec, ac, code, 0, err.Error(), nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			code := TransportCode(attemptCtx, err)
			return nil, e.failure(spec, ac, code, 0, fmt.Sprintf("read response: %v", err), nil, err)
		}
		return &domain.Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
		}, nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	code, msg := parseErrorBody(data)
	if code == "" {
		code = domain.CodeUnknown
	}
	if msg == "" {
		msg = fmt.Sprintf("http %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	f := e.failure(spec, ac, code, resp.StatusCode, msg, data, nil)
	f.Response = true
	return nil, f
}

// ResolveURL joins relative paths onto the base URL.
func (e *Executor) ResolveURL(u string) string {
	if e.baseURL == "" || strings.Contains(u, "://") {
		return u
	}
	if !strings.HasPrefix(u, "/") {
		u = "/" + u
	}
	return e.baseURL + u
}

// BaseURL returns the configured base URL.
func (e *Executor) BaseURL() string {
	return e.baseURL
}

func (e *Executor) attachToken(req *http.Request) {
	if e.tokens == nil || req.Header.Get("Authorization") != "" {
		return
	}
	tok, err := e.tokens.Token()
	if err != nil || !tok.Valid() {
		return
	}
	tok.SetAuthHeader(req)
}

func (e *Executor) failure(
	spec domain.RequestSpec,
	ac domain.AttemptContext,
	code string,
	status int,
	msg string,
	data []byte,
	cause error,
) *domain.FailureInfo {
	return &domain.FailureInfo{
		Code:    code,
		Status:  status,
		Message: msg,
		Data:    data,
		Context: domain.FailureContext{
			Endpoint:  spec.EndpointName(),
			UserID:    spec.Call.UserID,
			Action:    spec.Call.Action,
			RequestID: ac.RequestID,
			Timestamp: time.Now().UTC(),
		},
		Err: cause,
	}
}

// parseErrorBody pulls a domain code and message out of a JSON error body.
func parseErrorBody(data []byte) (code, msg string) {
	if len(data) == 0 || !gjson.ValidBytes(data) {
		return "", ""
	}
	for _, path := range []string{"code", "error.code", "errorCode", "data.code"} {
		if r := gjson.GetBytes(data, path); r.Type == gjson.String && r.Str != "" {
			code = r.Str
			break
		}
	}
	for _, path := range []string{"message", "error.message", "statusMessage", "data.message", "error"} {
		if r := gjson.GetBytes(data, path); r.Type == gjson.String && r.Str != "" {
			msg = r.Str
			break
		}
	}
	return code, msg
}

// IsFailure unwraps err into a FailureInfo.
func IsFailure(err error) (*domain.FailureInfo, bool) {
	var f *domain.FailureInfo
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
