package domain

import (
	"encoding/json"
	"net/http"
	"strings"
)

// RequestSpec describes one logical call. It is built once per call and shared
// by every attempt.
type RequestSpec struct {
	Method             string
	URL                string
	Body               []byte
	Headers            map[string]string
	IncludeCredentials bool
	Policy             *RetryPolicy // nil means the client default
	Call               CallContext
	UserMessage        string // overrides the safe message on terminal failure
}

// CallContext is the optional caller-supplied tuple used for logging and for
// the forced-logout decision.
type CallContext struct {
	Endpoint string
	UserID   string
	Action   string
}

// Response is a successful (2xx) response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Verb returns the upper-cased method, defaulting to GET.
func (s RequestSpec) Verb() string {
	if s.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(s.Method)
}

// EndpointName returns the caller supplied endpoint, or the URL path.
func (s RequestSpec) EndpointName() string {
	if s.Call.Endpoint != "" {
		return s.Call.Endpoint
	}
	u := s.URL
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
		if j := strings.Index(u, "/"); j >= 0 {
			u = u[j:]
		} else {
			u = "/"
		}
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return u
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}
