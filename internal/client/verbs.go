package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/vietddude/apiguard/internal/core/domain"
)

// RequestOption adjusts a single call.
type RequestOption func(*domain.RequestSpec)

// WithHeader sets one request header.
func WithHeader(key, value string) RequestOption {
	return func(s *domain.RequestSpec) {
		if s.Headers == nil {
			s.Headers = make(map[string]string)
		}
		s.Headers[key] = value
	}
}

// WithIncludeCredentials overrides the client's credential default.
func WithIncludeCredentials(include bool) RequestOption {
	return func(s *domain.RequestSpec) { s.IncludeCredentials = include }
}

// WithRetryPolicy overrides the retry policy for one call.
func WithRetryPolicy(p domain.RetryPolicy) RequestOption {
	return func(s *domain.RequestSpec) { s.Policy = &p }
}

// WithCallContext attaches endpoint, user and action for logs and the
// forced-logout decision.
func WithCallContext(call domain.CallContext) RequestOption {
	return func(s *domain.RequestSpec) { s.Call = call }
}

// WithUserMessage replaces the safe message if the call fails.
func WithUserMessage(msg string) RequestOption {
	return func(s *domain.RequestSpec) { s.UserMessage = msg }
}

func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*domain.Response, error) {
	return c.send(ctx, http.MethodGet, url, nil, opts)
}

func (c *Client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*domain.Response, error) {
	return c.send(ctx, http.MethodPost, url, body, opts)
}

func (c *Client) Put(ctx context.Context, url string, body any, opts ...RequestOption) (*domain.Response, error) {
	return c.send(ctx, http.MethodPut, url, body, opts)
}

func (c *Client) Patch(ctx context.Context, url string, body any, opts ...RequestOption) (*domain.Response, error) {
	return c.send(ctx, http.MethodPatch, url, body, opts)
}

func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*domain.Response, error) {
	return c.send(ctx, http.MethodDelete, url, nil, opts)
}

func (c *Client) send(
	ctx context.Context,
	method, url string,
	body any,
	opts []RequestOption,
) (*domain.Response, error) {
	spec := domain.RequestSpec{
		Method:             method,
		URL:                url,
		IncludeCredentials: c.credentials,
	}
	for _, opt := range opts {
		opt(&spec)
	}

	data, err := encodeBody(body)
	if err != nil {
		call := spec.Call
		if call.Endpoint == "" {
			call.Endpoint = spec.EndpointName()
		}
		return nil, c.failures.Handle(ctx, err, call)
	}
	spec.Body = data
	return c.Do(ctx, spec)
}

// GetJSON issues a GET and decodes the JSON response into T.
func GetJSON[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) (T, error) {
	var out T
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		spec := domain.RequestSpec{Method: http.MethodGet, URL: url}
		for _, opt := range opts {
			opt(&spec)
		}
		if spec.Call.Endpoint == "" {
			spec.Call.Endpoint = spec.EndpointName()
		}
		return out, c.failures.Handle(ctx, fmt.Errorf("decode response: %w", err), spec.Call)
	}
	return out, nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	case json.RawMessage:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		return data, nil
	}
}
