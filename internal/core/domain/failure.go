package domain

import (
	"errors"
	"fmt"
	"time"
)

// Transport and domain failure codes.
const (
	CodeConnAborted     = "ECONNABORTED"
	CodeTimedOut        = "ETIMEDOUT"
	CodeNotFound        = "ENOTFOUND"
	CodeConnRefused     = "ECONNREFUSED"
	CodeConnReset       = "ECONNRESET"
	CodeNetwork         = "ERR_NETWORK"
	CodeUnknown         = "UNKNOWN"
	CodeNetworkError    = "NETWORK_ERROR"
	CodeTimeout         = "TIMEOUT"
	CodeAuthError       = "AUTH_ERROR"
	CodeValidationError = "VALIDATION_ERROR"
)

// NoStatusFallback is reported to callers when a failure carries no status.
const NoStatusFallback = 502

var ErrAttemptsExhausted = errors.New("all attempts exhausted")

// FailureInfo is the single failure shape shared by the retry loop and the
// normalizer. Status is 0 when no response was received.
type FailureInfo struct {
	Code     string
	Status   int
	Message  string
	Data     []byte
	Response bool // a response was received
	Local    bool // raised by client code after or instead of a call
	Context  FailureContext

	Err error
}

// FailureContext identifies where a failure happened.
type FailureContext struct {
	Endpoint  string    `json:"endpoint,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Action    string    `json:"action,omitempty"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

func (f *FailureInfo) Error() string {
	if f.Response {
		return fmt.Sprintf("%s (status %d): %s", f.Code, f.Status, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Message)
}

func (f *FailureInfo) Unwrap() error { return f.Err }

// NoResponse reports a pure network failure.
func (f *FailureInfo) NoResponse() bool { return !f.Response && !f.Local }

// StatusOr returns Status, or fallback when there is none.
func (f *FailureInfo) StatusOr(fallback int) int {
	if f.Status == 0 {
		return fallback
	}
	return f.Status
}

// CounterKey is the "<code>:<status>" key used by the error counters.
func (f *FailureInfo) CounterKey() string {
	return fmt.Sprintf("%s:%d", f.Code, f.StatusOr(NoStatusFallback))
}

// NewFailure builds a failure raised by business logic rather than transport.
func NewFailure(code string, status int, message string) *FailureInfo {
	return &FailureInfo{
		Code:     code,
		Status:   status,
		Message:  message,
		Response: status != 0,
		Local:    true,
		Context:  FailureContext{Timestamp: time.Now().UTC()},
	}
}
