// Package errs turns every failure into the caller-facing APIError, keeps the
// error counters and decides when a failure ends the session.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the only error shape callers receive.
type APIError struct {
	StatusCode    int       `json:"statusCode"`
	StatusMessage string    `json:"statusMessage"`
	Data          ErrorData `json:"data"`

	// Code is the machine-readable cause. Not part of the JSON payload.
	Code string `json:"-"`
	// ForcedLogout reports that the session was torn down before returning.
	ForcedLogout bool `json:"-"`
}

// ErrorData is the user-visible payload.
type ErrorData struct {
	Message   string `json:"message"`
	ErrorID   string `json:"errorId"`
	Timestamp string `json:"timestamp"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s (%s)", e.StatusCode, e.StatusMessage, e.Data.Message, e.Data.ErrorID)
}

// AsAPIError unwraps err into an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

var extraStatusText = map[int]string{
	419: "Page Expired",
	440: "Login Time-out",
}

// StatusMessage returns the short phrase for status.
func StatusMessage(status int) string {
	if s := http.StatusText(status); s != "" {
		return s
	}
	if s, ok := extraStatusText[status]; ok {
		return s
	}
	return "Error"
}
