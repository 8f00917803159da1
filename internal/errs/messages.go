package errs

import "github.com/vietddude/apiguard/internal/core/domain"

// DefaultMessage is used when neither code nor status has an entry.
const DefaultMessage = "unexpected error"

// Messages maps codes and statuses to user-safe text.
type Messages struct {
	Codes    map[string]string
	Statuses map[int]string
	Fallback string
}

// DefaultMessages returns the default table.
func DefaultMessages() Messages {
	return Messages{
		Codes: map[string]string{
			domain.CodeNetworkError:    "network connectivity problem",
			domain.CodeTimeout:         "request took too long",
			domain.CodeAuthError:       "authentication error",
			domain.CodeValidationError: "invalid data",
		},
		Statuses: map[int]string{
			400: "invalid request",
			401: "authentication required",
			403: "access denied",
			404: "resource not found",
			500: "internal server error",
			502: "service temporarily unavailable",
			503: "service temporarily unavailable",
			504: "service temporarily unavailable",
		},
		Fallback: DefaultMessage,
	}
}

// transport codes folded onto table codes
var codeAliases = map[string]string{
	domain.CodeConnAborted: domain.CodeTimeout,
	domain.CodeTimedOut:    domain.CodeTimeout,
	domain.CodeNotFound:    domain.CodeNetworkError,
	domain.CodeConnRefused: domain.CodeNetworkError,
	domain.CodeConnReset:   domain.CodeNetworkError,
	domain.CodeNetwork:     domain.CodeNetworkError,
}

// Lookup returns the safe message for f. Codes win over statuses.
func (m Messages) Lookup(f *domain.FailureInfo) string {
	code := f.Code
	if alias, ok := codeAliases[code]; ok {
		code = alias
	}
	if msg, ok := m.Codes[code]; ok {
		return msg
	}
	if msg, ok := m.Statuses[f.StatusOr(domain.NoStatusFallback)]; ok {
		return msg
	}
	if m.Fallback != "" {
		return m.Fallback
	}
	return DefaultMessage
}

// SafeMessage looks f up in the default table.
func SafeMessage(f *domain.FailureInfo) string {
	return DefaultMessages().Lookup(f)
}
