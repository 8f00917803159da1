package errs

import (
	"strings"

	"github.com/vietddude/apiguard/internal/core/domain"
)

// CriticalEndpoints are the endpoint substrings whose unreachability means the
// session cannot be confirmed.
var CriticalEndpoints = []string{"current-user", "auth", "login", "refresh"}

// IsCriticalEndpoint reports whether endpoint names an identity-critical route.
func IsCriticalEndpoint(endpoint string) bool {
	endpoint = strings.ToLower(endpoint)
	for _, s := range CriticalEndpoints {
		if strings.Contains(endpoint, s) {
			return true
		}
	}
	return false
}

// ShouldForceLogout decides whether f ends the session.
func ShouldForceLogout(f *domain.FailureInfo) bool {
	switch f.Status {
	case 401, 403, 419, 440:
		return true
	}
	if !IsCriticalEndpoint(f.Context.Endpoint) {
		return false
	}
	return f.Status >= 500 || f.NoResponse()
}

// LogoutReasonFor maps a session-ending failure to its reason.
func LogoutReasonFor(f *domain.FailureInfo) domain.LogoutReason {
	switch {
	case f.Status == 401, f.Status == 403:
		return domain.LogoutAuthFailed
	case f.Status == 419, f.Status == 440:
		return domain.LogoutSessionExpired
	case f.Status >= 500:
		return domain.LogoutServerError
	case f.NoResponse():
		return domain.LogoutNetworkError
	default:
		return domain.LogoutSessionExpired
	}
}
