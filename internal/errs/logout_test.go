package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/apiguard/internal/core/domain"
)

func failureAt(endpoint string, status int) *domain.FailureInfo {
	return &domain.FailureInfo{
		Code:     domain.CodeUnknown,
		Status:   status,
		Response: status != 0,
		Context:  domain.FailureContext{Endpoint: endpoint},
	}
}

func TestForcedLogoutClassification(t *testing.T) {
	tests := []struct {
		name     string
		failure  *domain.FailureInfo
		forced   bool
		expected domain.LogoutReason
	}{
		{"401", failureAt("/api/widgets", 401), true, domain.LogoutAuthFailed},
		{"403", failureAt("/api/widgets", 403), true, domain.LogoutAuthFailed},
		{"419", failureAt("/api/widgets", 419), true, domain.LogoutSessionExpired},
		{"440", failureAt("/api/widgets", 440), true, domain.LogoutSessionExpired},
		{"500 non-critical", failureAt("/api/widgets", 500), false, ""},
		{"500 current-user", failureAt("/api/user/current-user", 500), true, domain.LogoutServerError},
		{"no response refresh", failureAt("/api/auth/refresh", 0), true, domain.LogoutNetworkError},
		{"no response non-critical", failureAt("/api/widgets", 0), false, ""},
		{"404 login", failureAt("/api/login", 404), false, ""},
		{"503 login", failureAt("/LOGIN", 503), true, domain.LogoutServerError},
		{"422", failureAt("/api/widgets", 422), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.forced, ShouldForceLogout(tt.failure))
			if tt.forced {
				assert.Equal(t, tt.expected, LogoutReasonFor(tt.failure))
			}
		})
	}
}

func TestLogoutReasonFallback(t *testing.T) {
	assert.Equal(t, domain.LogoutSessionExpired, LogoutReasonFor(failureAt("/auth", 409)))
}
