package domain

// LogoutReason explains why a session was ended. It only selects the
// notification text; the teardown steps are the same for every reason.
type LogoutReason string

const (
	LogoutAuthFailed     LogoutReason = "auth_failed"
	LogoutSessionExpired LogoutReason = "session_expired"
	LogoutServerError    LogoutReason = "server_error"
	LogoutNetworkError   LogoutReason = "network_error"
)

// LogoutMessages maps a reason to the notification shown before redirect.
var LogoutMessages = map[LogoutReason]string{
	LogoutAuthFailed:     "Your session is no longer valid. Please sign in again.",
	LogoutSessionExpired: "Your session has expired. Please sign in again.",
	LogoutServerError:    "We could not verify your session because of a server error. Please sign in again.",
	LogoutNetworkError:   "We could not reach the server to verify your session. Please sign in again.",
}

// Message returns the notification text for r.
func (r LogoutReason) Message() string {
	if m, ok := LogoutMessages[r]; ok {
		return m
	}
	return LogoutMessages[LogoutSessionExpired]
}

// ParseLogoutReason returns the reason named s and whether it is known.
func ParseLogoutReason(s string) (LogoutReason, bool) {
	r := LogoutReason(s)
	_, ok := LogoutMessages[r]
	return r, ok
}
