package transport

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/vietddude/apiguard/internal/core/domain"
)

// TransportCode maps a Go transport error onto the failure code vocabulary.
// An expired attempt context is reported as ECONNABORTED, the code a client
// timeout produces.
func TransportCode(attemptCtx context.Context, err error) string {
	if err == nil {
		return domain.CodeUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return domain.CodeConnAborted
	}
	if errors.Is(err, context.Canceled) {
		return domain.CodeConnAborted
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return domain.CodeTimedOut
		}
		return domain.CodeNotFound
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return domain.CodeConnRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return domain.CodeConnReset
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.CodeTimedOut
	}
	return domain.CodeNetwork
}
