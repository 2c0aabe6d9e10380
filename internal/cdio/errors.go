package cdio

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Sentinel errors for the transport-failure taxonomy. Wrapped errors carry
// the underlying detail; match with [errors.Is].
var (
	// ErrTimeout indicates the overall request or connection deadline expired.
	ErrTimeout = errors.New("cdio: request timed out")

	// ErrConnectionRefused indicates the upstream instance is not accepting
	// connections.
	ErrConnectionRefused = errors.New("cdio: connection refused")
)

// StatusError is returned for non-2xx upstream responses. The response body
// is retained so callers can surface upstream detail in debug mode.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cdio: HTTP %d: %s", e.Code, e.Body)
}

// Auth reports whether the upstream rejected the request's credentials.
func (e *StatusError) Auth() bool {
	return e.Code == 401 || e.Code == 403
}

// classifyTransportErr maps a transport-level error from the HTTP client into
// the package taxonomy, preserving the original error in the wrap chain.
func classifyTransportErr(err error, baseURL string, timeoutSeconds float64) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: cannot connect to %s", ErrConnectionRefused, baseURL)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w after %.0fs", ErrTimeout, timeoutSeconds)
	}
	return fmt.Errorf("cdio: request failed: %w", err)
}

// errorKind returns the metrics label for err: "timeout",
// "connection_refused", "http_status", or "unknown".
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionRefused):
		return "connection_refused"
	default:
		var se *StatusError
		if errors.As(err, &se) {
			return "http_status"
		}
		return "unknown"
	}
}
