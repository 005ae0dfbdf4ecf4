package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport means the connection could not be established, or kept
	// failing, within the retry budget.
	ErrTransport = errors.New("transport error")
	// ErrDecode means the body could not be decoded: a malformed compressed
	// stream, an unsupported encoding, or output beyond the buffer bound.
	ErrDecode = errors.New("decode error")

	errCircuitOpen  = errors.New("circuit breaker open")
	errNoHTTPClient = errors.New("http client not configured")
	errBodyTooLarge = errors.New("body exceeds buffer bound")
)

// HTTPError is returned when the server answered with a status other than 200.
type HTTPError struct {
	Endpoint string
	Code     int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: unexpected status code %d", e.Endpoint, e.Code)
}

// Class names the error category for logs and metrics.
func Class(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &httpErr):
		return "http"
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "other"
	}
}
