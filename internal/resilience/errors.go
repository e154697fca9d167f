package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
)

// ErrRateLimited marks a response in which the remote side refused service
// because of request volume. A rate-limited channel is disabled for the rest
// of the run instead of being retried.
var ErrRateLimited = eris.New("rate limited")

// TransientError wraps an error that is safe to retry (e.g., 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// ParseError wraps a malformed payload from an external source. Parse errors
// are never retried; callers log them and continue with an empty result.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return e.Source + ": parse: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError wraps err as a parse failure from source.
func NewParseError(source string, err error) *ParseError {
	return &ParseError{Source: source, Err: err}
}

// IsParse reports whether err is (or wraps) a ParseError.
func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// IsRateLimited reports whether err is (or wraps) ErrRateLimited.
func IsRateLimited(err error) bool {
	return err != nil && errors.Is(err, ErrRateLimited)
}

// RateLimitedf returns an error wrapping ErrRateLimited with context.
func RateLimitedf(format string, args ...any) error {
	return eris.Wrapf(ErrRateLimited, format, args...)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError, or if it matches common transient error patterns (network
// timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry. 429 is deliberately
// absent: it is reported as ErrRateLimited.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
