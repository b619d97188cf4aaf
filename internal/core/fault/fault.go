package fault

import (
	"fmt"
	"time"
)

// ErrorType categorizes a dependency failure.
type ErrorType string

const (
	TypeNetwork            ErrorType = "NETWORK"
	TypeRateLimit          ErrorType = "RATE_LIMIT"
	TypeAuth               ErrorType = "AUTH"
	TypeValidation         ErrorType = "VALIDATION"
	TypeServiceUnavailable ErrorType = "SERVICE_UNAVAILABLE"
	TypeTimeout            ErrorType = "TIMEOUT"
	TypeUnknown            ErrorType = "UNKNOWN"
)

// ServiceError is the classified form of a dependency failure. Every
// error that crosses a stage boundary is reduced to this type before
// any retry decision is made.
type ServiceError struct {
	Type       ErrorType
	Service    string
	StatusCode int
	Retryable  bool
	// RetryAfter holds a server-requested delay (429 Retry-After),
	// zero when the server did not send one.
	RetryAfter time.Duration
	Cause      error
}

func (e *ServiceError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Service, e.Type)
	if e.StatusCode != 0 {
		s = fmt.Sprintf("%s (http %d)", s, e.StatusCode)
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// HTTPError carries an HTTP status out of a stage body so that
// classification can map it without string matching. RetryAfter is the
// parsed Retry-After header, zero when absent.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}
