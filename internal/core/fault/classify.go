package fault

import (
	"context"
	"errors"
	"io"
	"net"
)

// Classify reduces an arbitrary stage error to a ServiceError. Already
// classified errors pass through with the service name stamped, never
// reclassified. Unrecognized errors map to TypeUnknown and stay
// retryable.
func Classify(err error, service string) *ServiceError {
	if err == nil {
		return nil
	}

	var se *ServiceError
	if errors.As(err, &se) {
		if se.Service == "" {
			se.Service = service
		}
		return se
	}

	var he *HTTPError
	if errors.As(err, &he) {
		return classifyStatus(he, service)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &ServiceError{Type: TypeTimeout, Service: service, Retryable: true, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &ServiceError{Type: TypeTimeout, Service: service, Retryable: true, Cause: err}
		}
		return &ServiceError{Type: TypeNetwork, Service: service, Retryable: true, Cause: err}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &ServiceError{Type: TypeNetwork, Service: service, Retryable: true, Cause: err}
	}

	return &ServiceError{Type: TypeUnknown, Service: service, Retryable: true, Cause: err}
}

func classifyStatus(he *HTTPError, service string) *ServiceError {
	se := &ServiceError{
		Service:    service,
		StatusCode: he.StatusCode,
		Cause:      he,
	}

	switch he.StatusCode {
	case 429:
		se.Type = TypeRateLimit
		se.Retryable = true
		se.RetryAfter = he.RetryAfter
	case 401, 403:
		se.Type = TypeAuth
	case 400, 422:
		se.Type = TypeValidation
	case 408:
		se.Type = TypeTimeout
		se.Retryable = true
	case 502, 503, 504:
		se.Type = TypeServiceUnavailable
		se.Retryable = true
	default:
		se.Type = TypeUnknown
		se.Retryable = true
	}
	return se
}

// IsRetryable reports whether an error would survive classification as
// retryable. Nil errors are not retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err, "").Retryable
}
