package vexora

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the closed taxonomy of failure modes a request can end in.
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindForbidden           ErrorKind = "forbidden"
	KindNotFound            ErrorKind = "notFound"
	KindRateLimited         ErrorKind = "rateLimited"
	KindAdapterUnavailable  ErrorKind = "adapterUnavailable"
	KindAdapterTimeout      ErrorKind = "adapterTimeout"
	KindAdapterError        ErrorKind = "adapterError"
	KindPipelineDegraded    ErrorKind = "pipelineDegraded"
	KindCancelled           ErrorKind = "cancelled"
	KindInternal            ErrorKind = "internal"
)

// HTTPStatus maps an ErrorKind onto the HTTP status the transport layer
// should respond with.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindAdapterUnavailable:
		return http.StatusBadGateway
	case KindAdapterTimeout:
		return http.StatusGatewayTimeout
	case KindCancelled:
		return 499 // client closed request, nginx convention
	case KindPipelineDegraded:
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// CoreError is the structured error type returned by every component.
// It wraps an underlying cause while attaching the taxonomy kind needed
// to pick an HTTP status and a user-visible code.
type CoreError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// NewError builds a CoreError, optionally wrapping a cause.
func NewError(kind ErrorKind, message string, cause error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Cause: cause}
}

// AsCoreError extracts a *CoreError from err, wrapping unknown errors as
// internal errors so callers always get a taxonomy kind to act on.
func AsCoreError(err error) *CoreError {
	if err == nil {
		return nil
	}
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	return &CoreError{Kind: KindInternal, Message: "uncaught error", Cause: err}
}

// Sentinel errors for conditions checked by equality across packages.
var (
	// ErrNoAccessibleDocuments is returned by the retrieval engine's
	// permission-resolution step when the caller cannot see any document.
	ErrNoAccessibleDocuments = errors.New("vexora: no accessible documents")

	// ErrLowConfidence flags an answer whose groundedness fell below the
	// configured threshold.
	ErrLowConfidence = errors.New("vexora: answer confidence below threshold")

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("vexora: invalid configuration")

	// ErrTraceNotSampled marks a trace that sampling decided to skip;
	// all subsequent span calls on it are no-ops.
	ErrTraceNotSampled = errors.New("vexora: trace not sampled")
)
