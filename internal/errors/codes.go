package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error type for assistant operations.
type ErrorCode string

const (
	// ErrCodeExtractionParseFailed indicates the completion service returned unusable JSON.
	ErrCodeExtractionParseFailed ErrorCode = "EXTRACTION_PARSE_FAILED"
	// ErrCodeValidationFailed indicates an extracted or submitted event failed validation.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrCodeAuthenticationRequired indicates no actor identity was resolved.
	ErrCodeAuthenticationRequired ErrorCode = "AUTHENTICATION_REQUIRED"
	// ErrCodeUpstreamUnavailable indicates the completion service or store failed.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the event does not exist in the actor's scope.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeInternal is the fallback for errors without a code.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// AIError represents a structured error for assistant operations.
type AIError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value any) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *AIError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// ExtractionParseFailed creates an extraction parse error.
func ExtractionParseFailed(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeExtractionParseFailed, Message: msg, Cause: cause}
}

// ValidationFailed creates a validation error.
func ValidationFailed(msg string) *AIError {
	return &AIError{Code: ErrCodeValidationFailed, Message: msg}
}

// AuthenticationRequired creates an authentication error.
func AuthenticationRequired(msg string) *AIError {
	return &AIError{Code: ErrCodeAuthenticationRequired, Message: msg}
}

// UpstreamUnavailable creates an upstream failure error.
func UpstreamUnavailable(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeUpstreamUnavailable, Message: msg, Cause: cause}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *AIError {
	return &AIError{Code: ErrCodeNotFound, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *AIError {
	return &AIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *AIError {
	return &AIError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeTimeout, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// FromUpstream classifies a failed network call. Context cancellation and
// deadline errors keep their own codes; everything else is upstream unavailable.
func FromUpstream(msg string, cause error) *AIError {
	switch {
	case stderrors.Is(cause, context.Canceled):
		return ContextCanceled(cause)
	case stderrors.Is(cause, context.DeadlineExceeded):
		return Timeout(msg, cause)
	default:
		return UpstreamUnavailable(msg, cause)
	}
}

// IsCode checks if an error, or any error it wraps, is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}

// HTTPStatus maps an error code to the HTTP status the API returns for it.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeAuthenticationRequired:
		return http.StatusUnauthorized
	case ErrCodeValidationFailed, ErrCodeInvalidArgument, ErrCodeExtractionParseFailed:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case ErrCodeContextCanceled:
		// nginx's "client closed request"
		return 499
	default:
		return http.StatusInternalServerError
	}
}
