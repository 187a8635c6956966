package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Components construct AppErrors from these instead of
// ad-hoc strings so callers can branch on failure class.
const (
	// Configuration
	ErrCodeConfigInvalid ErrorCode = "config_invalid"

	// Upstream fetches
	ErrCodeUpstreamAuth        ErrorCode = "upstream_auth_failed"  // 401-equivalent, never retried
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited" // 429 or circuit breaker open
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"  // exhausted retries on transient failures
	ErrCodeUpstreamBadPayload  ErrorCode = "upstream_bad_payload"  // response decoded but shape was unusable

	// Persistence
	ErrCodeStoreMissing ErrorCode = "store_missing_raw_input"
	ErrCodeStoreIO      ErrorCode = "store_io_error"
	ErrCodeLedgerIO     ErrorCode = "ledger_io_error"

	// API
	ErrCodeNotFoundArtifact ErrorCode = "not_found_artifact"

	// Fallback
	ErrCodeInternalUnexpected ErrorCode = "internal_unexpected_error"
)

// HTTPStatus maps an ErrorCode to the status the API layer should respond
// with. Unrecognized codes map to 500 as a safe default.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	case s == string(ErrCodeConfigInvalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. All domain errors are
// expressed as AppError to enable consistent classification, logging, and
// HTTP mapping, with error chain support via Unwrap.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from an error chain, or
// ErrCodeInternalUnexpected when the chain carries no AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternalUnexpected
}
