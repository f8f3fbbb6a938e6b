package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError standardizes application errors across the ticket core.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

const (
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeTimeout          = "TIMEOUT"
	CodeNotFound         = "NOT_FOUND"
)

// NewPermissionDenied names the missing capability so callers can surface it
// as a blocking dialog rather than a silent no-op.
func NewPermissionDenied(capability string) error {
	return &AppError{
		Code:       CodePermissionDenied,
		Message:    fmt.Sprintf("actor lacks %s capability", capability),
		HTTPStatus: http.StatusForbidden,
		Details:    map[string]any{"capability": capability},
	}
}

func NewValidationFailed(message string, details map[string]any) error {
	return &AppError{
		Code:       CodeValidationFailed,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

func NewStoreUnavailable(err error) error {
	return &AppError{
		Code:       CodeStoreUnavailable,
		Message:    "document store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewTimeout marks an operation that exceeded its bound. The underlying write
// is not guaranteed rolled back; callers retry with the same idempotency key.
func NewTimeout(op string, err error) error {
	return &AppError{
		Code:       CodeTimeout,
		Message:    fmt.Sprintf("%s timed out", op),
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

func NewNotFound(resource string) error {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// As unwraps err into an *AppError, or wraps unknown errors as internal.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
