package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrConflict          = errors.New("resource conflict")
	ErrInternal          = errors.New("internal server error")
	ErrValidation        = errors.New("validation error")
	ErrDuplicateBatch    = errors.New("duplicate batch")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrRetryable         = errors.New("transient contention")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// DuplicateBatch signals a (pharmacy, medicine, batch_number) uniqueness
// violation. The client should resolve the conflict and resubmit.
func DuplicateBatch(batchNumber string) *AppError {
	return &AppError{
		Err:        ErrDuplicateBatch,
		Code:       "DUPLICATE_BATCH",
		Message:    fmt.Sprintf("batch %s already exists for this medicine", batchNumber),
		StatusCode: http.StatusConflict,
	}
}

// InsufficientStock signals that a reservation or allocation asked for more
// units than the batch (or medicine) has available. Never substituted
// silently; the caller decides what to do.
func InsufficientStock(message string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// InvalidQuantity signals a quantity move that would leave a counter
// negative. The operation fails instead of clamping.
func InvalidQuantity(message string) *AppError {
	return &AppError{
		Err:        ErrInvalidQuantity,
		Code:       "INVALID_QUANTITY",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// Retryable signals transient contention (lock wait exhausted, serialization
// failure, deadlock victim). The same call is safe to retry verbatim.
func Retryable(message string) *AppError {
	return &AppError{
		Err:        ErrRetryable,
		Code:       "RETRYABLE",
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
