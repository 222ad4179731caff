package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain error kinds. Validation and state errors are returned synchronously
// to the caller; webhook-path failures are absorbed and logged instead of
// being surfaced, so signature handling never leaks verification detail.
var (
	ErrInvalidTerms         = errors.New("invalid contract terms")
	ErrIllegalTransition    = errors.New("illegal contract transition")
	ErrInvalidContractState = errors.New("operation not allowed in current contract state")
	ErrDuplicateObligation  = errors.New("obligation already has a completed payment")
	ErrConflictingPayment   = errors.New("conflicting payment for completed order")
	ErrSignatureInvalid     = errors.New("signature verification failed")
	ErrProviderUnavailable  = errors.New("external provider unavailable")
)

// AppError represents an application error
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// BadRequestError creates a 400 Bad Request error
func BadRequestError(message string, err error) *AppError {
	return NewAppError(http.StatusBadRequest, message, err)
}

// NotFoundError creates a 404 Not Found error
func NotFoundError(message string, err error) *AppError {
	return NewAppError(http.StatusNotFound, message, err)
}

// ConflictError creates a 409 Conflict error
func ConflictError(message string, err error) *AppError {
	return NewAppError(http.StatusConflict, message, err)
}

// ServiceUnavailableError creates a 503 Service Unavailable error
func ServiceUnavailableError(message string, err error) *AppError {
	return NewAppError(http.StatusServiceUnavailable, message, err)
}

// GetAppError returns the AppError if the error is an AppError
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// DomainErrorStatus maps a domain error kind to the HTTP status the API
// boundary responds with.
func DomainErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidTerms):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrIllegalTransition),
		errors.Is(err, ErrInvalidContractState),
		errors.Is(err, ErrDuplicateObligation),
		errors.Is(err, ErrConflictingPayment):
		return http.StatusConflict
	case errors.Is(err, ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
