package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeUpstream      ErrorType = "upstream"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeInternal      ErrorType = "internal"
)

// statusCodes maps each category to the HTTP status it surfaces as.
var statusCodes = map[ErrorType]int{
	ErrorTypeValidation:    http.StatusBadRequest,
	ErrorTypeUpstream:      http.StatusInternalServerError,
	ErrorTypeConfiguration: http.StatusInternalServerError,
	ErrorTypeInternal:      http.StatusInternalServerError,
}

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

func newAppError(t ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: statusCodes[t],
		Cause:      cause,
	}
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Details != "" {
		msg += " [" + e.Details + "]"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches operator-facing context and returns e.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// NewValidationError reports bad caller input (400).
func NewValidationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeValidation, message, cause)
}

// NewUpstreamError wraps a failure of the vision service or the object
// store. Upstream failures are never retried and always surface as 500.
func NewUpstreamError(message string, cause error) *AppError {
	return newAppError(ErrorTypeUpstream, message, cause)
}

// NewConfigurationError reports settings the process cannot start without.
func NewConfigurationError(message string, cause error) *AppError {
	return newAppError(ErrorTypeConfiguration, message, cause)
}

func NewInternalError(message string, cause error) *AppError {
	return newAppError(ErrorTypeInternal, message, cause)
}

// IsType checks if the error chain holds an AppError of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == errorType
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
