package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrAuthFailed      ErrorType = "AUTH_FAILED"
	ErrForbidden       ErrorType = "FORBIDDEN"
	ErrInvalidRequest  ErrorType = "INVALID_REQUEST"
	ErrInvalidConfig   ErrorType = "INVALID_CONFIG"
	ErrValidation      ErrorType = "VALIDATION_FAILED"
	ErrSchemaInvalid   ErrorType = "SCHEMA_INVALID"
	ErrUnmatchedRoute  ErrorType = "UNMATCHED_ROUTE"
	ErrConflict        ErrorType = "CONFLICT"
	ErrRateLimited     ErrorType = "RATE_LIMITED"
	ErrInternal        ErrorType = "INTERNAL_ERROR"
	ErrNotFound        ErrorType = "NOT_FOUND"
	ErrUpstream        ErrorType = "UPSTREAM_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Details    any       `json:"details,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewInvalidConfig(msg string, cause error) *AppError {
	return New(ErrInvalidConfig, msg, cause)
}

func NewNotFound(msg string) *AppError {
	return New(ErrNotFound, msg, nil)
}

// WithDetails attaches a machine-readable payload rendered next to the message.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrInvalidConfig, ErrValidation:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrUnmatchedRoute:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrAuthFailed:
		return "Check the X-API-Key or X-Admin-Key header."
	case ErrInvalidConfig:
		return "Fix the endpoint configuration and submit it again."
	case ErrValidation:
		return "Make the request body conform to the endpoint schema."
	case ErrSchemaInvalid:
		return "The endpoint schema is broken; update it through the admin API."
	case ErrRateLimited:
		return "Slow down and retry later."
	default:
		return ""
	}
}
