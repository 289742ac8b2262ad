package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("resource conflict")
	ErrInternal       = errors.New("internal error")
	ErrBadGateway     = errors.New("upstream failure")
	ErrTimeout        = errors.New("timeout")
	ErrServiceUnavail = errors.New("service unavailable")
)

// AppError is an error that knows its HTTP status and wire code.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	Err        error          `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code, otherwise defers to the wrapped error.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Err, target)
}

// WithDetails attaches details to the error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the body of the error envelope.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ToResponse converts an AppError to its envelope.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		},
	}
}

// NewAppError creates a new application error.
func NewAppError(code string, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// BadRequest creates a bad request error.
func BadRequest(message string) *AppError {
	return &AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        ErrBadRequest,
	}
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
		Err:        ErrConflict,
	}
}

// Internal creates an internal error.
func Internal(message string, err error) *AppError {
	if err == nil {
		err = ErrInternal
	}
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// BadGateway creates an error for a failed upstream call.
func BadGateway(code, message string, err error) *AppError {
	if err == nil {
		err = ErrBadGateway
	}
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// Timeout creates a timeout error.
func Timeout(message string) *AppError {
	if message == "" {
		message = "request timeout"
	}
	return &AppError{
		Code:       "TIMEOUT",
		Message:    message,
		StatusCode: http.StatusGatewayTimeout,
		Err:        ErrTimeout,
	}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(message string) *AppError {
	if message == "" {
		message = "service temporarily unavailable"
	}
	return &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Err:        ErrServiceUnavail,
	}
}
