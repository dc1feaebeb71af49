// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"errors"
	"net/http"
)

// ErrorType represents the semantic category of an error
type ErrorType int

const (
	ErrorTypeValidation  ErrorType = iota // Input validation errors (400 Bad Request)
	ErrorTypeNotFound                     // Resource not found errors (404 Not Found)
	ErrorTypeConflict                     // Resource conflict errors (409 Conflict)
	ErrorTypeInternal                     // Internal server errors (500 Internal Server Error)
	ErrorTypeUnavailable                  // Service unavailable errors (503 Service Unavailable)
)

// Sentinel errors shared across the control plane.
var (
	// ErrBusNotReady is returned by every publish attempt while the bus session is not established.
	ErrBusNotReady = errors.New("bus not ready")
	// ErrStatusTimeout is returned when a bot does not answer a status request in time.
	ErrStatusTimeout = errors.New("status request timed out")
	// ErrServiceUnavailable is returned when the service is not ready to serve requests.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrRecordNotFound is returned when no state record exists for a meeting.
	ErrRecordNotFound = errors.New("meeting record not found")
	// ErrTerminalRecord is returned when a command targets a finished meeting.
	ErrTerminalRecord = errors.New("meeting record is terminal")
	// ErrInvalidTransition is returned for a status change the bot lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnsupportedPlatform is returned for meeting URLs no bot can join.
	ErrUnsupportedPlatform = errors.New("unsupported meeting platform")
	// ErrValidationFailed is the generic cause of validation errors.
	ErrValidationFailed = errors.New("validation failed")
)

// DomainError represents an error with semantic type information
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error // underlying error for wrapping
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// GetErrorType returns the semantic type of an error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	if errors.Is(err, ErrBusNotReady) || errors.Is(err, ErrServiceUnavailable) {
		return ErrorTypeUnavailable
	}
	return ErrorTypeInternal
}

// HTTPStatus maps an error onto the status code the API answers with.
func HTTPStatus(err error) int {
	switch GetErrorType(err) {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors for different types
func NewValidationError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeValidation, Message: message, Err: errors.Join(err...)}
}

func NewNotFoundError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeNotFound, Message: message, Err: errors.Join(err...)}
}

func NewConflictError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeConflict, Message: message, Err: errors.Join(err...)}
}

func NewInternalError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeInternal, Message: message, Err: errors.Join(err...)}
}

func NewUnavailableError(message string, err ...error) *DomainError {
	return &DomainError{Type: ErrorTypeUnavailable, Message: message, Err: errors.Join(err...)}
}
