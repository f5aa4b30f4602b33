// Package errors provides standardized error types and handling for gembridge.
// It implements error classification, wrapping, and utility functions for
// consistent error handling across the codebase.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrTypeUnknown is for errors that don't fit other categories
	ErrTypeUnknown ErrorType = "unknown"

	// ErrTypeValidation is for input validation errors
	ErrTypeValidation ErrorType = "validation"

	// ErrTypeUpstream is for failures of the outbound AI service call
	// (connection errors, timeouts, non-success upstream status)
	ErrTypeUpstream ErrorType = "upstream"

	// ErrTypeDecode is for malformed or unexpected upstream response bodies
	ErrTypeDecode ErrorType = "decode"

	// ErrTypeConfig is for configuration errors
	ErrTypeConfig ErrorType = "config"

	// ErrTypeInternal is for internal/unexpected errors
	ErrTypeInternal ErrorType = "internal"
)

// Error is the standard error type with classification
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	typeStr := string(e.Type)
	if e.Type == ErrTypeConfig {
		typeStr = "configuration"
	}

	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", typeStr, e.Message, e.Err)
	}
	return fmt.Sprintf("%s error: %s", typeStr, e.Message)
}

// Unwrap allows errors.Is and errors.As to work
func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string) error {
	return &Error{
		Type:    ErrTypeValidation,
		Message: message,
	}
}

// NewUpstreamError creates a new upstream error
func NewUpstreamError(message string) error {
	return &Error{
		Type:    ErrTypeUpstream,
		Message: message,
	}
}

// NewDecodeError creates a new decode error
func NewDecodeError(message string) error {
	return &Error{
		Type:    ErrTypeDecode,
		Message: message,
	}
}

// NewConfigError creates a new configuration error
func NewConfigError(message string) error {
	return &Error{
		Type:    ErrTypeConfig,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string) error {
	return &Error{
		Type:    ErrTypeInternal,
		Message: message,
	}
}

// WrapValidation wraps an error as a validation error
func WrapValidation(err error, message string) error {
	return &Error{
		Type:    ErrTypeValidation,
		Message: message,
		Err:     err,
	}
}

// WrapUpstream wraps an error as an upstream error
func WrapUpstream(err error, message string) error {
	return &Error{
		Type:    ErrTypeUpstream,
		Message: message,
		Err:     err,
	}
}

// WrapDecode wraps an error as a decode error
func WrapDecode(err error, message string) error {
	return &Error{
		Type:    ErrTypeDecode,
		Message: message,
		Err:     err,
	}
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, message string) error {
	return &Error{
		Type:    ErrTypeConfig,
		Message: message,
		Err:     err,
	}
}

// WrapInternal wraps an error as an internal error
func WrapInternal(err error, message string) error {
	return &Error{
		Type:    ErrTypeInternal,
		Message: message,
		Err:     err,
	}
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return isType(err, ErrTypeValidation)
}

// IsUpstream checks if an error is an upstream error
func IsUpstream(err error) bool {
	return isType(err, ErrTypeUpstream)
}

// IsDecode checks if an error is a decode error
func IsDecode(err error) bool {
	return isType(err, ErrTypeDecode)
}

// IsConfig checks if an error is a configuration error
func IsConfig(err error) bool {
	return isType(err, ErrTypeConfig)
}

// IsInternal checks if an error is an internal error
func IsInternal(err error) bool {
	return isType(err, ErrTypeInternal)
}

// isType checks if an error is of a specific type
func isType(err error, errType ErrorType) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type == errType
	}
	return false
}

// GetType returns the error type for an error
func GetType(err error) ErrorType {
	if err == nil {
		return ErrTypeUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrTypeUnknown
}

// HTTPStatus returns the appropriate HTTP status code for an error.
// Upstream and decode failures map to 500 uniformly; the caller is not
// told whether the AI service was unreachable or returned garbage.
func HTTPStatus(err error) int {
	switch GetType(err) {
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeUpstream, ErrTypeDecode, ErrTypeConfig, ErrTypeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Details returns the description of the underlying cause, for inclusion
// in the "details" field of an error response. Falls back to the error's
// own message when there is no wrapped cause.
func Details(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

// UpstreamStatusError represents a non-success status from the AI service.
// The response body is truncated before being stored so a misbehaving
// upstream cannot flood the logs.
type UpstreamStatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *UpstreamStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// NewUpstreamStatusError wraps a non-2xx upstream response as an upstream error
func NewUpstreamStatusError(statusCode int, body string) error {
	return &Error{
		Type:    ErrTypeUpstream,
		Message: "AI service request failed",
		Err: &UpstreamStatusError{
			StatusCode: statusCode,
			Body:       body,
		},
	}
}

// AsUpstreamStatusError checks if an error carries an upstream status and returns it
func AsUpstreamStatusError(err error) (*UpstreamStatusError, bool) {
	if err == nil {
		return nil, false
	}
	var statusErr *UpstreamStatusError
	if errors.As(err, &statusErr) {
		return statusErr, true
	}
	return nil, false
}
