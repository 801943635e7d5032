// Package apperror provides the user-facing error taxonomy of the wizard.
// Every error carries a machine-readable type, a message that is safe to
// show the user and an HTTP status the web shell maps it to. None of them
// are fatal: the wizard stays usable after any of them is reported.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types.
const (
	TypeValidation        = "validation_error"
	TypeAuthorization     = "authorization_error"
	TypePartialImport     = "partial_import"
	TypeNoTarget          = "no_target"
	TypeInvalidTransition = "invalid_transition"
	TypeNotFound          = "not_found"
	TypeConflict          = "conflict"
	TypeInternal          = "internal_error"
)

// AppError is the base error type for all domain errors.
type AppError struct {
	// Code is the HTTP status code used by the web shell.
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "validation_error").
	Type string `json:"type"`

	// Message is a human-readable description safe for the user.
	Message string `json:"message"`

	// Internal holds the underlying error for logging. Never shown to the user.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewValidation reports input that was rejected before any state changed.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Type:    TypeValidation,
		Message: message,
	}
}

// NewAuthorization reports denied calendar access.
func NewAuthorization(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Type:    TypeAuthorization,
		Message: message,
	}
}

// NewPartialImport reports an import where some events were not written.
func NewPartialImport(imported, failed int) *AppError {
	return &AppError{
		Code:    http.StatusOK,
		Type:    TypePartialImport,
		Message: fmt.Sprintf("imported %d of %d shifts, %d failed", imported, imported+failed, failed),
	}
}

// NewNoTarget reports that no writable calendar exists in single-calendar mode.
func NewNoTarget() *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    TypeNoTarget,
		Message: "no calendar found to import shifts into",
	}
}

// NewInvalidTransition reports an action that the current wizard state
// does not accept.
func NewInvalidTransition(action, state string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    TypeInvalidTransition,
		Message: fmt.Sprintf("%s is not possible while %s", action, state),
	}
}

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Type:    TypeNotFound,
		Message: message,
	}
}

// NewConflict creates a 409 Conflict error.
func NewConflict(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Type:    TypeConflict,
		Message: message,
	}
}

// NewInternal wraps an infrastructure error. The user only sees a generic
// message; err is kept for logging.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeInternal,
		Message:  "an unexpected error occurred, please try again",
		Internal: err,
	}
}

// Is reports whether err is (or wraps) an AppError of the given type.
func Is(err error, typ string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == typ
	}
	return false
}

// SafeMessage returns the user-safe message of err. Errors that are not
// AppErrors get a generic message.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code of err, or 500 for any other error type.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// SafeType returns the machine-readable type of err.
func SafeType(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return TypeInternal
}
