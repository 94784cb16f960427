// Package domainerrors provides code-carrying errors for domain failures.
// Services raise these; the HTTP boundary translates them into uniform JSON
// envelopes so callers never see a raw internal error.
//
// For infrastructure facts (record missing, version conflict) stores return
// pkg/platform/sentinel errors instead; services translate those into domain
// errors at their boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure.
type Code string

const (
	// CodeUnauthorized: no authenticated actor, or the actor could not be
	// resolved from request context.
	CodeUnauthorized Code = "unauthorized"
	// CodePermissionDenied: the actor is known but lacks the required grant,
	// or their membership is inactive.
	CodePermissionDenied Code = "permission_denied"
	CodeNotFound         Code = "not_found"
	// CodeInvalidState: an illegal state machine transition was attempted.
	CodeInvalidState    Code = "invalid_state"
	CodeAlreadyApproved Code = "already_approved"
	CodeNoApprovers     Code = "no_approvers_available"
	CodeCoolingActive   Code = "cooling_period_not_elapsed"
	CodeUnknownAction   Code = "unknown_action_type"
	CodeInvalidInput    Code = "invalid_input"
	CodeBadRequest      Code = "bad_request"
	CodeInternal        Code = "internal"
)

// Error is a domain error with a stable code and a human-readable message.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or CodeInternal for unknown errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the user-visible message for err. Unknown errors map to a
// generic message so internals never leak through the API boundary.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidState, CodeAlreadyApproved, CodeCoolingActive:
		return http.StatusConflict
	case CodeNoApprovers:
		return http.StatusUnprocessableEntity
	case CodeUnknownAction, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
