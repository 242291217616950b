// Package apperror defines the error taxonomy shared by the payment and
// referral services. Handlers map a Kind to an HTTP status; everything else
// just wraps with %w and lets KindOf find the classification.
package apperror

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and transport mapping
type Kind string

const (
	KindValidation     Kind = "VALIDATION_ERROR"
	KindNotFound       Kind = "NOT_FOUND"
	KindAuthentication Kind = "AUTHENTICATION_ERROR"
	KindForbidden      Kind = "FORBIDDEN"
	KindConflict       Kind = "CONFLICT"
	KindUpstream       Kind = "UPSTREAM_ERROR"
	KindInternal       Kind = "INTERNAL_ERROR"
)

// Error is a classified application error
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation creates a validation error
func NewValidation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewNotFound creates a not found error for the named resource
func NewNotFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found", resource)}
}

// NewAuthentication creates an authentication error
func NewAuthentication(msg string) error {
	return &Error{Kind: KindAuthentication, Message: msg}
}

// NewForbidden creates a forbidden error
func NewForbidden(msg string) error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NewConflict creates a conflict error
func NewConflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewUpstream wraps a failure reported by an external dependency
func NewUpstream(msg string, err error) error {
	return &Error{Kind: KindUpstream, Message: msg, Err: err}
}

// NewInternal wraps an unexpected failure
func NewInternal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain,
// or KindInternal when there is none
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	var appErr *Error
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// MessageOf returns the client-safe message of a classified error.
// Internal errors never leak their cause.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Kind != KindInternal {
		if appErr.Kind == KindUpstream && appErr.Err != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
		}
		return appErr.Message
	}
	return "internal server error"
}

// ConsistencyWarning records a best-effort side effect that failed. It is
// logged and counted, never returned to the caller of the core operation.
type ConsistencyWarning struct {
	Component string
	Op        string
	Err       error
}

func (w *ConsistencyWarning) Error() string {
	return fmt.Sprintf("consistency warning in %s (%s): %v", w.Component, w.Op, w.Err)
}

func (w *ConsistencyWarning) Unwrap() error {
	return w.Err
}

// NewConsistencyWarning creates a consistency warning
func NewConsistencyWarning(component, op string, err error) *ConsistencyWarning {
	return &ConsistencyWarning{Component: component, Op: op, Err: err}
}
