// Package apperr classifies service failures so HTTP handlers can map them to
// status codes without inspecting error strings.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindAuthorization
	KindNotFound
	KindConsistency
)

// Error is a classified failure. Details carries structured context for the
// client, e.g. the list of URIs that failed to resolve.
type Error struct {
	Kind    Kind
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func ValidationWithDetails(msg string, details interface{}) *Error {
	return &Error{Kind: KindValidation, Message: msg, Details: details}
}

func Authorization(msg string) *Error {
	return &Error{Kind: KindAuthorization, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Consistency marks a state the invariants say is impossible, e.g. a complete
// record whose blob is missing. Always logged, never silently ignored.
func Consistency(msg string, err error) *Error {
	return &Error{Kind: KindConsistency, Message: msg, Err: err}
}

func Server(msg string, err error) *Error {
	return &Error{Kind: KindServer, Message: msg, Err: err}
}

// Status maps an error to the HTTP status code of its kind. Unclassified
// errors are treated as server failures.
func Status(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsKind reports whether err is an apperr.Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Message returns the client-facing message for err, falling back to a
// generic one for unclassified errors so internals never leak.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}

// Details returns the structured detail payload, if any.
func Details(err error) interface{} {
	var e *Error
	if errors.As(err, &e) {
		return e.Details
	}
	return nil
}
