package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures for the HTTP boundary.
type Kind int

const (
	Internal Kind = iota
	InvalidInput
	NotFound
	Conflict
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error carries a Kind, a user-facing message and, where applicable, the offending fields.
type Error struct {
	Kind    Kind
	Message string
	Fields  map[string]string
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

// Is matches any *Error of the same Kind, so errors.Is(err, apperr.ErrNotFound) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Fields == nil
}

// Sentinels for errors.Is checks.
var (
	ErrInvalidInput = &Error{Kind: InvalidInput}
	ErrNotFound     = &Error{Kind: NotFound}
	ErrConflict     = &Error{Kind: Conflict}
	ErrInternal     = &Error{Kind: Internal}
)

// Invalid builds an InvalidInput error from a field map.
func Invalid(fields map[string]string) *Error {
	return &Error{Kind: InvalidInput, Message: "Invalid input", Fields: fields}
}

// InvalidField builds an InvalidInput error for a single field.
func InvalidField(field, msg string) *Error {
	return &Error{Kind: InvalidInput, Message: msg, Fields: map[string]string{field: msg}}
}

// NotFoundField reports a missing (or foreign) record referenced by field.
func NotFoundField(field, msg string) *Error {
	return &Error{Kind: NotFound, Message: msg, Fields: map[string]string{field: msg}}
}

func NewConflict(msg string) *Error {
	return &Error{Kind: Conflict, Message: msg}
}

// Wrap marks err as Internal unless it already carries a Kind.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: Internal, Message: msg, Err: err}
}

// KindOf returns the Kind of err, Internal for foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}
