package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers know how to reconcile.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindValidation    Kind = "validation"
	KindState         Kind = "state"
	KindAuthorization Kind = "authorization"
	KindExternal      Kind = "external"
)

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

func withKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: err}
}

// Validation marks err as rejected input.
func Validation(err error) error { return withKind(KindValidation, err) }

// State marks err as a lifecycle or bookkeeping conflict.
func State(err error) error { return withKind(KindState, err) }

// Unauthorized marks err as a missing role or relationship.
func Unauthorized(err error) error { return withKind(KindAuthorization, err) }

// External marks err as a value-ledger failure.
func External(err error) error { return withKind(KindExternal, err) }

// Validationf builds a validation error that still matches sentinel via errors.Is.
func Validationf(sentinel error, format string, args ...interface{}) error {
	return Validation(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// Statef builds a state error that still matches sentinel via errors.Is.
func Statef(sentinel error, format string, args ...interface{}) error {
	return State(fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

// KindOf returns the outermost classification attached to err.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Is forwards to the standard library so callers can keep a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

// As forwards to the standard library.
func As(err error, target interface{}) bool { return errors.As(err, target) }
