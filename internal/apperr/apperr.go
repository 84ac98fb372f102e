// Package apperr carries the error kinds every core operation reports. Callers branch on Kind,
// users read Reason.
package apperr

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindDependency Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	default:
		return "dependency"
	}
}

type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error {
	return e.Err
}

const unauthorizedReason = "user is not authorized to perform this action"

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Reason: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Reason: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Reason: fmt.Sprintf(format, args...)}
}

// Unauthorized has a fixed reason so a wrong credential and a foreign resource look the same.
func Unauthorized() error {
	return &Error{Kind: KindUnauthorized, Reason: unauthorizedReason}
}

func Dependency(err error, reason string) error {
	return &Error{Kind: KindDependency, Reason: reason, Err: err}
}

// KindOf reports the kind of err. Errors that never went through this package are dependency
// failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependency
}

// ReasonOf returns the human readable reason, hiding wrapped causes of dependency failures.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindDependency {
		return e.Reason
	}
	return "internal error"
}

func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
