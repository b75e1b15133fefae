package domain

import (
	"errors"
	"fmt"
)

// Kind classifies errors surfaced at the API boundary.
type Kind string

const (
	KindValidation Kind = "validation" // Malformed or out-of-range input
	KindNotFound   Kind = "not_found"  // Missing, or owned by someone else
	KindConflict   Kind = "conflict"   // Transaction already resolved
	KindAuth       Kind = "auth"       // Missing privilege
	KindInternal   Kind = "internal"   // Anything else
)

// Error is a classified error with a caller-facing message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// Sentinels for errors.Is checks
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrAuth       = &Error{Kind: KindAuth}
)

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Auth(format string, args ...any) error {
	return &Error{Kind: KindAuth, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
