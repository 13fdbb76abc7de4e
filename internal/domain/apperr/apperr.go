// Package apperr defines the error taxonomy shared by the lifecycle engine and its adapters.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the entity is missing or not in a state where the operation applies
	ErrNotFound = errors.New("not found")

	// ErrConflict means a concurrent writer won the race or the terminal action already happened
	ErrConflict = errors.New("conflict")

	// ErrForbidden means the role or ownership check failed
	ErrForbidden = errors.New("forbidden")

	// ErrInvalid means the input was malformed
	ErrInvalid = errors.New("invalid input")

	// ErrTransient means the store timed out or failed; the caller may retry the whole operation
	ErrTransient = errors.New("transient storage failure")
)

// Kind classifies an error into the taxonomy
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInvalid
	KindTransient
)

var kindNames = map[Kind]string{
	KindUnknown:   "unknown",
	KindNotFound:  "not_found",
	KindConflict:  "conflict",
	KindForbidden: "forbidden",
	KindInvalid:   "invalid",
	KindTransient: "transient",
}

// String returns the snake_case name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// KindOf returns the kind of the first taxonomy sentinel found in the error chain
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalid):
		return KindInvalid
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// NotFound builds an ErrNotFound error with a formatted detail
func NotFound(format string, args ...interface{}) error {
	return wrap(ErrNotFound, format, args...)
}

// Conflict builds an ErrConflict error with a formatted detail
func Conflict(format string, args ...interface{}) error {
	return wrap(ErrConflict, format, args...)
}

// Forbidden builds an ErrForbidden error with a formatted detail
func Forbidden(format string, args ...interface{}) error {
	return wrap(ErrForbidden, format, args...)
}

// Invalid builds an ErrInvalid error with a formatted detail
func Invalid(format string, args ...interface{}) error {
	return wrap(ErrInvalid, format, args...)
}

// Transient marks a storage error as retryable. Errors already carrying a kind are returned unchanged.
func Transient(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
