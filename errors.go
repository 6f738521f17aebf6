package notecal

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTimeZone is returned when a tz value is not a recognized
	// IANA zone name.
	ErrUnknownTimeZone = errors.New("unknown time zone")
	// ErrNonexistentLocalTime is returned when a wall-clock time falls into
	// a DST gap and does not exist in the requested zone. Callers treat this
	// as field or event rejection, not a fatal condition.
	ErrNonexistentLocalTime = errors.New("nonexistent local time")
	ErrInvalidDateText      = errors.New("invalid date text")
	ErrNotFound             = errors.New("resource not found")
)

// Error is the structured error wrapper used across the package.
type Error struct {
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notecal %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("notecal %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(op, message string, err error) *Error {
	return &Error{Op: op, Message: message, Err: err}
}

func wrapError(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var nErr *Error
	if errors.As(err, &nErr) {
		return nErr
	}

	return &Error{Op: op, Message: "operation failed", Err: err}
}
