package core

import (
	"errors"
	"fmt"
)

// AbortError marks an invocation failure that is not part of a contract's
// typed error surface. Hosts discard the invocation's writes and report it as
// fatal.
type AbortError struct {
	Err error
}

func (e *AbortError) Error() string {
	if e == nil || e.Err == nil {
		return "invocation aborted"
	}
	return fmt.Sprintf("invocation aborted: %v", e.Err)
}

func (e *AbortError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Abort wraps err into an AbortError. Errors that already carry an abort are
// returned unchanged and nil stays nil.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	if IsAbort(err) {
		return err
	}
	return &AbortError{Err: err}
}

// Abortf formats a message into an AbortError.
func Abortf(format string, args ...interface{}) error {
	return &AbortError{Err: fmt.Errorf(format, args...)}
}

// IsAbort reports whether err carries an AbortError.
func IsAbort(err error) bool {
	var abort *AbortError
	return errors.As(err, &abort)
}
