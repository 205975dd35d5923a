package shift

import "errors"

var (
	// ErrAlreadyClockedIn indicates the worker has an ACTIVE shift.
	ErrAlreadyClockedIn = errors.New("already clocked in")
	// ErrNotClockedIn indicates the worker has no ACTIVE shift.
	ErrNotClockedIn = errors.New("not clocked in")
	// ErrInvalidInput indicates a malformed filter or date.
	ErrInvalidInput = errors.New("invalid shift input")
)
