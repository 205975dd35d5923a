package worker

import "errors"

var (
	// ErrWorkerNotFound indicates the worker doesn't exist.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrInvalidInput indicates invalid worker input.
	ErrInvalidInput = errors.New("invalid worker input")
	// ErrInvalidRole indicates a role other than WORKER or OWNER.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidPINFormat indicates a PIN that is not exactly four digits.
	ErrInvalidPINFormat = errors.New("invalid PIN format")
	// ErrInvalidPIN indicates no worker has the PIN.
	ErrInvalidPIN = errors.New("invalid PIN")
	// ErrPINExhausted indicates no unused PIN was found within the retry budget.
	ErrPINExhausted = errors.New("could not allocate a unique PIN")
	// ErrHasHistory indicates the worker still owns logs or shifts.
	ErrHasHistory = errors.New("worker has recorded history")
)
