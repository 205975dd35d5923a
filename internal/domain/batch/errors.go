package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrBatchNotFound indicates the batch doesn't exist.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrStepNotFound indicates the step doesn't exist in the batch.
	ErrStepNotFound = errors.New("step not found")
	// ErrLogNotFound indicates the progress log doesn't exist.
	ErrLogNotFound = errors.New("log not found")
	// ErrInvalidInput indicates invalid batch input.
	ErrInvalidInput = errors.New("invalid batch input")
	// ErrInvalidStatus indicates a status outside ACTIVE, COMPLETED, CANCELLED.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidQuantity indicates a non-positive progress quantity.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrStepLocked indicates progress was submitted to a locked step.
	ErrStepLocked = errors.New("step is locked")
	// ErrBatchCancelled indicates progress was submitted to a cancelled batch.
	ErrBatchCancelled = errors.New("batch is cancelled")
	// ErrNotAuthorized indicates the actor may not delete the log.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrConflict indicates the step changed while the submission was applied.
	ErrConflict = errors.New("step was updated concurrently, retry")
)

// CeilingError reports a submission that would exceed the waterfall ceiling.
type CeilingError struct {
	Current   int
	Ceiling   int
	Attempted int
}

func (e *CeilingError) Error() string {
	return fmt.Sprintf("Cannot exceed ceiling of %d. Current: %d, Attempting to add: %d", e.Ceiling, e.Current, e.Attempted)
}
