package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
)

// APIError is the body of a failed tool call.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type ceilingDetails struct {
	Current   int `json:"current"`
	Ceiling   int `json:"ceiling"`
	Attempted int `json:"attempted"`
}

// MapError maps domain errors to tool error codes. Unknown errors map to nil.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var ceiling *batch.CeilingError
	if errors.As(err, &ceiling) {
		return &APIError{
			Code:         "CEILING_EXCEEDED",
			Message:      err.Error(),
			Details:      ceilingDetails{Current: ceiling.Current, Ceiling: ceiling.Ceiling, Attempted: ceiling.Attempted},
			RecoveryHint: "Log at most ceiling minus current; finish the previous step first",
		}
	}

	switch {
	case errors.Is(err, batch.ErrBatchNotFound):
		return &APIError{Code: "BATCH_NOT_FOUND", Message: "batch not found", RecoveryHint: "Call list_active_batches for valid IDs"}
	case errors.Is(err, batch.ErrStepNotFound):
		return &APIError{Code: "STEP_NOT_FOUND", Message: "step not found in batch", RecoveryHint: "Call get_batch for the batch's step IDs"}
	case errors.Is(err, batch.ErrLogNotFound):
		return &APIError{Code: "LOG_NOT_FOUND", Message: "progress log not found"}
	case errors.Is(err, batch.ErrStepLocked):
		return &APIError{Code: "STEP_LOCKED", Message: "step is locked", RecoveryHint: "Log progress on the previous step first"}
	case errors.Is(err, batch.ErrBatchCancelled):
		return &APIError{Code: "BATCH_CANCELLED", Message: "batch is cancelled"}
	case errors.Is(err, batch.ErrInvalidQuantity):
		return &APIError{Code: "INVALID_QUANTITY", Message: "quantity must be greater than 0"}
	case errors.Is(err, batch.ErrNotAuthorized):
		return &APIError{Code: "NOT_AUTHORIZED", Message: "only the author or an owner may delete this log"}
	case errors.Is(err, batch.ErrConflict):
		return &APIError{Code: "CONFLICT", Message: "step was updated concurrently", RecoveryHint: "Re-read the batch and retry"}
	case errors.Is(err, batch.ErrInvalidInput), errors.Is(err, recipe.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}
