package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/loginguard"
)

// ErrBadRequest indicates a malformed request body or parameter.
var ErrBadRequest = errors.New("bad request")

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Current   *int   `json:"current,omitempty"`
	Ceiling   *int   `json:"ceiling,omitempty"`
	Attempted *int   `json:"attempted,omitempty"`
}

// StatusFor maps domain errors to HTTP status codes. Unknown errors are 500.
func StatusFor(err error) int {
	var ceiling *batch.CeilingError
	switch {
	case errors.As(err, &ceiling):
		return http.StatusBadRequest
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, recipe.ErrInvalidInput),
		errors.Is(err, batch.ErrInvalidInput),
		errors.Is(err, batch.ErrInvalidStatus),
		errors.Is(err, batch.ErrInvalidQuantity),
		errors.Is(err, batch.ErrStepLocked),
		errors.Is(err, batch.ErrBatchCancelled),
		errors.Is(err, worker.ErrInvalidInput),
		errors.Is(err, worker.ErrInvalidRole),
		errors.Is(err, worker.ErrInvalidPINFormat),
		errors.Is(err, shift.ErrAlreadyClockedIn),
		errors.Is(err, shift.ErrNotClockedIn),
		errors.Is(err, shift.ErrInvalidInput),
		errors.Is(err, activity.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, worker.ErrInvalidPIN):
		return http.StatusUnauthorized
	case errors.Is(err, batch.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, recipe.ErrRecipeNotFound),
		errors.Is(err, batch.ErrBatchNotFound),
		errors.Is(err, batch.ErrStepNotFound),
		errors.Is(err, batch.ErrLogNotFound),
		errors.Is(err, worker.ErrWorkerNotFound):
		return http.StatusNotFound
	case errors.Is(err, recipe.ErrInUse),
		errors.Is(err, batch.ErrConflict),
		errors.Is(err, worker.ErrHasHistory):
		return http.StatusConflict
	case errors.Is(err, loginguard.ErrThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, worker.ErrPINExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the mapped error. Unmapped errors are logged and hidden.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		if s.logger != nil {
			s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		}
		writeError(w, status, "Internal server error")
		return
	}

	body := ErrorResponse{Error: err.Error()}
	var ceiling *batch.CeilingError
	if errors.As(err, &ceiling) {
		body.Current = &ceiling.Current
		body.Ceiling = &ceiling.Ceiling
		body.Attempted = &ceiling.Attempted
	}
	writeJSON(w, status, body)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		s.fail(w, r, fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
