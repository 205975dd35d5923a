package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/batchflow/internal/domain/batch"
)

type createBatchRequest struct {
	RecipeID       string   `json:"recipe_id"`
	Name           string   `json:"name"`
	TargetQuantity int      `json:"target_quantity"`
	StartDate      string   `json:"start_date"`
	DueDate        string   `json:"due_date"`
	WorkerIDs      []string `json:"worker_ids"`
	MetrcBatchID   *string  `json:"metrc_batch_id"`
	LotNumber      *string  `json:"lot_number"`
	Strain         *string  `json:"strain"`
	PackageTag     *string  `json:"package_tag"`
}

// patchBatchRequest distinguishes an absent due_date from an explicit null.
type patchBatchRequest struct {
	Status         *string         `json:"status"`
	Name           *string         `json:"name"`
	TargetQuantity *int            `json:"target_quantity"`
	DueDate        json.RawMessage `json:"due_date"`
	WorkerIDs      *[]string       `json:"worker_ids"`
	MetrcBatchID   *string         `json:"metrc_batch_id"`
	LotNumber      *string         `json:"lot_number"`
	Strain         *string         `json:"strain"`
	PackageTag     *string         `json:"package_tag"`
}

type logProgressRequest struct {
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

func (s *Server) handleListActiveBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.services.Batches.ListActive(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleListFinishedBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := s.services.Batches.ListFinished(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	b, err := s.services.Batches.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req createBatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	startDate, err := s.parseDate(req.StartDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	dueDate, err := s.parseDate(req.DueDate)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	b, err := s.services.Batches.Create(r.Context(), batch.CreateRequest{
		RecipeID:       req.RecipeID,
		Name:           req.Name,
		TargetQuantity: req.TargetQuantity,
		StartDate:      startDate,
		DueDate:        dueDate,
		WorkerIDs:      req.WorkerIDs,
		Compliance: batch.Compliance{
			MetrcBatchID: req.MetrcBatchID,
			LotNumber:    req.LotNumber,
			Strain:       req.Strain,
			PackageTag:   req.PackageTag,
		},
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handlePatchBatch(w http.ResponseWriter, r *http.Request) {
	var req patchBatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")

	if req.Status != nil && req.Name == nil {
		b, err := s.services.Batches.SetStatus(r.Context(), id, batch.Status(*req.Status))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
		return
	}

	update := batch.UpdateRequest{
		Name:           req.Name,
		TargetQuantity: req.TargetQuantity,
		WorkerIDs:      req.WorkerIDs,
		MetrcBatchID:   req.MetrcBatchID,
		LotNumber:      req.LotNumber,
		Strain:         req.Strain,
		PackageTag:     req.PackageTag,
	}
	if len(req.DueDate) > 0 {
		update.SetDueDate = true
		if !bytes.Equal(req.DueDate, []byte("null")) {
			var raw string
			if err := json.Unmarshal(req.DueDate, &raw); err != nil {
				s.fail(w, r, fmt.Errorf("%w: due_date must be a date string", ErrBadRequest))
				return
			}
			due, err := s.parseDate(raw)
			if err != nil {
				s.fail(w, r, err)
				return
			}
			update.DueDate = due
		}
	}

	b, err := s.services.Batches.Update(r.Context(), id, update)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleLogProgress(w http.ResponseWriter, r *http.Request) {
	var req logProgressRequest
	if !s.decode(w, r, &req) {
		return
	}
	wk, _ := WorkerFromContext(r.Context())

	result, err := s.services.Batches.LogProgress(r.Context(), batch.LogRequest{
		BatchID:    chi.URLParam(r, "id"),
		StepID:     chi.URLParam(r, "stepID"),
		WorkerID:   wk.ID,
		WorkerName: wk.Name,
		Quantity:   req.Quantity,
		Note:       req.Note,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleDeleteLog(w http.ResponseWriter, r *http.Request) {
	wk, _ := WorkerFromContext(r.Context())

	result, err := s.services.Batches.DeleteLog(r.Context(), batch.DeleteLogRequest{
		LogID:        chi.URLParam(r, "id"),
		ActorID:      wk.ID,
		ActorIsOwner: wk.IsOwner(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": result})
}

// parseDate accepts RFC 3339 timestamps or bare YYYY-MM-DD days, read in the
// server's time zone. Empty input yields nil.
func (s *Server) parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, value, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrBadRequest, value)
	}
	return &t, nil
}
