package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/domain/worker"
)

type createWorkerRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type updateWorkerRequest struct {
	Name *string `json:"name"`
	Role *string `json:"role"`
}

func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.services.Workers.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workers)
}

func (s *Server) handleCreateWorker(w http.ResponseWriter, r *http.Request) {
	var req createWorkerRequest
	if !s.decode(w, r, &req) {
		return
	}
	wk, err := s.services.Workers.Create(r.Context(), worker.CreateRequest{
		Name: req.Name,
		Role: worker.Role(req.Role),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wk)
}

func (s *Server) handleUpdateWorker(w http.ResponseWriter, r *http.Request) {
	var req updateWorkerRequest
	if !s.decode(w, r, &req) {
		return
	}
	update := worker.UpdateRequest{Name: req.Name}
	if req.Role != nil {
		role := worker.Role(*req.Role)
		update.Role = &role
	}

	wk, err := s.services.Workers.Update(r.Context(), chi.URLParam(r, "id"), update)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}

func (s *Server) handleDeleteWorker(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Workers.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleWorkerActivity(w http.ResponseWriter, r *http.Request) {
	since := shift.StartOfDay(s.now(), s.loc)
	summary, err := s.services.Workers.TodayActivity(r.Context(), since)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
