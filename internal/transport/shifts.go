package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rpggio/batchflow/internal/domain/shift"
)

type clockOutRequest struct {
	Notes string `json:"notes"`
}

func (s *Server) handleCurrentShift(w http.ResponseWriter, r *http.Request) {
	wk, _ := WorkerFromContext(r.Context())
	current, err := s.services.Shifts.Current(r.Context(), wk.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleClockIn(w http.ResponseWriter, r *http.Request) {
	wk, _ := WorkerFromContext(r.Context())
	sh, err := s.services.Shifts.ClockIn(r.Context(), wk.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sh)
}

func (s *Server) handleClockOut(w http.ResponseWriter, r *http.Request) {
	// The body is optional.
	var req clockOutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.fail(w, r, fmt.Errorf("%w: invalid JSON body", ErrBadRequest))
		return
	}
	wk, _ := WorkerFromContext(r.Context())
	sh, err := s.services.Shifts.ClockOut(r.Context(), wk.ID, req.Notes)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (s *Server) handleListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := shift.Filter{WorkerID: q.Get("worker_id")}

	if v := q.Get("from"); v != "" {
		from, err := s.services.Shifts.ParseDay(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		day, err := s.services.Shifts.ParseDay(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		// Inclusive of the whole day.
		before := day.AddDate(0, 0, 1)
		filter.Before = &before
	}

	shifts, err := s.services.Shifts.List(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shifts)
}

func (s *Server) handleTimesheetExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sheet, err := s.services.Shifts.Timesheet(r.Context(), shift.TimesheetRequest{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		WorkerID:  q.Get("worker_id"),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	switch strings.ToLower(q.Get("format")) {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", attachment(sheet.Filename("csv")))
		w.WriteHeader(http.StatusOK)
		if err := sheet.WriteCSV(w); err != nil && s.logger != nil {
			s.logger.Error("writing timesheet csv", "error", err)
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", attachment(sheet.Filename("xlsx")))
		w.WriteHeader(http.StatusOK)
		if err := sheet.WriteXLSX(w); err != nil && s.logger != nil {
			s.logger.Error("writing timesheet xlsx", "error", err)
		}
	default:
		s.fail(w, r, fmt.Errorf("%w: format must be csv or xlsx", ErrBadRequest))
	}
}

func attachment(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}
