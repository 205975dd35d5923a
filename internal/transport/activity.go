package transport

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rpggio/batchflow/internal/domain/activity"
)

const recentLogLimit = 50

func (s *Server) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.services.Batches.RecentLogs(r.Context(), recentLogLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleActivityEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var opts activity.ListOptions

	if v := q.Get("batch_id"); v != "" {
		opts.BatchID = &v
	}
	if v := q.Get("worker_id"); v != "" {
		opts.WorkerID = &v
	}
	if v := q.Get("type"); v != "" {
		typ := activity.Type(v)
		opts.Type = &typ
	}

	var err error
	if opts.Limit, err = intParam(q.Get("limit")); err != nil {
		s.fail(w, r, err)
		return
	}
	if opts.Offset, err = intParam(q.Get("offset")); err != nil {
		s.fail(w, r, err)
		return
	}

	entries, err := s.services.Activity.Recent(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func intParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a non-negative integer", ErrBadRequest, value)
	}
	return n, nil
}
