package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/loginguard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOwner  = &worker.Worker{ID: "owner-1", Name: "Olive", PIN: "1111", Role: worker.RoleOwner}
	testWorker = &worker.Worker{ID: "worker-1", Name: "Wes", PIN: "2222", Role: worker.RoleWorker}
)

type testAPI struct {
	handler  http.Handler
	recipes  *fakeRecipes
	batches  *fakeBatches
	workers  *fakeWorkers
	shifts   *fakeShifts
	activity *fakeActivity
}

func newTestAPI(t *testing.T, guard loginguard.Guard) *testAPI {
	t.Helper()
	api := &testAPI{
		recipes:  &fakeRecipes{},
		batches:  &fakeBatches{},
		workers:  newFakeWorkers(testOwner, testWorker),
		shifts:   &fakeShifts{},
		activity: &fakeActivity{},
	}
	api.handler = NewServer(Config{
		Services: Services{
			Recipes:  api.recipes,
			Batches:  api.batches,
			Workers:  api.workers,
			Shifts:   api.shifts,
			Activity: api.activity,
		},
		Guard:    guard,
		Location: time.UTC,
	})
	return api
}

// do sends a request as the given worker; nil sends it anonymously.
func (a *testAPI) do(t *testing.T, as *worker.Worker, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if as != nil {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: as.ID})
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, nil, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestGuards(t *testing.T) {
	api := newTestAPI(t, nil)

	tests := []struct {
		name   string
		as     *worker.Worker
		method string
		path   string
		want   int
	}{
		{"anonymous session route", nil, http.MethodGet, "/api/batches", http.StatusUnauthorized},
		{"anonymous owner route", nil, http.MethodGet, "/api/workers", http.StatusUnauthorized},
		{"worker session route", testWorker, http.MethodGet, "/api/batches", http.StatusOK},
		{"worker owner route", testWorker, http.MethodGet, "/api/workers", http.StatusForbidden},
		{"worker completed batches", testWorker, http.MethodGet, "/api/batches/completed", http.StatusForbidden},
		{"owner owner route", testOwner, http.MethodGet, "/api/workers", http.StatusOK},
		{"owner completed batches", testOwner, http.MethodGet, "/api/batches/completed", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, tt.as, tt.method, tt.path, nil)
			require.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestUnknownSessionCookieIsCleared(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, &worker.Worker{ID: "ghost"}, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookie, cookies[0].Name)
	require.Negative(t, cookies[0].MaxAge)
}

func TestLogin(t *testing.T) {
	api := newTestAPI(t, nil)

	t.Run("success sets cookie", func(t *testing.T) {
		rec := api.do(t, nil, http.MethodPost, "/api/auth/login", map[string]string{"pin": "2222"})
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Success bool          `json:"success"`
			Worker  worker.Worker `json:"worker"`
		}
		decodeBody(t, rec, &body)
		require.True(t, body.Success)
		require.Equal(t, testWorker.ID, body.Worker.ID)
		require.Empty(t, body.Worker.PIN)

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		cookie := cookies[0]
		require.Equal(t, testWorker.ID, cookie.Value)
		require.True(t, cookie.HttpOnly)
		require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
		require.Equal(t, 7*24*60*60, cookie.MaxAge)
		require.False(t, cookie.Secure)
	})

	t.Run("bad format", func(t *testing.T) {
		rec := api.do(t, nil, http.MethodPost, "/api/auth/login", map[string]string{"pin": "12"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong pin", func(t *testing.T) {
		rec := api.do(t, nil, http.MethodPost, "/api/auth/login", map[string]string{"pin": "9999"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := api.do(t, nil, http.MethodPost, "/api/auth/login", "{")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type countingGuard struct {
	max      int
	failures map[string]int
}

func (g *countingGuard) Check(_ context.Context, client string) error {
	if g.failures[client] >= g.max {
		return loginguard.ErrThrottled
	}
	return nil
}

func (g *countingGuard) Failed(_ context.Context, client string) { g.failures[client]++ }

func (g *countingGuard) Succeeded(_ context.Context, client string) { delete(g.failures, client) }

func TestLoginThrottled(t *testing.T) {
	guard := &countingGuard{max: 2, failures: map[string]int{}}
	api := newTestAPI(t, guard)

	for i := 0; i < 2; i++ {
		rec := api.do(t, nil, http.MethodPost, "/api/auth/login", map[string]string{"pin": "9999"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	// Even the right PIN is refused once throttled.
	rec := api.do(t, nil, http.MethodPost, "/api/auth/login", map[string]string{"pin": "2222"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, 2, guard.failures["192.0.2.1"])
}

func TestLogout(t *testing.T) {
	api := newTestAPI(t, nil)
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := api.do(t, testWorker, method, "/api/auth/logout", nil)
		require.Equal(t, http.StatusSeeOther, rec.Code)
		require.Equal(t, "/", rec.Header().Get("Location"))
		require.Negative(t, rec.Result().Cookies()[0].MaxAge)
	}
}

func TestMe(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testOwner, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var me worker.Worker
	decodeBody(t, rec, &me)
	require.Equal(t, testOwner.ID, me.ID)
	require.Empty(t, me.PIN)
}

func TestCreateRecipe(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testOwner, http.MethodPost, "/api/recipes", `{
		"name": "Gummies",
		"base_unit": "units",
		"units": [{"name": "cases", "ratio": 20}],
		"steps": [
			{"name": "Bag", "type": "COUNT", "materials": [{"name": "Mylar bag", "quantity_per_unit": 1, "unit": "ea"}]},
			{"name": "Case", "unit": "cases", "notes": "Tape twice"}
		]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	req := api.recipes.created
	require.NotNil(t, req)
	require.Equal(t, "Gummies", req.Name)
	require.Equal(t, []recipe.UnitInput{{Name: "cases", Ratio: 20}}, req.Units)
	require.Len(t, req.Steps, 2)
	require.Equal(t, []recipe.MaterialInput{{Name: "Mylar bag", QuantityPerUnit: 1, Unit: "ea"}}, req.Steps[0].Materials)
	require.Equal(t, "cases", req.Steps[1].Unit)
	require.Equal(t, "Tape twice", req.Steps[1].Notes)
}

func TestDeleteRecipeInUse(t *testing.T) {
	api := newTestAPI(t, nil)
	api.recipes.err = fmt.Errorf("%w: 2 batches", recipe.ErrInUse)

	rec := api.do(t, testOwner, http.MethodDelete, "/api/recipes/rec-1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	api.recipes.err = nil
	rec = api.do(t, testOwner, http.MethodDelete, "/api/recipes/rec-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestCreateBatchDates(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testOwner, http.MethodPost, "/api/batches", map[string]any{
		"recipe_id":       "rec-1",
		"name":            "March run",
		"target_quantity": 100,
		"start_date":      "2025-03-14T09:30:00Z",
		"due_date":        "2025-03-20",
		"worker_ids":      []string{"worker-1"},
		"lot_number":      "LOT-7",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req := api.batches.create
	require.Equal(t, 100, req.TargetQuantity)
	require.Equal(t, time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC), *req.StartDate)
	require.Equal(t, time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), *req.DueDate)
	require.Equal(t, []string{"worker-1"}, req.WorkerIDs)
	require.Equal(t, "LOT-7", *req.Compliance.LotNumber)

	rec = api.do(t, testOwner, http.MethodPost, "/api/batches", map[string]any{"due_date": "next week"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchBatch(t *testing.T) {
	t.Run("status only", func(t *testing.T) {
		api := newTestAPI(t, nil)
		rec := api.do(t, testOwner, http.MethodPatch, "/api/batches/batch-1", map[string]any{"status": "CANCELLED"})
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, batch.StatusCancelled, api.batches.status)
		require.Nil(t, api.batches.update)
	})

	t.Run("invalid status", func(t *testing.T) {
		api := newTestAPI(t, nil)
		api.batches.err = batch.ErrInvalidStatus
		rec := api.do(t, testOwner, http.MethodPatch, "/api/batches/batch-1", map[string]any{"status": "PAUSED"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("full edit clears due date", func(t *testing.T) {
		api := newTestAPI(t, nil)
		rec := api.do(t, testOwner, http.MethodPatch, "/api/batches/batch-1",
			`{"name": "Renamed", "status": "ACTIVE", "target_quantity": 40, "due_date": null, "worker_ids": []}`)
		require.Equal(t, http.StatusOK, rec.Code)

		req := api.batches.update
		require.NotNil(t, req)
		require.Equal(t, "Renamed", *req.Name)
		require.Equal(t, 40, *req.TargetQuantity)
		require.True(t, req.SetDueDate)
		require.Nil(t, req.DueDate)
		require.NotNil(t, req.WorkerIDs)
		require.Empty(t, *req.WorkerIDs)
		require.Empty(t, api.batches.status)
	})

	t.Run("absent due date untouched", func(t *testing.T) {
		api := newTestAPI(t, nil)
		rec := api.do(t, testOwner, http.MethodPatch, "/api/batches/batch-1", `{"name": "Renamed"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		require.False(t, api.batches.update.SetDueDate)
		require.Nil(t, api.batches.update.WorkerIDs)
	})
}

func TestLogProgress(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testWorker, http.MethodPost, "/api/batches/batch-1/steps/step-2/log",
		map[string]any{"quantity": 4, "note": "short a tray"})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := api.batches.logReq
	require.Equal(t, batch.LogRequest{
		BatchID:    "batch-1",
		StepID:     "step-2",
		WorkerID:   testWorker.ID,
		WorkerName: testWorker.Name,
		Quantity:   4,
		Note:       "short a tray",
	}, *req)
}

func TestLogProgressErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"locked", batch.ErrStepLocked, http.StatusBadRequest},
		{"quantity", batch.ErrInvalidQuantity, http.StatusBadRequest},
		{"cancelled", batch.ErrBatchCancelled, http.StatusBadRequest},
		{"missing step", batch.ErrStepNotFound, http.StatusNotFound},
		{"missing batch", batch.ErrBatchNotFound, http.StatusNotFound},
		{"conflict", batch.ErrConflict, http.StatusConflict},
		{"unexpected", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, nil)
			api.batches.err = tt.err
			rec := api.do(t, testWorker, http.MethodPost, "/api/batches/b/steps/s/log", map[string]int{"quantity": 1})
			require.Equal(t, tt.want, rec.Code)

			var body ErrorResponse
			decodeBody(t, rec, &body)
			require.NotEmpty(t, body.Error)
			if tt.want == http.StatusInternalServerError {
				require.NotContains(t, body.Error, "disk full")
			}
		})
	}
}

func TestLogProgressCeilingBody(t *testing.T) {
	api := newTestAPI(t, nil)
	api.batches.err = &batch.CeilingError{Current: 8, Ceiling: 10, Attempted: 5}

	rec := api.do(t, testWorker, http.MethodPost, "/api/batches/b/steps/s/log", map[string]int{"quantity": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "Cannot exceed ceiling of 10. Current: 8, Attempting to add: 5", body.Error)
	assert.Equal(t, 8, *body.Current)
	assert.Equal(t, 10, *body.Ceiling)
	assert.Equal(t, 5, *body.Attempted)
}

func TestDeleteLog(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testWorker, http.MethodDelete, "/api/logs/log-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, batch.DeleteLogRequest{LogID: "log-1", ActorID: testWorker.ID}, *api.batches.deleteReq)

	rec = api.do(t, testOwner, http.MethodDelete, "/api/logs/log-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, api.batches.deleteReq.ActorIsOwner)

	api.batches.err = batch.ErrNotAuthorized
	rec = api.do(t, testWorker, http.MethodDelete, "/api/logs/log-1", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWorkers(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, testOwner, http.MethodPost, "/api/workers", map[string]string{"name": "Nia", "role": "WORKER"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created worker.Worker
	decodeBody(t, rec, &created)
	require.Equal(t, "1234", created.PIN)

	rec = api.do(t, testOwner, http.MethodPost, "/api/workers", map[string]string{"name": "Nia", "role": "BOSS"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, testOwner, http.MethodPatch, "/api/workers/worker-1", map[string]string{"role": "OWNER"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, api.workers.update.Name)
	require.Equal(t, worker.RoleOwner, *api.workers.update.Role)

	rec = api.do(t, testOwner, http.MethodDelete, "/api/workers/worker-1", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWorkerActivityUsesStartOfDay(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testOwner, http.MethodGet, "/api/workers/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	since := api.workers.since
	require.Zero(t, since.Hour())
	require.Zero(t, since.Minute())
	require.WithinDuration(t, time.Now(), since, 24*time.Hour)
}

func TestShifts(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, testWorker, http.MethodPost, "/api/shifts", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, testWorker, http.MethodPatch, "/api/shifts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, api.shifts.notes)

	rec = api.do(t, testWorker, http.MethodPatch, "/api/shifts", map[string]string{"notes": "left early"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "left early", api.shifts.notes)

	api.shifts.err = shift.ErrNotClockedIn
	rec = api.do(t, testWorker, http.MethodPatch, "/api/shifts", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, testWorker, http.MethodGet, "/api/shifts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestListShiftsFilter(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testOwner, http.MethodGet, "/api/shifts/all?worker_id=worker-1&from=2025-03-01&to=2025-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	filter := api.shifts.filter
	require.Equal(t, "worker-1", filter.WorkerID)
	require.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), *filter.From)
	require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *filter.Before)

	rec = api.do(t, testOwner, http.MethodGet, "/api/shifts/all?from=March", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimesheetExport(t *testing.T) {
	api := newTestAPI(t, nil)

	rec := api.do(t, testOwner, http.MethodGet, "/api/timesheet/export?start_date=2025-03-01&worker_id=worker-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="timesheet-2025-03-01-to-all.csv"`, rec.Header().Get("Content-Disposition"))
	require.Equal(t, shift.TimesheetRequest{StartDate: "2025-03-01", WorkerID: "worker-1"}, api.shifts.request)

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "Worker,Date,Clock In,Clock Out,Hours,Units Produced,Log Entries,Notes", lines[0])
	require.Equal(t, `"Ana ""AJ""","2025-03-14","09:00","17:00","8.00","120","3",""`, lines[1])

	rec = api.do(t, testOwner, http.MethodGet, "/api/timesheet/export?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, `attachment; filename="timesheet-all-to-all.xlsx"`, rec.Header().Get("Content-Disposition"))
	require.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = api.do(t, testOwner, http.MethodGet, "/api/timesheet/export?format=pdf", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivityEventsFilters(t *testing.T) {
	api := newTestAPI(t, nil)
	rec := api.do(t, testOwner, http.MethodGet, "/api/activity/events?batch_id=b1&type=progress_logged&limit=10&offset=20", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	opts := api.activity.opts
	require.Equal(t, "b1", *opts.BatchID)
	require.Nil(t, opts.WorkerID)
	require.Equal(t, activity.TypeProgressLogged, *opts.Type)
	require.Equal(t, 10, opts.Limit)
	require.Equal(t, 20, opts.Offset)

	rec = api.do(t, testOwner, http.MethodGet, "/api/activity/events?limit=-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, testOwner, http.MethodGet, "/api/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLiveAndMCPMounts(t *testing.T) {
	mounted := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := NewServer(Config{
		Services: Services{Workers: newFakeWorkers(testWorker)},
		Live:     mounted,
		MCP:      mounted,
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/live", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/live", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: testWorker.ID})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
}
