package transport

import (
	"context"
	"time"

	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/domain/worker"
)

type fakeRecipes struct {
	created *recipe.SaveRequest
	err     error
}

func (f *fakeRecipes) Create(_ context.Context, req recipe.SaveRequest) (*recipe.Recipe, error) {
	f.created = &req
	if f.err != nil {
		return nil, f.err
	}
	return &recipe.Recipe{ID: "rec-1", Name: req.Name, BaseUnit: req.BaseUnit}, nil
}

func (f *fakeRecipes) Update(_ context.Context, id string, req recipe.SaveRequest) (*recipe.Recipe, error) {
	return &recipe.Recipe{ID: id, Name: req.Name}, f.err
}

func (f *fakeRecipes) Get(_ context.Context, id string) (*recipe.Recipe, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &recipe.Recipe{ID: id}, nil
}

func (f *fakeRecipes) List(context.Context) ([]recipe.Recipe, error) {
	return []recipe.Recipe{}, f.err
}

func (f *fakeRecipes) Delete(context.Context, string) error {
	return f.err
}

type fakeBatches struct {
	logReq    *batch.LogRequest
	deleteReq *batch.DeleteLogRequest
	update    *batch.UpdateRequest
	status    batch.Status
	create    *batch.CreateRequest
	err       error
}

func (f *fakeBatches) Create(_ context.Context, req batch.CreateRequest) (*batch.Batch, error) {
	f.create = &req
	return &batch.Batch{ID: "batch-1", Name: req.Name}, f.err
}

func (f *fakeBatches) Get(_ context.Context, id string) (*batch.Batch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &batch.Batch{ID: id}, nil
}

func (f *fakeBatches) ListActive(context.Context) ([]batch.Batch, error) {
	return []batch.Batch{}, f.err
}

func (f *fakeBatches) ListFinished(context.Context) ([]batch.Batch, error) {
	return []batch.Batch{}, f.err
}

func (f *fakeBatches) Update(_ context.Context, id string, req batch.UpdateRequest) (*batch.Batch, error) {
	f.update = &req
	return &batch.Batch{ID: id}, f.err
}

func (f *fakeBatches) SetStatus(_ context.Context, id string, status batch.Status) (*batch.Batch, error) {
	f.status = status
	return &batch.Batch{ID: id, Status: status}, f.err
}

func (f *fakeBatches) LogProgress(_ context.Context, req batch.LogRequest) (*batch.LogResult, error) {
	f.logReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return &batch.LogResult{Log: batch.ProgressLog{ID: "log-1", Quantity: req.Quantity}}, nil
}

func (f *fakeBatches) DeleteLog(_ context.Context, req batch.DeleteLogRequest) (*batch.DeleteLogResult, error) {
	f.deleteReq = &req
	if f.err != nil {
		return nil, f.err
	}
	return &batch.DeleteLogResult{BatchID: "batch-1", NewTotal: 3}, nil
}

func (f *fakeBatches) RecentLogs(context.Context, int) ([]batch.LogEntry, error) {
	return []batch.LogEntry{}, f.err
}

type fakeWorkers struct {
	byID   map[string]*worker.Worker
	byPIN  map[string]*worker.Worker
	since  time.Time
	update *worker.UpdateRequest
}

func newFakeWorkers(workers ...*worker.Worker) *fakeWorkers {
	f := &fakeWorkers{byID: map[string]*worker.Worker{}, byPIN: map[string]*worker.Worker{}}
	for _, w := range workers {
		f.byID[w.ID] = w
		f.byPIN[w.PIN] = w
	}
	return f
}

func (f *fakeWorkers) Create(_ context.Context, req worker.CreateRequest) (*worker.Worker, error) {
	if !req.Role.Valid() {
		return nil, worker.ErrInvalidRole
	}
	return &worker.Worker{ID: "new", Name: req.Name, Role: req.Role, PIN: "1234"}, nil
}

func (f *fakeWorkers) Get(_ context.Context, id string) (*worker.Worker, error) {
	if w, ok := f.byID[id]; ok {
		return w, nil
	}
	return nil, worker.ErrWorkerNotFound
}

func (f *fakeWorkers) List(context.Context) ([]worker.Worker, error) {
	out := []worker.Worker{}
	for _, w := range f.byID {
		out = append(out, *w)
	}
	return out, nil
}

func (f *fakeWorkers) Update(_ context.Context, id string, req worker.UpdateRequest) (*worker.Worker, error) {
	f.update = &req
	return f.Get(context.Background(), id)
}

func (f *fakeWorkers) Delete(context.Context, string) error {
	return worker.ErrHasHistory
}

func (f *fakeWorkers) Authenticate(_ context.Context, pin string) (*worker.Worker, error) {
	if len(pin) != 4 {
		return nil, worker.ErrInvalidPINFormat
	}
	if w, ok := f.byPIN[pin]; ok {
		return w, nil
	}
	return nil, worker.ErrInvalidPIN
}

func (f *fakeWorkers) TodayActivity(_ context.Context, since time.Time) ([]worker.DailyActivity, error) {
	f.since = since
	return []worker.DailyActivity{}, nil
}

type fakeShifts struct {
	notes   string
	filter  shift.Filter
	request shift.TimesheetRequest
	err     error
}

func (f *fakeShifts) ClockIn(_ context.Context, workerID string) (*shift.Shift, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &shift.Shift{ID: "shift-1", WorkerID: workerID, Status: shift.StatusActive}, nil
}

func (f *fakeShifts) ClockOut(_ context.Context, workerID, notes string) (*shift.Shift, error) {
	f.notes = notes
	if f.err != nil {
		return nil, f.err
	}
	return &shift.Shift{ID: "shift-1", WorkerID: workerID, Status: shift.StatusCompleted, Notes: notes}, nil
}

func (f *fakeShifts) Current(context.Context, string) (*shift.Current, error) {
	return &shift.Current{Today: []shift.Shift{}}, nil
}

func (f *fakeShifts) List(_ context.Context, filter shift.Filter) ([]shift.Shift, error) {
	f.filter = filter
	return []shift.Shift{}, nil
}

func (f *fakeShifts) Timesheet(_ context.Context, req shift.TimesheetRequest) (*shift.Timesheet, error) {
	f.request = req
	return &shift.Timesheet{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Rows: []shift.TimesheetRow{{
			Worker: `Ana "AJ"`, Date: "2025-03-14", ClockIn: "09:00", ClockOut: "17:00",
			Hours: "8.00", UnitsProduced: 120, LogEntries: 3,
		}},
	}, nil
}

func (f *fakeShifts) ParseDay(value string) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, value, time.UTC)
	if err != nil {
		return time.Time{}, shift.ErrInvalidInput
	}
	return day, nil
}

type fakeActivity struct {
	opts activity.ListOptions
}

func (f *fakeActivity) Recent(_ context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	f.opts = opts
	return []activity.Entry{}, nil
}
