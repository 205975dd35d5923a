package mocks

import (
	"context"
	"time"

	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/stretchr/testify/mock"
)

// RecipeRepository is a mock for recipe.Repository.
type RecipeRepository struct {
	mock.Mock
}

func (m *RecipeRepository) Create(ctx context.Context, rec *recipe.Recipe) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RecipeRepository) Get(ctx context.Context, id string) (*recipe.Recipe, error) {
	args := m.Called(ctx, id)
	if rec, ok := args.Get(0).(*recipe.Recipe); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecipeRepository) List(ctx context.Context) ([]recipe.Recipe, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]recipe.Recipe); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RecipeRepository) Replace(ctx context.Context, rec *recipe.Recipe) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *RecipeRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// BatchRepository is a mock for batch.Repository.
type BatchRepository struct {
	mock.Mock
}

func (m *BatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *BatchRepository) Get(ctx context.Context, id string) (*batch.Batch, error) {
	args := m.Called(ctx, id)
	if b, ok := args.Get(0).(*batch.Batch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BatchRepository) GetDetail(ctx context.Context, id string) (*batch.Batch, error) {
	args := m.Called(ctx, id)
	if b, ok := args.Get(0).(*batch.Batch); ok {
		return b, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BatchRepository) List(ctx context.Context, opts batch.ListOptions) ([]batch.Batch, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]batch.Batch); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BatchRepository) Update(ctx context.Context, b *batch.Batch, replaceAssignments bool) error {
	args := m.Called(ctx, b, replaceAssignments)
	return args.Error(0)
}

func (m *BatchRepository) SetStatus(ctx context.Context, id string, status batch.Status, completedDate *time.Time) error {
	args := m.Called(ctx, id, status, completedDate)
	return args.Error(0)
}

func (m *BatchRepository) ApplyProgress(ctx context.Context, plan *batch.ProgressPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *BatchRepository) GetLog(ctx context.Context, id string) (*batch.LogEntry, error) {
	args := m.Called(ctx, id)
	if entry, ok := args.Get(0).(*batch.LogEntry); ok {
		return entry, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *BatchRepository) DeleteLog(ctx context.Context, id string) (*batch.Batch, *batch.RecomputePlan, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*batch.Batch)
	plan, _ := args.Get(1).(*batch.RecomputePlan)
	return b, plan, args.Error(2)
}

func (m *BatchRepository) ListLogs(ctx context.Context, filter batch.LogFilter) ([]batch.LogEntry, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]batch.LogEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// LogReader is a mock for the worker and shift log readers.
type LogReader struct {
	mock.Mock
}

func (m *LogReader) Logs(ctx context.Context, filter batch.LogFilter) ([]batch.LogEntry, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]batch.LogEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// Notifier is a mock for batch.Notifier.
type Notifier struct {
	mock.Mock
}

func (m *Notifier) Publish(ev batch.Event) {
	m.Called(ev)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// WorkerRepository is a mock for worker.Repository.
type WorkerRepository struct {
	mock.Mock
}

func (m *WorkerRepository) Create(ctx context.Context, w *worker.Worker) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *WorkerRepository) Get(ctx context.Context, id string) (*worker.Worker, error) {
	args := m.Called(ctx, id)
	if w, ok := args.Get(0).(*worker.Worker); ok {
		return w, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkerRepository) GetByPIN(ctx context.Context, pin string) (*worker.Worker, error) {
	args := m.Called(ctx, pin)
	if w, ok := args.Get(0).(*worker.Worker); ok {
		return w, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkerRepository) List(ctx context.Context) ([]worker.Worker, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]worker.Worker); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *WorkerRepository) Update(ctx context.Context, w *worker.Worker) error {
	args := m.Called(ctx, w)
	return args.Error(0)
}

func (m *WorkerRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ShiftRepository is a mock for shift.Repository.
type ShiftRepository struct {
	mock.Mock
}

func (m *ShiftRepository) Create(ctx context.Context, s *shift.Shift) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *ShiftRepository) GetActive(ctx context.Context, workerID string) (*shift.Shift, error) {
	args := m.Called(ctx, workerID)
	if s, ok := args.Get(0).(*shift.Shift); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ShiftRepository) Update(ctx context.Context, s *shift.Shift) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *ShiftRepository) List(ctx context.Context, filter shift.Filter) ([]shift.Shift, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]shift.Shift); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
