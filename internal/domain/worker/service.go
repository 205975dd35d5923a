package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/repository"
)

// Service handles worker management and PIN authentication.
type Service struct {
	repo       Repository
	logs       LogReader
	activities activity.Recorder
	logger     *slog.Logger
	pins       PINSource
	now        func() time.Time
}

// NewService creates a new worker service. logs and activities may be nil.
func NewService(repo Repository, logs LogReader, activities activity.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		logs:       logs,
		activities: activities,
		logger:     logger,
		pins:       RandomPIN,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithPINSource replaces the PIN generator.
func (s *Service) WithPINSource(src PINSource) *Service {
	s.pins = src
	return s
}

// CreateRequest describes a new worker.
type CreateRequest struct {
	Name string
	Role Role
}

// UpdateRequest is a partial worker edit.
type UpdateRequest struct {
	Name *string
	Role *Role
}

// Create stores a worker under a freshly generated unique PIN.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Worker, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || req.Role == "" {
		return nil, fmt.Errorf("%w: name and role are required", ErrInvalidInput)
	}
	if !req.Role.Valid() {
		return nil, ErrInvalidRole
	}

	w := &Worker{
		ID:        uuid.NewString(),
		Name:      name,
		Role:      req.Role,
		CreatedAt: s.now(),
	}

	for attempt := 0; attempt < pinAttempts; attempt++ {
		pin := s.pins()
		if _, err := s.repo.GetByPIN(ctx, pin); err == nil {
			continue
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("checking PIN: %w", err)
		}

		w.PIN = pin
		err := s.repo.Create(ctx, w)
		if errors.Is(err, repository.ErrDuplicate) {
			// Taken between the check and the insert.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating worker: %w", err)
		}

		if s.logger != nil {
			s.logger.Info("worker created", "worker_id", w.ID, "role", w.Role)
		}
		s.record(ctx, activity.TypeWorkerCreated, w.ID, fmt.Sprintf("added %s %q", strings.ToLower(string(w.Role)), w.Name))
		return w, nil
	}

	return nil, ErrPINExhausted
}

// Get fetches a worker by ID.
func (s *Service) Get(ctx context.Context, id string) (*Worker, error) {
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("getting worker: %w", err)
	}
	return w, nil
}

// List returns all workers ordered by name, PINs included.
func (s *Service) List(ctx context.Context) ([]Worker, error) {
	return s.repo.List(ctx)
}

// Update renames a worker or changes their role.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Worker, error) {
	w, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			w.Name = name
		}
	}
	if req.Role != nil && *req.Role != "" {
		if !req.Role.Valid() {
			return nil, ErrInvalidRole
		}
		w.Role = *req.Role
	}

	if err := s.repo.Update(ctx, w); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("updating worker: %w", err)
	}

	s.record(ctx, activity.TypeWorkerUpdated, w.ID, fmt.Sprintf("updated worker %q", w.Name))
	return w, nil
}

// Delete removes a worker who has no logs or shifts.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrWorkerNotFound
		case errors.Is(err, repository.ErrForeignKeyViolation):
			return ErrHasHistory
		}
		return fmt.Errorf("deleting worker: %w", err)
	}

	s.record(ctx, activity.TypeWorkerDeleted, "", fmt.Sprintf("deleted worker %s", id))
	return nil
}

// Authenticate resolves a PIN to its worker and records the login.
func (s *Service) Authenticate(ctx context.Context, pin string) (*Worker, error) {
	w, err := s.Identify(ctx, pin)
	if err != nil {
		return nil, err
	}
	s.record(ctx, activity.TypeLogin, w.ID, fmt.Sprintf("%s logged in", w.Name))
	return w, nil
}

// Identify resolves a PIN without recording a login. Tool clients send the
// PIN on every request.
func (s *Service) Identify(ctx context.Context, pin string) (*Worker, error) {
	if !ValidPIN(pin) {
		return nil, ErrInvalidPINFormat
	}

	w, err := s.repo.GetByPIN(ctx, pin)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidPIN
		}
		return nil, fmt.Errorf("looking up PIN: %w", err)
	}
	return w, nil
}

// TodayActivity summarizes logs created since the given instant for every
// WORKER-role worker, ordered by name.
func (s *Service) TodayActivity(ctx context.Context, since time.Time) ([]DailyActivity, error) {
	workers, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing workers: %w", err)
	}

	var entries []batch.LogEntry
	if s.logs != nil {
		entries, err = s.logs.Logs(ctx, batch.LogFilter{Since: &since})
		if err != nil {
			return nil, fmt.Errorf("listing logs: %w", err)
		}
	}

	byWorker := make(map[string][]batch.LogEntry)
	for _, e := range entries {
		byWorker[e.WorkerID] = append(byWorker[e.WorkerID], e)
	}

	summary := make([]DailyActivity, 0, len(workers))
	for _, w := range workers {
		if w.Role != RoleWorker {
			continue
		}
		day := DailyActivity{ID: w.ID, Name: w.Name, Batches: []string{}}
		seen := make(map[string]bool)
		for _, e := range byWorker[w.ID] {
			day.TodayLogs++
			day.TodayUnits += e.Quantity
			if !seen[e.BatchName] {
				seen[e.BatchName] = true
				day.Batches = append(day.Batches, e.BatchName)
			}
		}
		summary = append(summary, day)
	}
	return summary, nil
}

func (s *Service) record(ctx context.Context, typ activity.Type, workerID, summary string) {
	if s.activities == nil {
		return
	}
	entry := &activity.Entry{Type: typ, Summary: summary, CreatedAt: s.now()}
	if workerID != "" {
		entry.WorkerID = &workerID
	}
	_ = s.activities.Log(ctx, entry)
}
