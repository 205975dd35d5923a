package shift

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/repository"
)

const listLimit = 100

// Service handles clock-in, clock-out and timesheets.
type Service struct {
	repo       Repository
	logs       LogReader
	activities activity.Recorder
	logger     *slog.Logger
	loc        *time.Location
	now        func() time.Time
}

// NewService creates a new shift service. Dates in filters and exports are
// interpreted in loc; nil means time.Local.
func NewService(repo Repository, logs LogReader, activities activity.Recorder, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		repo:       repo,
		logs:       logs,
		activities: activities,
		logger:     logger,
		loc:        loc,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Location is the zone used for day boundaries.
func (s *Service) Location() *time.Location {
	return s.loc
}

// ClockIn opens a shift for the worker.
func (s *Service) ClockIn(ctx context.Context, workerID string) (*Shift, error) {
	if _, err := s.repo.GetActive(ctx, workerID); err == nil {
		return nil, ErrAlreadyClockedIn
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("checking active shift: %w", err)
	}

	now := s.now()
	sh := &Shift{
		ID:        uuid.NewString(),
		WorkerID:  workerID,
		Status:    StatusActive,
		StartedAt: now,
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, sh); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAlreadyClockedIn
		}
		return nil, fmt.Errorf("creating shift: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("clocked in", "worker_id", workerID, "shift_id", sh.ID)
	}
	s.record(ctx, activity.TypeClockIn, workerID, "clocked in")
	return sh, nil
}

// ClockOut closes the worker's active shift, attaching notes when given.
func (s *Service) ClockOut(ctx context.Context, workerID, notes string) (*Shift, error) {
	sh, err := s.repo.GetActive(ctx, workerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotClockedIn
		}
		return nil, fmt.Errorf("getting active shift: %w", err)
	}

	now := s.now()
	sh.Status = StatusCompleted
	sh.EndedAt = &now
	if notes = strings.TrimSpace(notes); notes != "" {
		sh.Notes = notes
	}
	hours := HoursBetween(sh.StartedAt, now)
	sh.Hours = &hours

	if err := s.repo.Update(ctx, sh); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotClockedIn
		}
		return nil, fmt.Errorf("closing shift: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("clocked out", "worker_id", workerID, "shift_id", sh.ID, "hours", hours.StringFixed(2))
	}
	s.record(ctx, activity.TypeClockOut, workerID, fmt.Sprintf("clocked out after %s h", hours.StringFixed(2)))
	return sh, nil
}

// Current returns the worker's open shift and every shift started today.
func (s *Service) Current(ctx context.Context, workerID string) (*Current, error) {
	cur := &Current{Today: []Shift{}}

	active, err := s.repo.GetActive(ctx, workerID)
	switch {
	case err == nil:
		cur.Active = active
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("getting active shift: %w", err)
	}

	from := StartOfDay(s.now(), s.loc)
	today, err := s.repo.List(ctx, Filter{WorkerID: workerID, From: &from})
	if err != nil {
		return nil, fmt.Errorf("listing today's shifts: %w", err)
	}
	cur.Today = append(cur.Today, today...)
	return cur, nil
}

// List returns up to 100 shifts, newest first, each with hours worked.
// Open shifts count hours up to now.
func (s *Service) List(ctx context.Context, filter Filter) ([]Shift, error) {
	filter.Limit = listLimit
	shifts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing shifts: %w", err)
	}

	now := s.now()
	for i := range shifts {
		hours := HoursBetween(shifts[i].StartedAt, shifts[i].End(now))
		shifts[i].Hours = &hours
	}
	return shifts, nil
}

// ParseDay parses a YYYY-MM-DD date at local midnight.
func (s *Service) ParseDay(value string) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, value)
	}
	return day, nil
}

func (s *Service) record(ctx context.Context, typ activity.Type, workerID, summary string) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, &activity.Entry{
		Type:      typ,
		WorkerID:  &workerID,
		Summary:   summary,
		CreatedAt: s.now(),
	})
}
