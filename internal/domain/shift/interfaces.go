package shift

import (
	"context"

	"github.com/rpggio/batchflow/internal/domain/batch"
)

// Repository provides persistence for shifts.
type Repository interface {
	// Create returns repository.ErrDuplicate when the worker already has
	// an ACTIVE shift.
	Create(ctx context.Context, s *Shift) error
	GetActive(ctx context.Context, workerID string) (*Shift, error)
	Update(ctx context.Context, s *Shift) error
	// List returns shifts newest first, with worker names.
	List(ctx context.Context, filter Filter) ([]Shift, error)
}

// LogReader lists progress logs for timesheet attribution.
type LogReader interface {
	Logs(ctx context.Context, filter batch.LogFilter) ([]batch.LogEntry, error)
}
