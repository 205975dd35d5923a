package worker

import (
	"context"

	"github.com/rpggio/batchflow/internal/domain/batch"
)

// Repository provides persistence for workers.
type Repository interface {
	Create(ctx context.Context, w *Worker) error
	Get(ctx context.Context, id string) (*Worker, error)
	GetByPIN(ctx context.Context, pin string) (*Worker, error)
	List(ctx context.Context) ([]Worker, error)
	Update(ctx context.Context, w *Worker) error
	Delete(ctx context.Context, id string) error
}

// LogReader lists progress logs for activity summaries.
type LogReader interface {
	Logs(ctx context.Context, filter batch.LogFilter) ([]batch.LogEntry, error)
}

// PINSource yields candidate PINs.
type PINSource func() string
