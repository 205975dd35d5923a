package batch

import (
	"context"
	"time"

	"github.com/rpggio/batchflow/internal/domain/recipe"
)

// Repository provides persistence for batches, their steps and the
// progress ledger.
type Repository interface {
	// Create writes the batch, its steps and assignments atomically.
	Create(ctx context.Context, b *Batch) error
	// Get returns a batch with steps and assignments.
	Get(ctx context.Context, id string) (*Batch, error)
	// GetDetail also loads logs, step notes and material previews.
	GetDetail(ctx context.Context, id string) (*Batch, error)
	List(ctx context.Context, opts ListOptions) ([]Batch, error)
	// Update writes editable batch fields and step targets, never status or
	// completed date. Assignments are replaced only when replaceAssignments
	// is set.
	Update(ctx context.Context, b *Batch, replaceAssignments bool) error
	// SetStatus writes the lifecycle label and completion date.
	SetStatus(ctx context.Context, id string, status Status, completedDate *time.Time) error
	// ApplyProgress persists a plan. It returns repository.ErrConflict when
	// the step's completed quantity or its ceiling no longer matches the
	// plan, and clears plan.Batch when completion did not happen.
	ApplyProgress(ctx context.Context, plan *ProgressPlan) error
	GetLog(ctx context.Context, id string) (*LogEntry, error)
	// DeleteLog removes a log and recomputes its step from the remaining
	// logs in the same transaction.
	DeleteLog(ctx context.Context, id string) (*Batch, *RecomputePlan, error)
	ListLogs(ctx context.Context, filter LogFilter) ([]LogEntry, error)
}

// RecipeReader loads the recipe a batch is materialized from.
type RecipeReader interface {
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
}

// Notifier receives batch change events.
type Notifier interface {
	Publish(ev Event)
}

// ListOptions filters batch listings.
type ListOptions struct {
	Statuses []Status
	// ByCompletion orders by completed date instead of start date.
	ByCompletion bool
	Limit        int
}

// LogFilter filters progress log listings. Zero values match everything.
type LogFilter struct {
	WorkerID string
	BatchID  string
	Since    *time.Time
	Until    *time.Time
	Limit    int
}
