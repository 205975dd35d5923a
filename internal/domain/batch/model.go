package batch

import (
	"time"

	"github.com/rpggio/batchflow/internal/domain/recipe"
)

// Status is the lifecycle label of a batch.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is one of the accepted batch statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// StepStatus is the waterfall state of a batch step.
type StepStatus string

const (
	StepLocked     StepStatus = "LOCKED"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
)

// Batch is one production run materialized from a recipe.
type Batch struct {
	ID             string       `json:"id"`
	RecipeID       string       `json:"recipe_id"`
	RecipeName     string       `json:"recipe_name,omitempty"`
	Name           string       `json:"name"`
	TargetQuantity int          `json:"target_quantity"`
	BaseUnit       string       `json:"base_unit"`
	Status         Status       `json:"status"`
	StartDate      time.Time    `json:"start_date"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	CompletedDate  *time.Time   `json:"completed_date,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	Compliance     Compliance   `json:"compliance"`
	Steps          []Step       `json:"steps"`
	Assignments    []Assignment `json:"assignments,omitempty"`
}

// Compliance carries free-text METRC tracking fields.
type Compliance struct {
	MetrcBatchID *string `json:"metrc_batch_id,omitempty"`
	LotNumber    *string `json:"lot_number,omitempty"`
	Strain       *string `json:"strain,omitempty"`
	PackageTag   *string `json:"package_tag,omitempty"`
}

// Step is a recipe step snapshotted into a batch. UnitLabel and UnitRatio
// are copied at creation so later recipe edits don't reach running batches.
type Step struct {
	ID                string          `json:"id"`
	BatchID           string          `json:"batch_id"`
	RecipeStepID      *string         `json:"recipe_step_id,omitempty"`
	Name              string          `json:"name"`
	Order             int             `json:"order"`
	Type              recipe.StepType `json:"type"`
	UnitLabel         string          `json:"unit_label"`
	UnitRatio         int             `json:"unit_ratio"`
	TargetQuantity    int             `json:"target_quantity"`
	CompletedQuantity int             `json:"completed_quantity"`
	Status            StepStatus      `json:"status"`
	Notes             string          `json:"notes,omitempty"`
	Materials         []MaterialNeed  `json:"materials,omitempty"`
	Logs              []ProgressLog   `json:"logs,omitempty"`
}

// Done reports whether the step has reached its target.
func (s Step) Done() bool {
	return s.CompletedQuantity >= s.TargetQuantity
}

// MaterialNeed previews how much of a material a step's target consumes.
type MaterialNeed struct {
	Name            string  `json:"name"`
	Unit            string  `json:"unit"`
	QuantityPerUnit float64 `json:"quantity_per_unit"`
	Total           float64 `json:"total"`
}

// ProgressLog is one append-only progress entry.
type ProgressLog struct {
	ID          string    `json:"id"`
	BatchStepID string    `json:"batch_step_id"`
	WorkerID    string    `json:"worker_id"`
	WorkerName  string    `json:"worker_name,omitempty"`
	Quantity    int       `json:"quantity"`
	Note        string    `json:"note,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// LogEntry is a progress log joined with its step and batch, for feeds and reports.
type LogEntry struct {
	ProgressLog
	BatchID   string `json:"batch_id"`
	BatchName string `json:"batch_name"`
	StepName  string `json:"step_name"`
	UnitLabel string `json:"unit_label"`
}

// Assignment links a worker to a batch.
type Assignment struct {
	WorkerID   string    `json:"worker_id"`
	WorkerName string    `json:"worker_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event is published after a batch changes.
type Event struct {
	Type    string    `json:"type"`
	BatchID string    `json:"batch_id"`
	StepID  string    `json:"step_id,omitempty"`
	At      time.Time `json:"at"`
}

const (
	EventBatchCreated    = "batch.created"
	EventBatchUpdated    = "batch.updated"
	EventProgressLogged  = "progress.logged"
	EventProgressDeleted = "progress.deleted"
)
