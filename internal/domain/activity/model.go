package activity

import "time"

// Type represents the kind of audited action.
type Type string

const (
	TypeRecipeCreated   Type = "recipe_created"
	TypeRecipeUpdated   Type = "recipe_updated"
	TypeRecipeDeleted   Type = "recipe_deleted"
	TypeBatchCreated    Type = "batch_created"
	TypeBatchUpdated    Type = "batch_updated"
	TypeBatchStatus     Type = "batch_status_changed"
	TypeBatchCompleted  Type = "batch_completed"
	TypeProgressLogged  Type = "progress_logged"
	TypeProgressDeleted Type = "progress_deleted"
	TypeWorkerCreated   Type = "worker_created"
	TypeWorkerUpdated   Type = "worker_updated"
	TypeWorkerDeleted   Type = "worker_deleted"
	TypeClockIn         Type = "clock_in"
	TypeClockOut        Type = "clock_out"
	TypeLogin           Type = "login"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID        int64     `json:"id"`
	Type      Type      `json:"type"`
	BatchID   *string   `json:"batch_id,omitempty"`
	WorkerID  *string   `json:"worker_id,omitempty"`
	Summary   string    `json:"summary"`
	Details   string    `json:"details,omitempty"` // JSON string
	CreatedAt time.Time `json:"created_at"`
}

// ListOptions provides filtering options for listing activity.
type ListOptions struct {
	BatchID  *string
	WorkerID *string
	Type     *Type
	Limit    int
	Offset   int
}
