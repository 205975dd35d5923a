package worker

import "time"

// Role controls what a worker may do.
type Role string

const (
	RoleWorker Role = "WORKER"
	RoleOwner  Role = "OWNER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleWorker || r == RoleOwner
}

// Worker is a person who logs in with a PIN.
type Worker struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PIN       string    `json:"pin,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// IsOwner reports whether the worker has the OWNER role.
func (w *Worker) IsOwner() bool {
	return w != nil && w.Role == RoleOwner
}

// Public strips the PIN.
func (w Worker) Public() Worker {
	w.PIN = ""
	return w
}

// DailyActivity summarizes one worker's progress logs for a day.
type DailyActivity struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	TodayLogs  int      `json:"today_logs"`
	TodayUnits int      `json:"today_units"`
	Batches    []string `json:"batches"`
}
