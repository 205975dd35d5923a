package shift

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the state of a shift.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Shift is one clock-in/clock-out span for a worker.
type Shift struct {
	ID         string           `json:"id"`
	WorkerID   string           `json:"worker_id"`
	WorkerName string           `json:"worker_name,omitempty"`
	Status     Status           `json:"status"`
	StartedAt  time.Time        `json:"started_at"`
	EndedAt    *time.Time       `json:"ended_at,omitempty"`
	Notes      string           `json:"notes,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	Hours      *decimal.Decimal `json:"hours,omitempty"`
}

// Open reports whether the shift has not been clocked out.
func (s Shift) Open() bool {
	return s.EndedAt == nil
}

// End returns when the shift ended, or now for an open shift.
func (s Shift) End(now time.Time) time.Time {
	if s.EndedAt != nil {
		return *s.EndedAt
	}
	return now
}

// Current is a worker's shift state for today.
type Current struct {
	Active *Shift  `json:"active_shift"`
	Today  []Shift `json:"today_shifts"`
}

// Filter narrows shift listings on StartedAt. From is inclusive and Before
// exclusive. Zero values match everything.
type Filter struct {
	WorkerID string
	From     *time.Time
	Before   *time.Time
	Limit    int
}

// HoursBetween is the elapsed time in hours rounded to two places.
func HoursBetween(start, end time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(end.Sub(start))).
		Div(decimal.NewFromInt(int64(time.Hour))).
		Round(2)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
