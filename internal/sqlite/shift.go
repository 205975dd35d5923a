package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/repository"
)

// ShiftRepository implements shift.Repository for SQLite
type ShiftRepository struct {
	db *DB
}

// NewShiftRepository creates a new ShiftRepository
func NewShiftRepository(db *DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

const shiftSelect = `
	SELECT s.id, s.worker_id, w.name, s.status, s.started_at, s.ended_at, s.notes, s.created_at
	FROM shifts s
	JOIN workers w ON w.id = s.worker_id
`

// Create inserts a shift. The partial unique index allows one ACTIVE shift per worker.
func (r *ShiftRepository) Create(ctx context.Context, s *shift.Shift) error {
	query := `
		INSERT INTO shifts (id, worker_id, status, started_at, ended_at, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.WorkerID, s.Status, utc(s.StartedAt), utcPtr(s.EndedAt), s.Notes, utc(s.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create shift: %w", err)
	}
	return nil
}

// GetActive returns the worker's open shift
func (r *ShiftRepository) GetActive(ctx context.Context, workerID string) (*shift.Shift, error) {
	s, err := scanShift(r.db.QueryRowContext(ctx,
		shiftSelect+` WHERE s.worker_id = ? AND s.status = ?`, workerID, shift.StatusActive))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active shift: %w", err)
	}
	return s, nil
}

// Update writes status, end time and notes
func (r *ShiftRepository) Update(ctx context.Context, s *shift.Shift) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE shifts SET status = ?, ended_at = ?, notes = ? WHERE id = ?`,
		s.Status, utcPtr(s.EndedAt), s.Notes, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update shift: %w", err)
	}
	return requireAffected(result)
}

// List returns shifts newest first
func (r *ShiftRepository) List(ctx context.Context, filter shift.Filter) ([]shift.Shift, error) {
	query := shiftSelect
	args := []any{}
	conditions := []string{}

	if filter.WorkerID != "" {
		conditions = append(conditions, "s.worker_id = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.From != nil {
		conditions = append(conditions, "s.started_at >= ?")
		args = append(args, utc(*filter.From))
	}
	if filter.Before != nil {
		conditions = append(conditions, "s.started_at < ?")
		args = append(args, utc(*filter.Before))
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}
	query += " ORDER BY s.started_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	shifts := []shift.Shift{}
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating shift rows: %w", err)
	}
	return shifts, nil
}

func scanShift(row rowScanner) (*shift.Shift, error) {
	var s shift.Shift
	var endedAt sql.NullTime
	if err := row.Scan(
		&s.ID,
		&s.WorkerID,
		&s.WorkerName,
		&s.Status,
		&s.StartedAt,
		&endedAt,
		&s.Notes,
		&s.CreatedAt,
	); err != nil {
		return nil, err
	}
	s.EndedAt = timePtr(endedAt)
	return &s, nil
}
