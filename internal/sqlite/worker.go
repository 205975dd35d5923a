package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/repository"
)

// WorkerRepository implements worker.Repository for SQLite
type WorkerRepository struct {
	db *DB
}

// NewWorkerRepository creates a new WorkerRepository
func NewWorkerRepository(db *DB) *WorkerRepository {
	return &WorkerRepository{db: db}
}

const workerColumns = `id, name, pin, role, created_at`

// Create inserts a worker
func (r *WorkerRepository) Create(ctx context.Context, w *worker.Worker) error {
	query := `INSERT INTO workers (id, name, pin, role, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query, w.ID, w.Name, w.PIN, w.Role, utc(w.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create worker: %w", err)
	}
	return nil
}

// Get retrieves a worker by ID
func (r *WorkerRepository) Get(ctx context.Context, id string) (*worker.Worker, error) {
	return r.getBy(ctx, "id", id)
}

// GetByPIN retrieves a worker by PIN
func (r *WorkerRepository) GetByPIN(ctx context.Context, pin string) (*worker.Worker, error) {
	return r.getBy(ctx, "pin", pin)
}

func (r *WorkerRepository) getBy(ctx context.Context, column, value string) (*worker.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers WHERE ` + column + ` = ?`

	var w worker.Worker
	err := r.db.QueryRowContext(ctx, query, value).Scan(&w.ID, &w.Name, &w.PIN, &w.Role, &w.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	return &w, nil
}

// List returns all workers ordered by name
func (r *WorkerRepository) List(ctx context.Context) ([]worker.Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers ORDER BY name COLLATE NOCASE ASC, created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	workers := []worker.Worker{}
	for rows.Next() {
		var w worker.Worker
		if err := rows.Scan(&w.ID, &w.Name, &w.PIN, &w.Role, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating worker rows: %w", err)
	}
	return workers, nil
}

// Update writes name and role
func (r *WorkerRepository) Update(ctx context.Context, w *worker.Worker) error {
	result, err := r.db.ExecContext(ctx, `UPDATE workers SET name = ?, role = ? WHERE id = ?`, w.Name, w.Role, w.ID)
	if err != nil {
		return fmt.Errorf("failed to update worker: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a worker. Assignments cascade; logs and shifts block.
func (r *WorkerRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workers WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to delete worker: %w", err)
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
