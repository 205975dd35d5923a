package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/repository"
)

// BatchRepository implements batch.Repository for SQLite
type BatchRepository struct {
	db *DB
}

// NewBatchRepository creates a new BatchRepository
func NewBatchRepository(db *DB) *BatchRepository {
	return &BatchRepository{db: db}
}

const batchSelect = `
	SELECT b.id, b.recipe_id, r.name, b.name, b.target_quantity, b.base_unit, b.status,
	       b.start_date, b.due_date, b.completed_date, b.created_at,
	       b.metrc_batch_id, b.lot_number, b.strain, b.package_tag
	FROM batches b
	JOIN recipes r ON r.id = b.recipe_id
`

// Create writes a batch with its steps and assignments
func (r *BatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO batches (
			id, recipe_id, name, target_quantity, base_unit, status,
			start_date, due_date, completed_date, created_at,
			metrc_batch_id, lot_number, strain, package_tag
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		b.ID,
		b.RecipeID,
		b.Name,
		b.TargetQuantity,
		b.BaseUnit,
		b.Status,
		utc(b.StartDate),
		utcPtr(b.DueDate),
		utcPtr(b.CompletedDate),
		utc(b.CreatedAt),
		b.Compliance.MetrcBatchID,
		b.Compliance.LotNumber,
		b.Compliance.Strain,
		b.Compliance.PackageTag,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to create batch: %w", err)
	}

	for _, s := range b.Steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batch_steps (
				id, batch_id, recipe_step_id, name, sort_order, type,
				unit_label, unit_ratio, target_quantity, completed_quantity, status
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, b.ID, s.RecipeStepID, s.Name, s.Order, s.Type,
			s.UnitLabel, s.UnitRatio, s.TargetQuantity, s.CompletedQuantity, s.Status)
		if err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to create batch step %q: %w", s.Name, err)
		}
	}

	if err := insertAssignments(ctx, tx, b); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertAssignments(ctx context.Context, tx *sql.Tx, b *batch.Batch) error {
	for _, a := range b.Assignments {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO batch_assignments (batch_id, worker_id, created_at) VALUES (?, ?, ?)`,
			b.ID, a.WorkerID, utc(a.CreatedAt))
		if err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to assign worker: %w", err)
		}
	}
	return nil
}

// Get retrieves a batch with steps and assignments
func (r *BatchRepository) Get(ctx context.Context, id string) (*batch.Batch, error) {
	return getBatch(ctx, r.db, id)
}

func getBatch(ctx context.Context, q querier, id string) (*batch.Batch, error) {
	b, err := scanBatch(q.QueryRowContext(ctx, batchSelect+` WHERE b.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	batches := []batch.Batch{*b}
	if err := loadSteps(ctx, q, batches); err != nil {
		return nil, err
	}
	if err := loadAssignments(ctx, q, batches); err != nil {
		return nil, err
	}
	return &batches[0], nil
}

// GetDetail adds step logs, notes and material previews
func (r *BatchRepository) GetDetail(ctx context.Context, id string) (*batch.Batch, error) {
	b, err := getBatch(ctx, r.db, id)
	if err != nil {
		return nil, err
	}

	stepIndex := make(map[string]int, len(b.Steps))
	for i := range b.Steps {
		stepIndex[b.Steps[i].ID] = i
		b.Steps[i].Logs = []batch.ProgressLog{}
	}

	logs, err := r.ListLogs(ctx, batch.LogFilter{BatchID: id})
	if err != nil {
		return nil, err
	}
	for _, entry := range logs {
		if i, ok := stepIndex[entry.BatchStepID]; ok {
			b.Steps[i].Logs = append(b.Steps[i].Logs, entry.ProgressLog)
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT bs.id, m.id, m.name, m.quantity_per_unit, m.unit
		FROM batch_steps bs
		JOIN step_materials m ON m.step_id = bs.recipe_step_id
		WHERE bs.batch_id = ?
		ORDER BY m.sort_order
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load materials: %w", err)
	}
	defer rows.Close()

	materials := make(map[string][]recipe.Material)
	for rows.Next() {
		var stepID string
		var m recipe.Material
		if err := rows.Scan(&stepID, &m.ID, &m.Name, &m.QuantityPerUnit, &m.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan material: %w", err)
		}
		materials[stepID] = append(materials[stepID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating material rows: %w", err)
	}

	for stepID, mats := range materials {
		step := &b.Steps[stepIndex[stepID]]
		step.Materials = batch.MaterialPreview(mats, step.TargetQuantity)
	}
	return b, nil
}

// List returns batches with steps, filtered by status
func (r *BatchRepository) List(ctx context.Context, opts batch.ListOptions) ([]batch.Batch, error) {
	query := batchSelect
	args := []any{}

	if len(opts.Statuses) > 0 {
		query += ` WHERE b.status IN (` + placeholders(len(opts.Statuses)) + `)`
		for _, s := range opts.Statuses {
			args = append(args, s)
		}
	}

	if opts.ByCompletion {
		query += ` ORDER BY b.completed_date IS NULL, b.completed_date DESC, b.created_at DESC`
	} else {
		query += ` ORDER BY b.start_date DESC, b.created_at DESC`
	}

	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := []batch.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batch rows: %w", err)
	}
	rows.Close()

	if err := loadSteps(ctx, r.db, batches); err != nil {
		return nil, err
	}
	if err := loadAssignments(ctx, r.db, batches); err != nil {
		return nil, err
	}
	return batches, nil
}

// Update writes batch fields and step targets
func (r *BatchRepository) Update(ctx context.Context, b *batch.Batch, replaceAssignments bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE batches
		SET name = ?, target_quantity = ?, due_date = ?,
		    metrc_batch_id = ?, lot_number = ?, strain = ?, package_tag = ?
		WHERE id = ?
	`
	result, err := tx.ExecContext(ctx, query,
		b.Name,
		b.TargetQuantity,
		utcPtr(b.DueDate),
		b.Compliance.MetrcBatchID,
		b.Compliance.LotNumber,
		b.Compliance.Strain,
		b.Compliance.PackageTag,
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update batch: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	for _, s := range b.Steps {
		_, err := tx.ExecContext(ctx,
			`UPDATE batch_steps SET target_quantity = ? WHERE id = ? AND batch_id = ?`,
			s.TargetQuantity, s.ID, b.ID)
		if err != nil {
			return fmt.Errorf("failed to update step target: %w", err)
		}
	}

	if replaceAssignments {
		if _, err := tx.ExecContext(ctx, `DELETE FROM batch_assignments WHERE batch_id = ?`, b.ID); err != nil {
			return fmt.Errorf("failed to clear assignments: %w", err)
		}
		if err := insertAssignments(ctx, tx, b); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SetStatus writes only the lifecycle columns
func (r *BatchRepository) SetStatus(ctx context.Context, id string, status batch.Status, completedDate *time.Time) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, completed_date = ? WHERE id = ?`,
		status, utcPtr(completedDate), id)
	if err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}
	return requireAffected(result)
}

// ApplyProgress inserts the log and applies the step and batch changes in
// one transaction. The step update only matches while completed_quantity
// still equals the value the plan was computed from and the stored ceiling
// still covers the new total. plan.Batch is cleared when the stored steps
// do not confirm completion.
func (r *BatchRepository) ApplyProgress(ctx context.Context, plan *batch.ProgressPlan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	log := plan.Log
	_, err = tx.ExecContext(ctx, `
		INSERT INTO progress_logs (id, batch_step_id, worker_id, quantity, note, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		log.ID, log.BatchStepID, log.WorkerID, log.Quantity, log.Note, utc(log.CreatedAt))
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to insert progress log: %w", err)
	}

	if err := writeStepChange(ctx, tx, plan.Step, true); err != nil {
		return err
	}

	if plan.Unlock != "" {
		_, err := tx.ExecContext(ctx,
			`UPDATE batch_steps SET status = ? WHERE id = ? AND status = ?`,
			batch.StepInProgress, plan.Unlock, batch.StepLocked)
		if err != nil {
			return fmt.Errorf("failed to unlock step: %w", err)
		}
	}

	if plan.Batch != nil {
		// Completion is re-checked against stored steps.
		result, err := tx.ExecContext(ctx, `
			UPDATE batches SET status = ?, completed_date = ?
			WHERE id = (SELECT batch_id FROM batch_steps WHERE id = ?)
			  AND status != ?
			  AND NOT EXISTS (
			      SELECT 1 FROM batch_steps s
			      WHERE s.batch_id = batches.id AND s.completed_quantity < s.target_quantity
			  )`,
			plan.Batch.Status, utcPtr(plan.Batch.CompletedDate), plan.Step.StepID, batch.StatusCompleted)
		if err != nil {
			return fmt.Errorf("failed to complete batch: %w", err)
		}
		completed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if completed == 0 {
			plan.Batch = nil
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func writeStepChange(ctx context.Context, q querier, change batch.StepChange, guarded bool) error {
	query := `UPDATE batch_steps SET completed_quantity = ?, status = ? WHERE id = ?`
	args := []any{change.Completed, change.Status, change.StepID}
	if guarded {
		query += ` AND completed_quantity = ?`
		args = append(args, change.PreviousCompleted)
		if change.CeilingStepID != "" {
			query += ` AND (SELECT p.completed_quantity FROM batch_steps p WHERE p.id = ?) >= ?`
			args = append(args, change.CeilingStepID, change.Completed)
		} else {
			query += ` AND (SELECT b.target_quantity FROM batches b WHERE b.id = batch_steps.batch_id) >= ?`
			args = append(args, change.Completed)
		}
	}

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update step: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM batch_steps WHERE id = ?)`, change.StepID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check step existence: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	// Step exists but its total or its ceiling moved
	return repository.ErrConflict
}

const logSelect = `
	SELECT l.id, l.batch_step_id, l.worker_id, w.name, l.quantity, l.note, l.created_at,
	       b.id, b.name, s.name, s.unit_label
	FROM progress_logs l
	JOIN batch_steps s ON s.id = l.batch_step_id
	JOIN batches b ON b.id = s.batch_id
	JOIN workers w ON w.id = l.worker_id
`

// GetLog retrieves a progress log with its step and batch
func (r *BatchRepository) GetLog(ctx context.Context, id string) (*batch.LogEntry, error) {
	entry, err := scanLog(r.db.QueryRowContext(ctx, logSelect+` WHERE l.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress log: %w", err)
	}
	return entry, nil
}

// DeleteLog removes a log and rewrites its step from the sum of what remains
func (r *BatchRepository) DeleteLog(ctx context.Context, id string) (*batch.Batch, *batch.RecomputePlan, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stepID, batchID string
	err = tx.QueryRowContext(ctx, `
		SELECT l.batch_step_id, s.batch_id
		FROM progress_logs l
		JOIN batch_steps s ON s.id = l.batch_step_id
		WHERE l.id = ?`, id).Scan(&stepID, &batchID)
	if err == sql.ErrNoRows {
		return nil, nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get progress log: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM progress_logs WHERE id = ?`, id); err != nil {
		return nil, nil, fmt.Errorf("failed to delete progress log: %w", err)
	}

	var remaining int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(quantity), 0) FROM progress_logs WHERE batch_step_id = ?`, stepID).Scan(&remaining)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sum progress logs: %w", err)
	}

	b, err := getBatch(ctx, tx, batchID)
	if err != nil {
		return nil, nil, err
	}

	plan, err := batch.PlanRecompute(b, stepID, remaining)
	if err != nil {
		return nil, nil, err
	}

	if err := writeStepChange(ctx, tx, plan.Step, false); err != nil {
		return nil, nil, err
	}
	if plan.Batch != nil {
		_, err := tx.ExecContext(ctx,
			`UPDATE batches SET status = ?, completed_date = ? WHERE id = ?`,
			plan.Batch.Status, utcPtr(plan.Batch.CompletedDate), b.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to update batch status: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	plan.Apply(b)
	return b, plan, nil
}

// ListLogs returns progress logs newest first
func (r *BatchRepository) ListLogs(ctx context.Context, filter batch.LogFilter) ([]batch.LogEntry, error) {
	query := logSelect
	args := []any{}
	conditions := []string{}

	if filter.WorkerID != "" {
		conditions = append(conditions, "l.worker_id = ?")
		args = append(args, filter.WorkerID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, "b.id = ?")
		args = append(args, filter.BatchID)
	}
	if filter.Since != nil {
		conditions = append(conditions, "l.created_at >= ?")
		args = append(args, utc(*filter.Since))
	}
	if filter.Until != nil {
		conditions = append(conditions, "l.created_at <= ?")
		args = append(args, utc(*filter.Until))
	}

	if len(conditions) > 0 {
		query += " WHERE " + joinConditions(conditions)
	}
	query += " ORDER BY l.created_at DESC, l.id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress logs: %w", err)
	}
	defer rows.Close()

	entries := []batch.LogEntry{}
	for rows.Next() {
		entry, err := scanLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress log: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress log rows: %w", err)
	}
	return entries, nil
}

// Logs lets the repository serve as a log reader for workers and shifts.
func (r *BatchRepository) Logs(ctx context.Context, filter batch.LogFilter) ([]batch.LogEntry, error) {
	return r.ListLogs(ctx, filter)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(row rowScanner) (*batch.Batch, error) {
	var b batch.Batch
	var dueDate, completedDate sql.NullTime
	var metrc, lot, strain, tag sql.NullString
	err := row.Scan(
		&b.ID,
		&b.RecipeID,
		&b.RecipeName,
		&b.Name,
		&b.TargetQuantity,
		&b.BaseUnit,
		&b.Status,
		&b.StartDate,
		&dueDate,
		&completedDate,
		&b.CreatedAt,
		&metrc,
		&lot,
		&strain,
		&tag,
	)
	if err != nil {
		return nil, err
	}
	b.DueDate = timePtr(dueDate)
	b.CompletedDate = timePtr(completedDate)
	b.Compliance = batch.Compliance{
		MetrcBatchID: stringPtr(metrc),
		LotNumber:    stringPtr(lot),
		Strain:       stringPtr(strain),
		PackageTag:   stringPtr(tag),
	}
	b.Steps = []batch.Step{}
	return &b, nil
}

func scanLog(row rowScanner) (*batch.LogEntry, error) {
	var e batch.LogEntry
	err := row.Scan(
		&e.ID,
		&e.BatchStepID,
		&e.WorkerID,
		&e.WorkerName,
		&e.Quantity,
		&e.Note,
		&e.CreatedAt,
		&e.BatchID,
		&e.BatchName,
		&e.StepName,
		&e.UnitLabel,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func batchIndex(batches []batch.Batch) (map[string]*batch.Batch, []any) {
	index := make(map[string]*batch.Batch, len(batches))
	ids := make([]any, 0, len(batches))
	for i := range batches {
		index[batches[i].ID] = &batches[i]
		ids = append(ids, batches[i].ID)
	}
	return index, ids
}

// loadSteps fills steps in waterfall order, with notes from the recipe step
func loadSteps(ctx context.Context, q querier, batches []batch.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	index, ids := batchIndex(batches)

	rows, err := q.QueryContext(ctx, `
		SELECT bs.id, bs.batch_id, bs.recipe_step_id, bs.name, bs.sort_order, bs.type,
		       bs.unit_label, bs.unit_ratio, bs.target_quantity, bs.completed_quantity, bs.status,
		       COALESCE(rs.notes, '')
		FROM batch_steps bs
		LEFT JOIN recipe_steps rs ON rs.id = bs.recipe_step_id
		WHERE bs.batch_id IN (`+placeholders(len(ids))+`)
		ORDER BY bs.batch_id, bs.sort_order`, ids...)
	if err != nil {
		return fmt.Errorf("failed to load batch steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s batch.Step
		var recipeStepID sql.NullString
		if err := rows.Scan(
			&s.ID,
			&s.BatchID,
			&recipeStepID,
			&s.Name,
			&s.Order,
			&s.Type,
			&s.UnitLabel,
			&s.UnitRatio,
			&s.TargetQuantity,
			&s.CompletedQuantity,
			&s.Status,
			&s.Notes,
		); err != nil {
			return fmt.Errorf("failed to scan batch step: %w", err)
		}
		s.RecipeStepID = stringPtr(recipeStepID)
		if b, ok := index[s.BatchID]; ok {
			b.Steps = append(b.Steps, s)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating batch step rows: %w", err)
	}
	return nil
}

func loadAssignments(ctx context.Context, q querier, batches []batch.Batch) error {
	if len(batches) == 0 {
		return nil
	}
	index, ids := batchIndex(batches)

	rows, err := q.QueryContext(ctx, `
		SELECT a.batch_id, a.worker_id, w.name, a.created_at
		FROM batch_assignments a
		JOIN workers w ON w.id = a.worker_id
		WHERE a.batch_id IN (`+placeholders(len(ids))+`)
		ORDER BY w.name COLLATE NOCASE`, ids...)
	if err != nil {
		return fmt.Errorf("failed to load assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var batchID string
		var a batch.Assignment
		if err := rows.Scan(&batchID, &a.WorkerID, &a.WorkerName, &a.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		if b, ok := index[batchID]; ok {
			b.Assignments = append(b.Assignments, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating assignment rows: %w", err)
	}
	return nil
}
