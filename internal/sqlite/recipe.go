package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/repository"
)

// RecipeRepository implements recipe.Repository for SQLite
type RecipeRepository struct {
	db *DB
}

// NewRecipeRepository creates a new RecipeRepository
func NewRecipeRepository(db *DB) *RecipeRepository {
	return &RecipeRepository{db: db}
}

// Create inserts a recipe with its units, steps and materials in one transaction
func (r *RecipeRepository) Create(ctx context.Context, rec *recipe.Recipe) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO recipes (id, name, description, base_unit, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Description, rec.BaseUnit, utc(rec.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create recipe: %w", err)
	}

	if err := insertRecipeParts(ctx, tx, rec); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Replace overwrites recipe fields and recreates units, steps and materials.
// Batch steps pointing at removed recipe steps lose the link.
func (r *RecipeRepository) Replace(ctx context.Context, rec *recipe.Recipe) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE recipes SET name = ?, description = ?, base_unit = ? WHERE id = ?`,
		rec.Name, rec.Description, rec.BaseUnit, rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update recipe: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_steps WHERE recipe_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear recipe steps: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_units WHERE recipe_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear recipe units: %w", err)
	}

	if err := insertRecipeParts(ctx, tx, rec); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertRecipeParts(ctx context.Context, tx *sql.Tx, rec *recipe.Recipe) error {
	for _, u := range rec.Units {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_units (id, recipe_id, name, ratio, sort_order) VALUES (?, ?, ?, ?, ?)`,
			u.ID, rec.ID, u.Name, u.Ratio, u.Order)
		if err != nil {
			return fmt.Errorf("failed to insert unit %q: %w", u.Name, err)
		}
	}

	for _, s := range rec.Steps {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO recipe_steps (id, recipe_id, name, sort_order, type, unit_id, notes) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.ID, rec.ID, s.Name, s.Order, s.Type, s.UnitID, s.Notes)
		if err != nil {
			if isForeignKeyViolation(err) {
				return repository.ErrForeignKeyViolation
			}
			return fmt.Errorf("failed to insert step %q: %w", s.Name, err)
		}

		for i, m := range s.Materials {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO step_materials (id, step_id, name, quantity_per_unit, unit, sort_order) VALUES (?, ?, ?, ?, ?, ?)`,
				m.ID, s.ID, m.Name, m.QuantityPerUnit, m.Unit, i+1)
			if err != nil {
				return fmt.Errorf("failed to insert material %q: %w", m.Name, err)
			}
		}
	}
	return nil
}

// Get retrieves a recipe with units, steps, materials and batch count
func (r *RecipeRepository) Get(ctx context.Context, id string) (*recipe.Recipe, error) {
	query := `
		SELECT r.id, r.name, r.description, r.base_unit, r.created_at,
		       (SELECT COUNT(*) FROM batches b WHERE b.recipe_id = r.id)
		FROM recipes r
		WHERE r.id = ?
	`

	var rec recipe.Recipe
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Name, &rec.Description, &rec.BaseUnit, &rec.CreatedAt, &rec.BatchCount)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	recipes := []recipe.Recipe{rec}
	if err := r.loadParts(ctx, recipes, `WHERE recipe_id = ?`, id); err != nil {
		return nil, err
	}
	return &recipes[0], nil
}

// List returns every recipe, newest first, with parts and batch counts
func (r *RecipeRepository) List(ctx context.Context) ([]recipe.Recipe, error) {
	query := `
		SELECT r.id, r.name, r.description, r.base_unit, r.created_at,
		       (SELECT COUNT(*) FROM batches b WHERE b.recipe_id = r.id)
		FROM recipes r
		ORDER BY r.created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer rows.Close()

	recipes := []recipe.Recipe{}
	for rows.Next() {
		var rec recipe.Recipe
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.BaseUnit, &rec.CreatedAt, &rec.BatchCount); err != nil {
			return nil, fmt.Errorf("failed to scan recipe: %w", err)
		}
		recipes = append(recipes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating recipe rows: %w", err)
	}
	rows.Close()

	if len(recipes) == 0 {
		return recipes, nil
	}
	if err := r.loadParts(ctx, recipes, ""); err != nil {
		return nil, err
	}
	return recipes, nil
}

// Delete removes a recipe. Fails with ErrForeignKeyViolation while batches reference it.
func (r *RecipeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrForeignKeyViolation
		}
		return fmt.Errorf("failed to delete recipe: %w", err)
	}
	return requireAffected(result)
}

// loadParts fills units, steps and materials for recipes. where filters the
// unit and step queries on recipe_id.
func (r *RecipeRepository) loadParts(ctx context.Context, recipes []recipe.Recipe, where string, args ...any) error {
	index := make(map[string]*recipe.Recipe, len(recipes))
	for i := range recipes {
		recipes[i].Units = []recipe.Unit{}
		recipes[i].Steps = []recipe.Step{}
		index[recipes[i].ID] = &recipes[i]
	}

	unitRows, err := r.db.QueryContext(ctx,
		`SELECT id, recipe_id, name, ratio, sort_order FROM recipe_units `+where+` ORDER BY sort_order`, args...)
	if err != nil {
		return fmt.Errorf("failed to load units: %w", err)
	}
	for unitRows.Next() {
		var u recipe.Unit
		if err := unitRows.Scan(&u.ID, &u.RecipeID, &u.Name, &u.Ratio, &u.Order); err != nil {
			unitRows.Close()
			return fmt.Errorf("failed to scan unit: %w", err)
		}
		if rec, ok := index[u.RecipeID]; ok {
			rec.Units = append(rec.Units, u)
		}
	}
	unitRows.Close()
	if err := unitRows.Err(); err != nil {
		return fmt.Errorf("error iterating unit rows: %w", err)
	}

	stepRows, err := r.db.QueryContext(ctx,
		`SELECT id, recipe_id, name, sort_order, type, unit_id, notes FROM recipe_steps `+where+` ORDER BY sort_order`, args...)
	if err != nil {
		return fmt.Errorf("failed to load steps: %w", err)
	}
	type stepRef struct {
		recipeID string
		pos      int
	}
	steps := make(map[string]stepRef)
	for stepRows.Next() {
		var s recipe.Step
		var unitID sql.NullString
		if err := stepRows.Scan(&s.ID, &s.RecipeID, &s.Name, &s.Order, &s.Type, &unitID, &s.Notes); err != nil {
			stepRows.Close()
			return fmt.Errorf("failed to scan step: %w", err)
		}
		if unitID.Valid {
			s.UnitID = &unitID.String
		}
		if rec, ok := index[s.RecipeID]; ok {
			rec.Steps = append(rec.Steps, s)
			steps[s.ID] = stepRef{recipeID: s.RecipeID, pos: len(rec.Steps) - 1}
		}
	}
	stepRows.Close()
	if err := stepRows.Err(); err != nil {
		return fmt.Errorf("error iterating step rows: %w", err)
	}

	materialQuery := `
		SELECT m.id, m.step_id, m.name, m.quantity_per_unit, m.unit
		FROM step_materials m
		JOIN recipe_steps s ON s.id = m.step_id
	`
	if where != "" {
		materialQuery += ` WHERE s.recipe_id = ?`
	}
	materialQuery += ` ORDER BY m.sort_order`

	materialRows, err := r.db.QueryContext(ctx, materialQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to load materials: %w", err)
	}
	defer materialRows.Close()
	for materialRows.Next() {
		var m recipe.Material
		if err := materialRows.Scan(&m.ID, &m.StepID, &m.Name, &m.QuantityPerUnit, &m.Unit); err != nil {
			return fmt.Errorf("failed to scan material: %w", err)
		}
		if ref, ok := steps[m.StepID]; ok {
			step := &index[ref.recipeID].Steps[ref.pos]
			step.Materials = append(step.Materials, m)
		}
	}
	if err := materialRows.Err(); err != nil {
		return fmt.Errorf("error iterating material rows: %w", err)
	}
	return nil
}
