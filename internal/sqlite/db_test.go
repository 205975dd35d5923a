package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/stretchr/testify/require"
)

// NewTestDB creates a new in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "failed to create test database")

	err = db.RunMigrations()
	require.NoError(t, err, "failed to run migrations")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// TestMigrations verifies that migrations run successfully
func TestMigrations(t *testing.T) {
	db := NewTestDB(t)

	tables := []string{
		"workers",
		"recipes",
		"recipe_units",
		"recipe_steps",
		"step_materials",
		"batches",
		"batch_steps",
		"progress_logs",
		"batch_assignments",
		"shifts",
		"activity_log",
	}

	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "failed to query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	// Idempotent
	require.NoError(t, db.RunMigrations())
}

// TestForeignKeys verifies that foreign key constraints are enabled
func TestForeignKeys(t *testing.T) {
	db := NewTestDB(t)

	var enabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	require.NoError(t, err)
	require.Equal(t, 1, enabled, "foreign keys not enabled")
}

var testTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func insertWorker(t *testing.T, db *DB, id, name, pin string, role worker.Role) *worker.Worker {
	t.Helper()
	w := &worker.Worker{ID: id, Name: name, PIN: pin, Role: role, CreatedAt: testTime}
	require.NoError(t, NewWorkerRepository(db).Create(context.Background(), w))
	return w
}

// gummyRecipe has three steps: Bag in units, then Case and a QA check in
// cases of 20.
func gummyRecipe(id string) *recipe.Recipe {
	cases := id + "-cases"
	return &recipe.Recipe{
		ID:        id,
		Name:      "Gummies " + id,
		BaseUnit:  "units",
		CreatedAt: testTime,
		Units: []recipe.Unit{
			{ID: cases, Name: "cases", Ratio: 20, Order: 1},
		},
		Steps: []recipe.Step{
			{
				ID: id + "-bag", Name: "Bag", Order: 1, Type: recipe.StepCount,
				Notes: "Seal every bag",
				Materials: []recipe.Material{
					{ID: id + "-m1", Name: "Mylar bag", QuantityPerUnit: 1, Unit: "ea"},
					{ID: id + "-m2", Name: "Label", QuantityPerUnit: 0.5, Unit: "ea"},
				},
			},
			{ID: id + "-case", Name: "Case", Order: 2, Type: recipe.StepCount, UnitID: &cases},
			{ID: id + "-qa", Name: "QA", Order: 3, Type: recipe.StepCheck, UnitID: &cases},
		},
	}
}

func insertRecipe(t *testing.T, db *DB, id string) *recipe.Recipe {
	t.Helper()
	rec := gummyRecipe(id)
	require.NoError(t, NewRecipeRepository(db).Create(context.Background(), rec))
	return rec
}

// insertBatch materializes rec with the given target.
func insertBatch(t *testing.T, db *DB, rec *recipe.Recipe, id string, target int, workerIDs ...string) *batch.Batch {
	t.Helper()
	n := 0
	newID := func() string {
		n++
		if n == 1 {
			return id
		}
		return id + "-step-" + string(rune('0'+n-1))
	}
	b := batch.Materialize(rec, batch.CreateRequest{
		RecipeID:       rec.ID,
		Name:           "Batch " + id,
		TargetQuantity: target,
		WorkerIDs:      workerIDs,
	}, newID, testTime)
	require.NoError(t, NewBatchRepository(db).Create(context.Background(), b))
	return b
}
