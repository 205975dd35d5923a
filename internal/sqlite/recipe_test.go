package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestRecipeRepository_CreateGet(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	insertRecipe(t, db, "r1")

	got, err := NewRecipeRepository(db).Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "Gummies r1", got.Name)
	require.Equal(t, "units", got.BaseUnit)
	require.Len(t, got.Units, 1)
	require.Equal(t, 20, got.Units[0].Ratio)
	require.Len(t, got.Steps, 3)
	require.Equal(t, []string{"Bag", "Case", "QA"}, []string{got.Steps[0].Name, got.Steps[1].Name, got.Steps[2].Name})
	require.Equal(t, recipe.StepCheck, got.Steps[2].Type)
	require.Nil(t, got.Steps[0].UnitID)
	require.NotNil(t, got.Steps[1].UnitID)
	require.Equal(t, "r1-cases", *got.Steps[1].UnitID)
	require.Equal(t, "Seal every bag", got.Steps[0].Notes)
	require.Len(t, got.Steps[0].Materials, 2)
	require.Equal(t, "Mylar bag", got.Steps[0].Materials[0].Name)
	require.Equal(t, 0.5, got.Steps[0].Materials[1].QuantityPerUnit)
	require.Zero(t, got.BatchCount)

	_, err = NewRecipeRepository(db).Get(ctx, "missing")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestRecipeRepository_ListCountsBatches(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	r1 := insertRecipe(t, db, "r1")
	insertRecipe(t, db, "r2")
	insertBatch(t, db, r1, "b1", 100)
	insertBatch(t, db, r1, "b2", 50)

	list, err := NewRecipeRepository(db).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	counts := map[string]int{}
	for _, rec := range list {
		counts[rec.ID] = rec.BatchCount
		require.Len(t, rec.Steps, 3)
	}
	require.Equal(t, map[string]int{"r1": 2, "r2": 0}, counts)
}

func TestRecipeRepository_Replace(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecipeRepository(db)
	rec := insertRecipe(t, db, "r1")
	b := insertBatch(t, db, rec, "b1", 100)

	boxes := "r1-boxes"
	rec.Name = "Gummies v2"
	rec.Units = []recipe.Unit{{ID: boxes, Name: "boxes", Ratio: 100, Order: 1}}
	rec.Steps = []recipe.Step{
		{ID: "r1-box", Name: "Box", Order: 1, Type: recipe.StepCount, UnitID: &boxes},
	}
	require.NoError(t, repo.Replace(ctx, rec))

	got, err := repo.Get(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, "Gummies v2", got.Name)
	require.Len(t, got.Units, 1)
	require.Len(t, got.Steps, 1)
	require.Equal(t, "Box", got.Steps[0].Name)
	require.Equal(t, 1, got.BatchCount)

	// Running batches keep their snapshot but lose the recipe step link
	running, err := NewBatchRepository(db).Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, running.Steps, 3)
	require.Nil(t, running.Steps[0].RecipeStepID)
	require.Equal(t, "cases", running.Steps[1].UnitLabel)
	require.Equal(t, 20, running.Steps[1].UnitRatio)

	rec.ID = "missing"
	require.ErrorIs(t, repo.Replace(ctx, rec), repository.ErrNotFound)
}

func TestRecipeRepository_Delete(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	repo := NewRecipeRepository(db)
	r1 := insertRecipe(t, db, "r1")
	insertRecipe(t, db, "r2")
	insertBatch(t, db, r1, "b1", 100)

	require.ErrorIs(t, repo.Delete(ctx, "r1"), repository.ErrForeignKeyViolation)

	require.NoError(t, repo.Delete(ctx, "r2"))
	_, err := repo.Get(ctx, "r2")
	require.ErrorIs(t, err, repository.ErrNotFound)

	var steps int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM recipe_steps WHERE recipe_id = 'r2'`).Scan(&steps))
	require.Zero(t, steps)

	require.ErrorIs(t, repo.Delete(ctx, "r2"), repository.ErrNotFound)
}
