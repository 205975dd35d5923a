package integration_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rpggio/batchflow/internal/app"
	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	app    *app.App
	worker *worker.Worker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := sqlite.New(dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { _ = db.Close() })

	a := app.New(db, app.Options{Location: time.UTC})
	w, err := a.Workers.Create(context.Background(), worker.CreateRequest{Name: "Maria", Role: worker.RoleWorker})
	require.NoError(t, err)

	return &testEnv{app: a, worker: w}
}

func (e *testEnv) newBatch(t *testing.T, target int, steps ...recipe.StepInput) *batch.Batch {
	t.Helper()
	ctx := context.Background()
	rec, err := e.app.Recipes.Create(ctx, recipe.SaveRequest{
		Name:     "Gummies",
		BaseUnit: "pieces",
		Units:    []recipe.UnitInput{{Name: "jars", Ratio: 20}},
		Steps:    steps,
	})
	require.NoError(t, err)

	b, err := e.app.Batches.Create(ctx, batch.CreateRequest{
		RecipeID:       rec.ID,
		Name:           "G-1",
		TargetQuantity: target,
		WorkerIDs:      []string{e.worker.ID},
	})
	require.NoError(t, err)
	return b
}

func (e *testEnv) log(ctx context.Context, b *batch.Batch, step, quantity int) (*batch.LogResult, error) {
	return e.app.Batches.LogProgress(ctx, batch.LogRequest{
		BatchID:    b.ID,
		StepID:     b.Steps[step].ID,
		WorkerID:   e.worker.ID,
		WorkerName: e.worker.Name,
		Quantity:   quantity,
	})
}

func TestIntegration_ConcurrentProgressNeverExceedsCeiling(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBatch(t, 100, recipe.StepInput{Name: "Pour"}, recipe.StepInput{Name: "Seal"})
	ctx := context.Background()

	const writers = 25
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.log(ctx, b, 0, 10)
			if err == nil {
				mu.Lock()
				accepted += 10
				mu.Unlock()
				return
			}
			var ceiling *batch.CeilingError
			if !errors.As(err, &ceiling) && !errors.Is(err, batch.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Positive(t, accepted)
	require.LessOrEqual(t, accepted, 100)

	got, err := env.app.Batches.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, accepted, got.Steps[0].CompletedQuantity)

	logged := 0
	for _, l := range got.Steps[0].Logs {
		logged += l.Quantity
	}
	require.Equal(t, accepted, logged)
}

func TestIntegration_BatchLifecycle(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBatch(t, 40,
		recipe.StepInput{Name: "Inspect", Type: "CHECK"},
		recipe.StepInput{Name: "Jar", Unit: "jars"},
	)
	ctx := context.Background()
	require.Equal(t, 2, b.Steps[1].TargetQuantity)

	_, err := env.log(ctx, b, 1, 1)
	require.ErrorIs(t, err, batch.ErrStepLocked)

	check, err := env.log(ctx, b, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 40, check.Step.CompletedQuantity)
	require.Equal(t, batch.StepCompleted, check.Step.Status)

	done, err := env.log(ctx, b, 1, 2)
	require.NoError(t, err)
	require.Equal(t, batch.StatusCompleted, done.Batch.Status)

	// Progress past the target is allowed up to the ceiling.
	extra, err := env.log(ctx, b, 1, 3)
	require.NoError(t, err)
	require.Equal(t, 5, extra.Step.CompletedQuantity)
	require.Equal(t, done.Batch.CompletedDate.Unix(), extra.Batch.CompletedDate.Unix())

	deleted, err := env.app.Batches.DeleteLog(ctx, batch.DeleteLogRequest{LogID: check.Log.ID, ActorID: env.worker.ID})
	require.NoError(t, err)
	require.Equal(t, 0, deleted.NewTotal)
	require.Equal(t, batch.StatusActive, deleted.BatchStatus)

	got, err := env.app.Batches.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, batch.StepInProgress, got.Steps[0].Status)
	require.Equal(t, batch.StepCompleted, got.Steps[1].Status)

	cancelled, err := env.app.Batches.SetStatus(ctx, b.ID, batch.StatusCancelled)
	require.NoError(t, err)
	require.Nil(t, cancelled.CompletedDate)

	_, err = env.log(ctx, b, 0, 1)
	require.ErrorIs(t, err, batch.ErrBatchCancelled)
}

func TestIntegration_RecipeEditsDoNotReachRunningBatches(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBatch(t, 100, recipe.StepInput{Name: "Jar", Unit: "jars"})
	ctx := context.Background()

	_, err := env.app.Recipes.Update(ctx, b.RecipeID, recipe.SaveRequest{
		Name:     "Gummies v2",
		BaseUnit: "pieces",
		Units:    []recipe.UnitInput{{Name: "jars", Ratio: 50}},
		Steps:    []recipe.StepInput{{Name: "Jar", Unit: "jars"}, {Name: "Label"}},
	})
	require.NoError(t, err)

	got, err := env.app.Batches.Get(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, got.Steps, 1)
	require.Equal(t, 20, got.Steps[0].UnitRatio)
	require.Equal(t, 5, got.Steps[0].TargetQuantity)

	err = env.app.Recipes.Delete(ctx, b.RecipeID)
	require.ErrorIs(t, err, recipe.ErrInUse)
}

func TestIntegration_WorkerHistoryAndActivity(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBatch(t, 10, recipe.StepInput{Name: "Pour"})
	ctx := context.Background()

	_, err := env.log(ctx, b, 0, 4)
	require.NoError(t, err)

	err = env.app.Workers.Delete(ctx, env.worker.ID)
	require.ErrorIs(t, err, worker.ErrHasHistory)

	today, err := env.app.Workers.TodayActivity(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, today, 1)
	require.Equal(t, 4, today[0].TodayUnits)
	require.Equal(t, []string{"G-1"}, today[0].Batches)

	progress := activity.TypeProgressLogged
	entries, err := env.app.Activity.Recent(ctx, activity.ListOptions{Type: &progress})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].BatchID)
	require.Equal(t, b.ID, *entries[0].BatchID)
}
