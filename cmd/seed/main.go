// Command seed loads demo workers, a recipe and a half-finished batch.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/rpggio/batchflow/internal/app"
	"github.com/rpggio/batchflow/internal/config"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/sqlite"
)

const demoRecipe = "14g Ground Flower"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	db, err := sqlite.New(cfg.DB.Path)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	loc, _ := cfg.Location()
	application := app.New(db, app.Options{Location: loc})
	if err := seed(context.Background(), application, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
}

type demoWorker struct {
	name string
	pin  string
	role worker.Role
}

var demoWorkers = []demoWorker{
	{name: "Will", pin: "1234", role: worker.RoleOwner},
	{name: "Maria", pin: "2241", role: worker.RoleWorker},
	{name: "James", pin: "3356", role: worker.RoleWorker},
}

// seed is idempotent: existing PINs and an existing demo recipe are kept.
func seed(ctx context.Context, a *app.App, logger *slog.Logger) error {
	workers := make(map[string]*worker.Worker, len(demoWorkers))
	for _, dw := range demoWorkers {
		w, err := ensureWorker(ctx, a.Workers, dw)
		if err != nil {
			return err
		}
		workers[dw.name] = w
		logger.Info("worker ready", "name", w.Name, "pin", w.PIN, "role", w.Role)
	}

	recipes, err := a.Recipes.List(ctx)
	if err != nil {
		return fmt.Errorf("listing recipes: %w", err)
	}
	for _, r := range recipes {
		if r.Name == demoRecipe {
			logger.Info("demo recipe exists, skipping batch", "recipe_id", r.ID)
			return nil
		}
	}

	rec, err := a.Recipes.Create(ctx, recipe.SaveRequest{
		Name:        demoRecipe,
		Description: "Standard 14g ground flower bags",
		BaseUnit:    "bags",
		Units:       []recipe.UnitInput{{Name: "cases", Ratio: 50}},
		Steps: []recipe.StepInput{
			{Name: "Prep Bags", Type: "CHECK", Notes: "Pull correct qty of bags"},
			{Name: "Measure Flower", Type: "CHECK", Notes: "Weigh out total ground flower needed"},
			{Name: "Sift Flower", Type: "CHECK", Notes: "Remove stems and seeds"},
			{Name: "Fill Bags", Type: "COUNT", Notes: "Set filler to 14g", Materials: []recipe.MaterialInput{
				{Name: "Ground flower", QuantityPerUnit: 14, Unit: "g"},
				{Name: "Mylar bag", QuantityPerUnit: 1, Unit: "ea"},
			}},
			{Name: "Label Bags", Notes: "Apply strain labels", Materials: []recipe.MaterialInput{
				{Name: "Strain label", QuantityPerUnit: 1, Unit: "ea"},
			}},
			{Name: "Pack Master Cases", Unit: "cases", Notes: "50 bags per case"},
			{Name: "Sticker Cases", Unit: "cases", Notes: "Apply compliance stickers"},
			{Name: "Box for Shipping", Unit: "cases", Notes: "Prepare for transport"},
		},
	})
	if err != nil {
		return fmt.Errorf("creating recipe: %w", err)
	}

	maria, james := workers["Maria"], workers["James"]
	b, err := a.Batches.Create(ctx, batch.CreateRequest{
		RecipeID:       rec.ID,
		Name:           demoRecipe + " Batch #047",
		TargetQuantity: 500,
		WorkerIDs:      []string{maria.ID, james.ID},
	})
	if err != nil {
		return fmt.Errorf("creating batch: %w", err)
	}

	progress := []struct {
		step     int
		by       *worker.Worker
		quantity int
		note     string
	}{
		{0, maria, 0, "Bags ready"},
		{1, maria, 0, "Weighed out"},
		{2, james, 0, "All sifted"},
		{3, maria, 200, "Morning shift"},
		{3, james, 150, "Afternoon batch"},
	}
	for _, p := range progress {
		_, err := a.Batches.LogProgress(ctx, batch.LogRequest{
			BatchID:    b.ID,
			StepID:     b.Steps[p.step].ID,
			WorkerID:   p.by.ID,
			WorkerName: p.by.Name,
			Quantity:   p.quantity,
			Note:       p.note,
		})
		if err != nil {
			return fmt.Errorf("logging %q: %w", b.Steps[p.step].Name, err)
		}
	}

	logger.Info("seeded demo batch", "batch_id", b.ID, "steps", len(b.Steps))
	return nil
}

func ensureWorker(ctx context.Context, workers *worker.Service, dw demoWorker) (*worker.Worker, error) {
	w, err := workers.Identify(ctx, dw.pin)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, worker.ErrInvalidPIN) {
		return nil, fmt.Errorf("looking up %s: %w", dw.name, err)
	}

	w, err = workers.WithPINSource(func() string { return dw.pin }).
		Create(ctx, worker.CreateRequest{Name: dw.name, Role: dw.role})
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", dw.name, err)
	}
	return w, nil
}
