package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/repository"
)

// Service handles recipe operations.
type Service struct {
	repo       Repository
	activities activity.Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new recipe service. activities may be nil.
func NewService(repo Repository, activities activity.Recorder, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		activities: activities,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and stores a new recipe.
func (s *Service) Create(ctx context.Context, req SaveRequest) (*Recipe, error) {
	if err := ValidateSaveRequest(req); err != nil {
		return nil, err
	}

	rec := build(uuid.NewString(), req, uuid.NewString)
	rec.CreatedAt = s.now()

	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating recipe: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("recipe created", "recipe_id", rec.ID, "steps", len(rec.Steps), "units", len(rec.Units))
	}
	s.record(ctx, activity.TypeRecipeCreated, fmt.Sprintf("created recipe %q", rec.Name))
	return rec, nil
}

// Update replaces a recipe's fields, units and steps. Batches already
// materialized from it keep their snapshots.
func (s *Service) Update(ctx context.Context, id string, req SaveRequest) (*Recipe, error) {
	if err := ValidateSaveRequest(req); err != nil {
		return nil, err
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	rec := build(id, req, uuid.NewString)
	rec.CreatedAt = current.CreatedAt
	rec.BatchCount = current.BatchCount

	if err := s.repo.Replace(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("updating recipe: %w", err)
	}
	s.record(ctx, activity.TypeRecipeUpdated, fmt.Sprintf("updated recipe %q", rec.Name))
	return rec, nil
}

// Get fetches a recipe with units and steps.
func (s *Service) Get(ctx context.Context, id string) (*Recipe, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, fmt.Errorf("getting recipe: %w", err)
	}
	return rec, nil
}

// List returns all recipes, newest first.
func (s *Service) List(ctx context.Context) ([]Recipe, error) {
	return s.repo.List(ctx)
}

// Delete removes a recipe that no batch references.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrRecipeNotFound
		case errors.Is(err, repository.ErrForeignKeyViolation):
			return ErrInUse
		}
		return fmt.Errorf("deleting recipe: %w", err)
	}
	s.record(ctx, activity.TypeRecipeDeleted, fmt.Sprintf("deleted recipe %s", id))
	return nil
}

func (s *Service) record(ctx context.Context, typ activity.Type, summary string) {
	if s.activities == nil {
		return
	}
	_ = s.activities.Log(ctx, &activity.Entry{Type: typ, Summary: summary, CreatedAt: s.now()})
}
