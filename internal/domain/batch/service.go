package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/repository"
)

const finishedListLimit = 50

// Service handles batch lifecycle and progress logging.
type Service struct {
	repo       Repository
	recipes    RecipeReader
	activities activity.Recorder
	notifier   Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new batch service. activities and notifier may be nil.
func NewService(
	repo Repository,
	recipes RecipeReader,
	activities activity.Recorder,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:       repo,
		recipes:    recipes,
		activities: activities,
		notifier:   notifier,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest describes a batch materialization.
type CreateRequest struct {
	RecipeID       string
	Name           string
	TargetQuantity int
	StartDate      *time.Time
	DueDate        *time.Time
	WorkerIDs      []string
	Compliance     Compliance
}

// UpdateRequest is a partial batch edit. Nil fields are left alone.
type UpdateRequest struct {
	Name           *string
	TargetQuantity *int
	// DueDate is applied when SetDueDate is true; nil clears it.
	DueDate    *time.Time
	SetDueDate bool
	// WorkerIDs replaces every assignment when non-nil.
	WorkerIDs    *[]string
	MetrcBatchID *string
	LotNumber    *string
	Strain       *string
	PackageTag   *string
}

// LogRequest is a progress submission.
type LogRequest struct {
	BatchID  string
	StepID   string
	WorkerID string
	// WorkerName is echoed on the returned log.
	WorkerName string
	// Quantity may be zero for CHECK steps, meaning "the whole step".
	Quantity int
	Note     string
}

// LogResult is the outcome of a progress submission.
type LogResult struct {
	Log   ProgressLog `json:"progress_log"`
	Step  Step        `json:"step"`
	Batch *Batch      `json:"batch"`
}

// DeleteLogRequest identifies a log and the actor removing it.
type DeleteLogRequest struct {
	LogID        string
	ActorID      string
	ActorIsOwner bool
}

// DeleteLogResult reports the recomputed step.
type DeleteLogResult struct {
	BatchID     string `json:"batch_id"`
	StepID      string `json:"step_id"`
	NewTotal    int    `json:"new_total"`
	BatchStatus Status `json:"batch_status"`
}

// Create materializes a batch from a recipe.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Batch, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.RecipeID == "" || req.Name == "" {
		return nil, fmt.Errorf("%w: recipe and name are required", ErrInvalidInput)
	}
	if req.TargetQuantity <= 0 {
		return nil, fmt.Errorf("%w: target quantity must be greater than 0", ErrInvalidInput)
	}

	rec, err := s.recipes.Get(ctx, req.RecipeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, recipe.ErrRecipeNotFound) {
			return nil, recipe.ErrRecipeNotFound
		}
		return nil, fmt.Errorf("loading recipe: %w", err)
	}
	if len(rec.Steps) == 0 {
		return nil, fmt.Errorf("%w: recipe has no steps", ErrInvalidInput)
	}

	req.Compliance = normalizeCompliance(req.Compliance)
	b := Materialize(rec, req, uuid.NewString, s.now())

	if err := s.repo.Create(ctx, b); err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return nil, fmt.Errorf("%w: unknown worker in assignments", ErrInvalidInput)
		}
		return nil, fmt.Errorf("creating batch: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("batch created", "batch_id", b.ID, "recipe_id", rec.ID, "target", b.TargetQuantity, "steps", len(b.Steps))
	}
	s.record(ctx, activity.TypeBatchCreated, b.ID, "", fmt.Sprintf("created batch %q from %q", b.Name, rec.Name))
	s.publish(EventBatchCreated, b.ID, "")

	return b, nil
}

// Get returns a batch with logs, notes and material previews.
func (s *Service) Get(ctx context.Context, id string) (*Batch, error) {
	b, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, mapBatchErr(err, "getting batch")
	}
	return b, nil
}

// ListActive returns ACTIVE batches, most recently started first.
func (s *Service) ListActive(ctx context.Context) ([]Batch, error) {
	return s.repo.List(ctx, ListOptions{Statuses: []Status{StatusActive}})
}

// ListFinished returns the newest completed or cancelled batches.
func (s *Service) ListFinished(ctx context.Context) ([]Batch, error) {
	return s.repo.List(ctx, ListOptions{
		Statuses:     []Status{StatusCompleted, StatusCancelled},
		ByCompletion: true,
		Limit:        finishedListLimit,
	})
}

// Update applies a partial edit. A target change re-derives every step
// target from the step's snapshotted unit ratio.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest) (*Batch, error) {
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapBatchErr(err, "getting batch")
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		b.Name = name
	}
	if req.TargetQuantity != nil {
		if *req.TargetQuantity <= 0 {
			return nil, fmt.Errorf("%w: target quantity must be greater than 0", ErrInvalidInput)
		}
		Retarget(b, *req.TargetQuantity)
	}
	if req.SetDueDate {
		b.DueDate = req.DueDate
	}
	if req.MetrcBatchID != nil {
		b.Compliance.MetrcBatchID = blankToNil(req.MetrcBatchID)
	}
	if req.LotNumber != nil {
		b.Compliance.LotNumber = blankToNil(req.LotNumber)
	}
	if req.Strain != nil {
		b.Compliance.Strain = blankToNil(req.Strain)
	}
	if req.PackageTag != nil {
		b.Compliance.PackageTag = blankToNil(req.PackageTag)
	}

	replace := req.WorkerIDs != nil
	if replace {
		now := s.now()
		b.Assignments = nil
		for _, workerID := range dedupe(*req.WorkerIDs) {
			b.Assignments = append(b.Assignments, Assignment{WorkerID: workerID, CreatedAt: now})
		}
	}

	if err := s.repo.Update(ctx, b, replace); err != nil {
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return nil, fmt.Errorf("%w: unknown worker in assignments", ErrInvalidInput)
		}
		return nil, mapBatchErr(err, "updating batch")
	}

	s.record(ctx, activity.TypeBatchUpdated, b.ID, "", fmt.Sprintf("edited batch %q", b.Name))
	s.publish(EventBatchUpdated, b.ID, "")

	updated, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapBatchErr(err, "reloading batch")
	}
	return updated, nil
}

// SetStatus changes only the lifecycle label.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) (*Batch, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, mapBatchErr(err, "getting batch")
	}
	_ = SetStatus(b, status, s.now())

	if err := s.repo.SetStatus(ctx, b.ID, b.Status, b.CompletedDate); err != nil {
		return nil, mapBatchErr(err, "updating batch status")
	}

	s.record(ctx, activity.TypeBatchStatus, b.ID, "", fmt.Sprintf("batch %q marked %s", b.Name, status))
	s.publish(EventBatchUpdated, b.ID, "")
	return b, nil
}

// LogProgress appends a progress entry to a step and rolls the waterfall
// forward. Nothing is written when a rule rejects the submission.
func (s *Service) LogProgress(ctx context.Context, req LogRequest) (*LogResult, error) {
	if req.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if req.WorkerID == "" {
		return nil, fmt.Errorf("%w: worker is required", ErrInvalidInput)
	}

	b, err := s.repo.Get(ctx, req.BatchID)
	if err != nil {
		return nil, mapBatchErr(err, "getting batch")
	}
	step, ok := b.Step(req.StepID)
	if !ok {
		return nil, ErrStepNotFound
	}

	quantity := req.Quantity
	if quantity == 0 && step.Type == recipe.StepCheck {
		quantity = step.TargetQuantity
	}

	plan, err := PlanProgress(b, ProgressLog{
		ID:          uuid.NewString(),
		BatchStepID: step.ID,
		WorkerID:    req.WorkerID,
		WorkerName:  req.WorkerName,
		Quantity:    quantity,
		Note:        strings.TrimSpace(req.Note),
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.ApplyProgress(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrConflict
		}
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return nil, fmt.Errorf("%w: unknown worker", ErrInvalidInput)
		}
		return nil, fmt.Errorf("applying progress: %w", err)
	}
	plan.Apply(b)

	if s.logger != nil {
		s.logger.Info("progress logged",
			"batch_id", b.ID,
			"step_id", step.ID,
			"worker_id", req.WorkerID,
			"quantity", quantity,
			"completed", plan.Step.Completed,
		)
	}
	s.record(ctx, activity.TypeProgressLogged, b.ID, req.WorkerID,
		fmt.Sprintf("logged %d %s on %q", quantity, step.UnitLabel, step.Name))
	if plan.Batch != nil {
		s.record(ctx, activity.TypeBatchCompleted, b.ID, "", fmt.Sprintf("batch %q completed", b.Name))
	}
	s.publish(EventProgressLogged, b.ID, step.ID)

	updated, _ := b.Step(step.ID)
	return &LogResult{Log: plan.Log, Step: updated, Batch: b}, nil
}

// DeleteLog removes a progress entry and recomputes its step. Only the
// author or an owner may delete.
func (s *Service) DeleteLog(ctx context.Context, req DeleteLogRequest) (*DeleteLogResult, error) {
	entry, err := s.repo.GetLog(ctx, req.LogID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("getting log: %w", err)
	}
	if entry.WorkerID != req.ActorID && !req.ActorIsOwner {
		return nil, ErrNotAuthorized
	}

	b, plan, err := s.repo.DeleteLog(ctx, req.LogID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, fmt.Errorf("deleting log: %w", err)
	}

	s.record(ctx, activity.TypeProgressDeleted, b.ID, req.ActorID,
		fmt.Sprintf("removed %d %s from %q", entry.Quantity, entry.UnitLabel, entry.StepName))
	s.publish(EventProgressDeleted, b.ID, plan.Step.StepID)

	return &DeleteLogResult{
		BatchID:     b.ID,
		StepID:      plan.Step.StepID,
		NewTotal:    plan.Step.Completed,
		BatchStatus: b.Status,
	}, nil
}

// RecentLogs returns the newest progress entries across all batches.
func (s *Service) RecentLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListLogs(ctx, LogFilter{Limit: limit})
}

// Logs returns progress entries matching filter.
func (s *Service) Logs(ctx context.Context, filter LogFilter) ([]LogEntry, error) {
	return s.repo.ListLogs(ctx, filter)
}

func (s *Service) record(ctx context.Context, typ activity.Type, batchID, workerID, summary string) {
	if s.activities == nil {
		return
	}
	entry := &activity.Entry{Type: typ, Summary: summary, CreatedAt: s.now()}
	if batchID != "" {
		entry.BatchID = &batchID
	}
	if workerID != "" {
		entry.WorkerID = &workerID
	}
	_ = s.activities.Log(ctx, entry)
}

func (s *Service) publish(typ, batchID, stepID string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(Event{Type: typ, BatchID: batchID, StepID: stepID, At: s.now()})
}

func mapBatchErr(err error, op string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrBatchNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

func normalizeCompliance(c Compliance) Compliance {
	return Compliance{
		MetrcBatchID: blankToNil(c.MetrcBatchID),
		LotNumber:    blankToNil(c.LotNumber),
		Strain:       blankToNil(c.Strain),
		PackageTag:   blankToNil(c.PackageTag),
	}
}

func blankToNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
