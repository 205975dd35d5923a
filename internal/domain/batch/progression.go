package batch

import (
	"sort"
	"time"

	"github.com/rpggio/batchflow/internal/domain/recipe"
)

// StepTarget converts a base-unit target into a step's unit, rounding up.
// Ratios below 1 count as base units.
func StepTarget(target, ratio int) int {
	if ratio < 1 {
		ratio = 1
	}
	if target <= 0 {
		return 0
	}
	q := target / ratio
	if target%ratio != 0 {
		q++
	}
	return q
}

// Materialize builds a batch from a recipe snapshot. The first step opens
// IN_PROGRESS; every other step starts LOCKED.
func Materialize(rec *recipe.Recipe, req CreateRequest, newID func() string, now time.Time) *Batch {
	startDate := now
	if req.StartDate != nil {
		startDate = *req.StartDate
	}

	b := &Batch{
		ID:             newID(),
		RecipeID:       rec.ID,
		RecipeName:     rec.Name,
		Name:           req.Name,
		TargetQuantity: req.TargetQuantity,
		BaseUnit:       rec.BaseUnit,
		Status:         StatusActive,
		StartDate:      startDate,
		DueDate:        req.DueDate,
		CreatedAt:      now,
		Compliance:     req.Compliance,
	}

	steps := make([]recipe.Step, len(rec.Steps))
	copy(steps, rec.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })

	for i, rs := range steps {
		label, ratio := rec.Measure(rs)
		status := StepLocked
		if i == 0 {
			status = StepInProgress
		}
		recipeStepID := rs.ID
		b.Steps = append(b.Steps, Step{
			ID:             newID(),
			BatchID:        b.ID,
			RecipeStepID:   &recipeStepID,
			Name:           rs.Name,
			Order:          rs.Order,
			Type:           rs.Type,
			UnitLabel:      label,
			UnitRatio:      ratio,
			TargetQuantity: StepTarget(req.TargetQuantity, ratio),
			Status:         status,
		})
	}

	for _, workerID := range dedupe(req.WorkerIDs) {
		b.Assignments = append(b.Assignments, Assignment{WorkerID: workerID, CreatedAt: now})
	}

	return b
}

// StepChange is the new rollup for one step. PreviousCompleted is the value
// the plan was computed from; storage must refuse the write if it moved.
// CeilingStepID names the step whose total caps Completed; empty means the
// batch target does. Progress writes are refused once that cap is below
// Completed.
type StepChange struct {
	StepID            string
	CeilingStepID     string
	PreviousCompleted int
	Completed         int
	Status            StepStatus
}

// BatchChange is a batch status transition.
type BatchChange struct {
	Status        Status
	CompletedDate *time.Time
}

// ProgressPlan is everything a single progress submission writes.
type ProgressPlan struct {
	Log    ProgressLog
	Step   StepChange
	Unlock string
	Batch  *BatchChange
}

// RecomputePlan is everything a log deletion writes.
type RecomputePlan struct {
	Step  StepChange
	Batch *BatchChange
}

// Ceiling is the most a step may ever accumulate: the previous step's
// completed quantity, or the batch target for the first step.
func Ceiling(b *Batch, step Step) int {
	if prev := b.stepByOrder(step.Order - 1); prev != nil {
		return prev.CompletedQuantity
	}
	return b.TargetQuantity
}

func ceilingStepID(b *Batch, step Step) string {
	if prev := b.stepByOrder(step.Order - 1); prev != nil {
		return prev.ID
	}
	return ""
}

// PlanProgress validates a submission against the waterfall rules and
// computes its effects without touching b. log.BatchStepID selects the step
// and log.CreatedAt stamps any batch completion.
func PlanProgress(b *Batch, log ProgressLog) (*ProgressPlan, error) {
	if log.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if b.Status == StatusCancelled {
		return nil, ErrBatchCancelled
	}

	step := b.step(log.BatchStepID)
	if step == nil {
		return nil, ErrStepNotFound
	}
	if step.Status == StepLocked {
		return nil, ErrStepLocked
	}

	ceiling := Ceiling(b, *step)
	newTotal := step.CompletedQuantity + log.Quantity
	if newTotal > ceiling {
		return nil, &CeilingError{
			Current:   step.CompletedQuantity,
			Ceiling:   ceiling,
			Attempted: log.Quantity,
		}
	}

	plan := &ProgressPlan{
		Log: log,
		Step: StepChange{
			StepID:            step.ID,
			CeilingStepID:     ceilingStepID(b, *step),
			PreviousCompleted: step.CompletedQuantity,
			Completed:         newTotal,
			Status:            rollupStatus(newTotal, step.TargetQuantity),
		},
	}

	// Unlocks on any progress, not on completion.
	if next := b.stepByOrder(step.Order + 1); next != nil && next.Status == StepLocked && newTotal > 0 {
		plan.Unlock = next.ID
	}

	if b.Status != StatusCompleted && allComplete(b.Steps, step.ID, newTotal) {
		completedAt := log.CreatedAt
		plan.Batch = &BatchChange{Status: StatusCompleted, CompletedDate: &completedAt}
	}

	return plan, nil
}

// PlanRecompute derives a step's rollup from the sum of its remaining logs.
// A step never returns to LOCKED, even at zero.
func PlanRecompute(b *Batch, stepID string, remaining int) (*RecomputePlan, error) {
	step := b.step(stepID)
	if step == nil {
		return nil, ErrStepNotFound
	}

	plan := &RecomputePlan{
		Step: StepChange{
			StepID:            step.ID,
			PreviousCompleted: step.CompletedQuantity,
			Completed:         remaining,
			Status:            rollupStatus(remaining, step.TargetQuantity),
		},
	}

	if b.Status == StatusCompleted && !allComplete(b.Steps, step.ID, remaining) {
		plan.Batch = &BatchChange{Status: StatusActive}
	}

	return plan, nil
}

// Apply mirrors a persisted plan onto the in-memory batch.
func (p *ProgressPlan) Apply(b *Batch) {
	applyStep(b, p.Step)
	if next := b.step(p.Unlock); next != nil {
		next.Status = StepInProgress
	}
	applyBatch(b, p.Batch)
}

// Apply mirrors a persisted plan onto the in-memory batch.
func (p *RecomputePlan) Apply(b *Batch) {
	applyStep(b, p.Step)
	applyBatch(b, p.Batch)
}

// Retarget changes the batch target and re-derives every step target from
// its snapshotted ratio. Completed quantities and statuses are untouched,
// so existing progress may now exceed a smaller target.
func Retarget(b *Batch, newTarget int) {
	b.TargetQuantity = newTarget
	for i := range b.Steps {
		b.Steps[i].TargetQuantity = StepTarget(newTarget, b.Steps[i].UnitRatio)
	}
}

// SetStatus applies an explicit status change. COMPLETED stamps the
// completion date; any other status clears it.
func SetStatus(b *Batch, status Status, now time.Time) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	b.Status = status
	if status == StatusCompleted {
		completedAt := now
		b.CompletedDate = &completedAt
	} else {
		b.CompletedDate = nil
	}
	return nil
}

// MaterialPreview multiplies per-unit material quantities by a step target.
func MaterialPreview(materials []recipe.Material, stepTarget int) []MaterialNeed {
	if len(materials) == 0 {
		return nil
	}
	needs := make([]MaterialNeed, 0, len(materials))
	for _, m := range materials {
		needs = append(needs, MaterialNeed{
			Name:            m.Name,
			Unit:            m.Unit,
			QuantityPerUnit: m.QuantityPerUnit,
			Total:           m.QuantityPerUnit * float64(stepTarget),
		})
	}
	return needs
}

func rollupStatus(completed, target int) StepStatus {
	if completed >= target {
		return StepCompleted
	}
	return StepInProgress
}

// allComplete checks every step, substituting completed for stepID.
func allComplete(steps []Step, stepID string, completed int) bool {
	for _, s := range steps {
		if s.ID == stepID {
			if completed < s.TargetQuantity {
				return false
			}
			continue
		}
		if !s.Done() {
			return false
		}
	}
	return true
}

func applyStep(b *Batch, change StepChange) {
	if step := b.step(change.StepID); step != nil {
		step.CompletedQuantity = change.Completed
		step.Status = change.Status
	}
}

func applyBatch(b *Batch, change *BatchChange) {
	if change == nil {
		return
	}
	b.Status = change.Status
	b.CompletedDate = change.CompletedDate
}

func (b *Batch) step(id string) *Step {
	if id == "" {
		return nil
	}
	for i := range b.Steps {
		if b.Steps[i].ID == id {
			return &b.Steps[i]
		}
	}
	return nil
}

func (b *Batch) stepByOrder(order int) *Step {
	for i := range b.Steps {
		if b.Steps[i].Order == order {
			return &b.Steps[i]
		}
	}
	return nil
}

// Step returns the step with the given ID.
func (b *Batch) Step(id string) (Step, bool) {
	if s := b.step(id); s != nil {
		return *s, true
	}
	return Step{}, false
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
