package mcp

import (
	"time"

	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
)

type ListActiveBatchesParams struct{}

type ListRecipesParams struct{}

type GetBatchParams struct {
	BatchID string `json:"batch_id" jsonschema:"ID of the batch"`
}

type LogProgressParams struct {
	BatchID  string `json:"batch_id" jsonschema:"ID of the batch"`
	StepID   string `json:"step_id" jsonschema:"ID of the batch step"`
	Quantity int    `json:"quantity,omitempty" jsonschema:"units completed in the step's unit; 0 on a CHECK step marks the whole step done"`
	Note     string `json:"note,omitempty" jsonschema:"optional free-text note"`
}

type DeleteProgressLogParams struct {
	LogID string `json:"log_id" jsonschema:"ID of the progress log to remove"`
}

// BatchSummary is a compact view of a batch for listings.
type BatchSummary struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Recipe         string        `json:"recipe"`
	TargetQuantity int           `json:"target_quantity"`
	BaseUnit       string        `json:"base_unit"`
	Status         batch.Status  `json:"status"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
	Steps          []StepSummary `json:"steps"`
}

// StepSummary is one waterfall step with its rollup.
type StepSummary struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      recipe.StepType  `json:"type"`
	Unit      string           `json:"unit"`
	Completed int              `json:"completed"`
	Target    int              `json:"target"`
	Status    batch.StepStatus `json:"status"`
}

// RecipeSummary lists a recipe's steps in order.
type RecipeSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	BaseUnit   string   `json:"base_unit"`
	Steps      []string `json:"steps"`
	BatchCount int      `json:"batch_count"`
}

func summarizeBatch(b batch.Batch) BatchSummary {
	summary := BatchSummary{
		ID:             b.ID,
		Name:           b.Name,
		Recipe:         b.RecipeName,
		TargetQuantity: b.TargetQuantity,
		BaseUnit:       b.BaseUnit,
		Status:         b.Status,
		DueDate:        b.DueDate,
		Steps:          make([]StepSummary, 0, len(b.Steps)),
	}
	for _, s := range b.Steps {
		summary.Steps = append(summary.Steps, StepSummary{
			ID:        s.ID,
			Name:      s.Name,
			Type:      s.Type,
			Unit:      s.UnitLabel,
			Completed: s.CompletedQuantity,
			Target:    s.TargetQuantity,
			Status:    s.Status,
		})
	}
	return summary
}

func summarizeRecipe(r recipe.Recipe) RecipeSummary {
	summary := RecipeSummary{
		ID:         r.ID,
		Name:       r.Name,
		BaseUnit:   r.BaseUnit,
		Steps:      make([]string, 0, len(r.Steps)),
		BatchCount: r.BatchCount,
	}
	for _, s := range r.Steps {
		summary.Steps = append(summary.Steps, s.Name)
	}
	return summary
}
