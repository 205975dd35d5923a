package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/batchflow/internal/domain/batch"
)

type toolHandlers struct {
	services Services
	logger   *slog.Logger
}

func registerTools(server *sdkmcp.Server, services Services, logger *slog.Logger) {
	h := &toolHandlers{services: services, logger: logger}

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_active_batches",
		Description: "List ACTIVE batches with each step's completed and target quantity",
	}, h.listActiveBatches)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "get_batch",
		Description: "Get a batch with steps, progress logs, material needs and assigned workers",
	}, h.getBatch)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name: "log_progress",
		Description: "Record completed units on a batch step as the authenticated worker. " +
			"A step can never exceed what the previous step has completed.",
	}, h.logProgress)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "delete_progress_log",
		Description: "Remove a progress log and recompute its step. Authors and owners only.",
	}, h.deleteProgressLog)

	sdkmcp.AddTool(server, &sdkmcp.Tool{
		Name:        "list_recipes",
		Description: "List recipes with their step names and batch counts",
	}, h.listRecipes)
}

func (h *toolHandlers) listActiveBatches(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ListActiveBatchesParams) (*sdkmcp.CallToolResult, any, error) {
	batches, err := h.services.Batches.ListActive(ctx)
	if err != nil {
		return h.toolError(ctx, "list_active_batches", err)
	}
	out := make([]BatchSummary, 0, len(batches))
	for _, b := range batches {
		out = append(out, summarizeBatch(b))
	}
	return jsonResult(out)
}

func (h *toolHandlers) getBatch(ctx context.Context, _ *sdkmcp.CallToolRequest, in GetBatchParams) (*sdkmcp.CallToolResult, any, error) {
	b, err := h.services.Batches.Get(ctx, in.BatchID)
	if err != nil {
		return h.toolError(ctx, "get_batch", err)
	}
	return jsonResult(b)
}

func (h *toolHandlers) logProgress(ctx context.Context, _ *sdkmcp.CallToolRequest, in LogProgressParams) (*sdkmcp.CallToolResult, any, error) {
	w := workerFrom(ctx)
	if w == nil {
		return nil, nil, ErrUnauthorized
	}
	result, err := h.services.Batches.LogProgress(ctx, batch.LogRequest{
		BatchID:    in.BatchID,
		StepID:     in.StepID,
		WorkerID:   w.ID,
		WorkerName: w.Name,
		Quantity:   in.Quantity,
		Note:       in.Note,
	})
	if err != nil {
		return h.toolError(ctx, "log_progress", err)
	}
	return jsonResult(map[string]any{
		"progress_log": result.Log,
		"step":         result.Step,
		"batch":        summarizeBatch(*result.Batch),
	})
}

func (h *toolHandlers) deleteProgressLog(ctx context.Context, _ *sdkmcp.CallToolRequest, in DeleteProgressLogParams) (*sdkmcp.CallToolResult, any, error) {
	w := workerFrom(ctx)
	if w == nil {
		return nil, nil, ErrUnauthorized
	}
	result, err := h.services.Batches.DeleteLog(ctx, batch.DeleteLogRequest{
		LogID:        in.LogID,
		ActorID:      w.ID,
		ActorIsOwner: w.IsOwner(),
	})
	if err != nil {
		return h.toolError(ctx, "delete_progress_log", err)
	}
	return jsonResult(result)
}

func (h *toolHandlers) listRecipes(ctx context.Context, _ *sdkmcp.CallToolRequest, _ ListRecipesParams) (*sdkmcp.CallToolResult, any, error) {
	recipes, err := h.services.Recipes.List(ctx)
	if err != nil {
		return h.toolError(ctx, "list_recipes", err)
	}
	out := make([]RecipeSummary, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, summarizeRecipe(r))
	}
	return jsonResult(out)
}

// toolError reports domain failures as tool results the model can read.
// Unexpected errors are logged and hidden.
func (h *toolHandlers) toolError(ctx context.Context, tool string, err error) (*sdkmcp.CallToolResult, any, error) {
	apiErr := MapError(err)
	if apiErr == nil {
		if h.logger != nil {
			h.logger.ErrorContext(ctx, "mcp tool failed", "tool", tool, "error", err)
		}
		apiErr = &APIError{Code: "INTERNAL", Message: "internal error"}
	}
	res, _, _ := jsonResult(apiErr)
	res.IsError = true
	return res, nil, nil
}

func jsonResult(v any) (*sdkmcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil, nil
}
