package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `batchflow tracks production batches moving through ordered recipe steps.

Core concepts:
- Recipe: a template with a base unit, optional packaging units (e.g. cases of 20) and ordered steps.
- Batch: one production run of a recipe with a target in base units. Steps are snapshotted at creation.
- Step: LOCKED until the previous step has any progress, then IN_PROGRESS, COMPLETED at its target.
- Ceiling: a step's completed quantity can never exceed the previous step's completed quantity.

Workflow:
1) Orient: list_active_batches shows every running batch with per-step progress.
2) Inspect: get_batch returns steps, logs, material needs and assignments.
3) Record: log_progress adds units to one step as you. Quantities are in the step's unit.
   - CHECK steps accept quantity 0 to mark the whole step done.
   - CEILING_EXCEEDED errors report current, ceiling and attempted; log less or finish the previous step.
   - CONFLICT means someone logged at the same moment; re-read and retry.
4) Correct: delete_progress_log removes a mistaken entry (your own, or any if you are an owner).

Docs:
- batchflow://docs/waterfall (progression rules and worked example)
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "batchflow://docs/waterfall",
		Name:        "waterfall",
		Title:       "Waterfall progression",
		Description: "How step targets, ceilings and unlocking work",
		Content: `# Waterfall progression

## Step targets

Each step counts in its own unit. Its target is the batch target divided by
the unit's ratio, rounded up: 100 units in cases of 20 is 5 cases, and 101
units is 6 cases.

## Ceilings

The first step can reach the batch target. Every later step can reach
whatever the previous step has completed so far, in the previous step's
count. A submission that would pass the ceiling is rejected whole.

## Unlocking

A LOCKED step opens as soon as the step before it has any progress, not
when it completes. Deleting logs never relocks a step.

## Completion

The batch completes when every step reaches its target, stamped with the
time of the log that finished it. Deleting a log from a completed batch
returns it to ACTIVE.

## Example

Recipe: Bag (units), Case (cases of 20), QA (CHECK, cases).
Batch target 100.

1. Log 40 on Bag. Case unlocks; its ceiling is 40.
2. Log 2 on Case. QA unlocks; its ceiling is 2.
3. Log 3 on QA. Rejected: QA's ceiling is Case's 2.
4. Log 3 more on Case, then 0 on QA (a CHECK) to finish it. Once Bag
   reaches 100 the batch completes.

Ceilings compare raw counts and do not convert between units.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
