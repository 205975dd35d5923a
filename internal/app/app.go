// Package app wires storage, domain services and transports together.
package app

import (
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/loginguard"
	"github.com/rpggio/batchflow/internal/mcp"
	"github.com/rpggio/batchflow/internal/realtime"
	"github.com/rpggio/batchflow/internal/sqlite"
	"github.com/rpggio/batchflow/internal/transport"
)

// Options configures the application graph.
type Options struct {
	Location      *time.Location
	Guard         loginguard.Guard
	SecureCookies bool
	// MCPEnabled mounts the streamable MCP endpoint at /mcp.
	MCPEnabled bool
	Logger     *slog.Logger
}

// App holds the wired services and handlers.
type App struct {
	Recipes  *recipe.Service
	Batches  *batch.Service
	Workers  *worker.Service
	Shifts   *shift.Service
	Activity *activity.Service
	Hub      *realtime.Hub
	Router   http.Handler

	logger *slog.Logger
}

// New builds every repository and service on db. The caller runs Hub.
func New(db *sqlite.DB, opts Options) *App {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	recipeRepo := sqlite.NewRecipeRepository(db)
	batchRepo := sqlite.NewBatchRepository(db)
	workerRepo := sqlite.NewWorkerRepository(db)
	shiftRepo := sqlite.NewShiftRepository(db)
	activityRepo := sqlite.NewActivityRepository(db)

	hub := realtime.NewHub(opts.Logger)
	activitySvc := activity.NewService(activityRepo, opts.Logger)

	a := &App{
		Recipes:  recipe.NewService(recipeRepo, activitySvc, opts.Logger),
		Batches:  batch.NewService(batchRepo, recipeRepo, activitySvc, hub, opts.Logger),
		Workers:  worker.NewService(workerRepo, batchRepo, activitySvc, opts.Logger),
		Shifts:   shift.NewService(shiftRepo, batchRepo, activitySvc, loc, opts.Logger),
		Activity: activitySvc,
		Hub:      hub,
		logger:   opts.Logger,
	}

	var mcpHandler http.Handler
	if opts.MCPEnabled {
		server := a.MCPServer(nil)
		mcpHandler = sdkmcp.NewStreamableHTTPHandler(
			func(*http.Request) *sdkmcp.Server { return server },
			&sdkmcp.StreamableHTTPOptions{SessionTimeout: 30 * time.Minute},
		)
	}

	a.Router = transport.NewServer(transport.Config{
		Services: transport.Services{
			Recipes:  a.Recipes,
			Batches:  a.Batches,
			Workers:  a.Workers,
			Shifts:   a.Shifts,
			Activity: a.Activity,
		},
		Guard:         opts.Guard,
		Live:          hub,
		MCP:           mcpHandler,
		SecureCookies: opts.SecureCookies,
		Location:      loc,
		Logger:        opts.Logger,
	})

	return a
}

// MCPServer builds a tool server. A nil actor authenticates each HTTP
// request by bearer PIN; stdio passes the configured worker.
func (a *App) MCPServer(actor *worker.Worker) *sdkmcp.Server {
	return mcp.NewServer(mcp.Config{
		Services: mcp.Services{Recipes: a.Recipes, Batches: a.Batches},
		Auth:     a.Workers,
		Worker:   actor,
		Logger:   a.logger,
	})
}
