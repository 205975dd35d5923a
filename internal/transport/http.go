package transport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rpggio/batchflow/internal/domain/activity"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/shift"
	"github.com/rpggio/batchflow/internal/domain/worker"
	"github.com/rpggio/batchflow/internal/loginguard"
)

// RecipeService defines recipe operations needed by the API.
type RecipeService interface {
	Create(ctx context.Context, req recipe.SaveRequest) (*recipe.Recipe, error)
	Update(ctx context.Context, id string, req recipe.SaveRequest) (*recipe.Recipe, error)
	Get(ctx context.Context, id string) (*recipe.Recipe, error)
	List(ctx context.Context) ([]recipe.Recipe, error)
	Delete(ctx context.Context, id string) error
}

// BatchService defines batch and progress operations needed by the API.
type BatchService interface {
	Create(ctx context.Context, req batch.CreateRequest) (*batch.Batch, error)
	Get(ctx context.Context, id string) (*batch.Batch, error)
	ListActive(ctx context.Context) ([]batch.Batch, error)
	ListFinished(ctx context.Context) ([]batch.Batch, error)
	Update(ctx context.Context, id string, req batch.UpdateRequest) (*batch.Batch, error)
	SetStatus(ctx context.Context, id string, status batch.Status) (*batch.Batch, error)
	LogProgress(ctx context.Context, req batch.LogRequest) (*batch.LogResult, error)
	DeleteLog(ctx context.Context, req batch.DeleteLogRequest) (*batch.DeleteLogResult, error)
	RecentLogs(ctx context.Context, limit int) ([]batch.LogEntry, error)
}

// WorkerService defines worker operations needed by the API.
type WorkerService interface {
	Create(ctx context.Context, req worker.CreateRequest) (*worker.Worker, error)
	Get(ctx context.Context, id string) (*worker.Worker, error)
	List(ctx context.Context) ([]worker.Worker, error)
	Update(ctx context.Context, id string, req worker.UpdateRequest) (*worker.Worker, error)
	Delete(ctx context.Context, id string) error
	Authenticate(ctx context.Context, pin string) (*worker.Worker, error)
	TodayActivity(ctx context.Context, since time.Time) ([]worker.DailyActivity, error)
}

// ShiftService defines shift operations needed by the API.
type ShiftService interface {
	ClockIn(ctx context.Context, workerID string) (*shift.Shift, error)
	ClockOut(ctx context.Context, workerID, notes string) (*shift.Shift, error)
	Current(ctx context.Context, workerID string) (*shift.Current, error)
	List(ctx context.Context, filter shift.Filter) ([]shift.Shift, error)
	Timesheet(ctx context.Context, req shift.TimesheetRequest) (*shift.Timesheet, error)
	ParseDay(value string) (time.Time, error)
}

// ActivityService defines audit trail reads needed by the API.
type ActivityService interface {
	Recent(ctx context.Context, opts activity.ListOptions) ([]activity.Entry, error)
}

// Services contains all domain services needed by the API.
type Services struct {
	Recipes  RecipeService
	Batches  BatchService
	Workers  WorkerService
	Shifts   ShiftService
	Activity ActivityService
}

// Config contains router configuration.
type Config struct {
	Services Services
	// Guard throttles failed logins; nil disables throttling.
	Guard loginguard.Guard
	// Live serves the websocket feed at /api/live.
	Live http.Handler
	// MCP serves the tool endpoint at /mcp.
	MCP http.Handler
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// Location defines day boundaries for "today" summaries.
	Location *time.Location
	Logger   *slog.Logger
}

// Server holds handler dependencies.
type Server struct {
	services      Services
	guard         loginguard.Guard
	secureCookies bool
	loc           *time.Location
	logger        *slog.Logger
	now           func() time.Time
}

// NewServer creates the HTTP router with middleware.
func NewServer(cfg Config) *chi.Mux {
	srv := &Server{
		services:      cfg.Services,
		guard:         cfg.Guard,
		secureCookies: cfg.SecureCookies,
		loc:           cfg.Location,
		logger:        cfg.Logger,
		now:           time.Now,
	}
	if srv.guard == nil {
		srv.guard = loginguard.Nop{}
	}
	if srv.loc == nil {
		srv.loc = time.Local
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	if cfg.MCP != nil {
		r.Handle("/mcp", cfg.MCP)
		r.Handle("/mcp/*", cfg.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Services.Workers, srv.secureCookies))

		r.Post("/auth/login", srv.handleLogin)
		r.Post("/auth/logout", srv.handleLogout)
		r.Get("/auth/logout", srv.handleLogout)

		// Any signed-in worker
		r.Group(func(r chi.Router) {
			r.Use(RequireSession)

			r.Get("/auth/me", srv.handleMe)
			r.Get("/recipes", srv.handleListRecipes)
			r.Get("/recipes/{id}", srv.handleGetRecipe)
			r.Get("/batches", srv.handleListActiveBatches)
			r.Get("/batches/{id}", srv.handleGetBatch)
			r.Post("/batches/{id}/steps/{stepID}/log", srv.handleLogProgress)
			r.Delete("/logs/{id}", srv.handleDeleteLog)
			r.Get("/shifts", srv.handleCurrentShift)
			r.Post("/shifts", srv.handleClockIn)
			r.Patch("/shifts", srv.handleClockOut)
			if cfg.Live != nil {
				r.Handle("/live", cfg.Live)
			}
		})

		// Owners only
		r.Group(func(r chi.Router) {
			r.Use(RequireOwner)

			r.Post("/recipes", srv.handleCreateRecipe)
			r.Put("/recipes/{id}", srv.handleReplaceRecipe)
			r.Delete("/recipes/{id}", srv.handleDeleteRecipe)
			r.Post("/batches", srv.handleCreateBatch)
			r.Get("/batches/completed", srv.handleListFinishedBatches)
			r.Patch("/batches/{id}", srv.handlePatchBatch)
			r.Get("/workers", srv.handleListWorkers)
			r.Post("/workers", srv.handleCreateWorker)
			r.Get("/workers/activity", srv.handleWorkerActivity)
			r.Patch("/workers/{id}", srv.handleUpdateWorker)
			r.Delete("/workers/{id}", srv.handleDeleteWorker)
			r.Get("/activity", srv.handleRecentLogs)
			r.Get("/activity/events", srv.handleActivityEvents)
			r.Get("/shifts/all", srv.handleListShifts)
			r.Get("/timesheet/export", srv.handleTimesheetExport)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
