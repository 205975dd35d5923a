package mcp

import (
	"context"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/batchflow/internal/domain/batch"
	"github.com/rpggio/batchflow/internal/domain/recipe"
	"github.com/rpggio/batchflow/internal/domain/worker"
)

// RecipeService defines recipe operations needed by MCP.
type RecipeService interface {
	List(ctx context.Context) ([]recipe.Recipe, error)
}

// BatchService defines batch operations needed by MCP.
type BatchService interface {
	ListActive(ctx context.Context) ([]batch.Batch, error)
	Get(ctx context.Context, id string) (*batch.Batch, error)
	LogProgress(ctx context.Context, req batch.LogRequest) (*batch.LogResult, error)
	DeleteLog(ctx context.Context, req batch.DeleteLogRequest) (*batch.DeleteLogResult, error)
}

// Authenticator resolves a bearer PIN to a worker.
type Authenticator interface {
	Identify(ctx context.Context, pin string) (*worker.Worker, error)
}

// Services contains all domain services needed by MCP.
type Services struct {
	Recipes RecipeService
	Batches BatchService
}

// Config contains server configuration.
type Config struct {
	Services Services
	// Auth checks bearer PINs on HTTP requests.
	Auth Authenticator
	// Worker, when set, is the actor for every call and bearer auth is
	// skipped. Stdio mode uses this.
	Worker *worker.Worker
	Logger *slog.Logger
}

// NewServer creates and configures an MCP server with all tools and middleware.
func NewServer(cfg Config) *sdkmcp.Server {
	server := sdkmcp.NewServer(&sdkmcp.Implementation{
		Name:    "batchflow",
		Version: "0.1.0",
	}, &sdkmcp.ServerOptions{
		Instructions: serverInstructions,
		Logger:       cfg.Logger,
	})

	registerDocResources(server)

	if cfg.Worker != nil {
		server.AddReceivingMiddleware(fixedWorkerMiddleware(cfg.Worker))
	} else {
		server.AddReceivingMiddleware(authMiddleware(cfg.Auth))
	}
	server.AddReceivingMiddleware(trafficLoggingMiddleware(cfg.Logger, "inbound"))
	server.AddSendingMiddleware(trafficLoggingMiddleware(cfg.Logger, "outbound"))

	registerTools(server, cfg.Services, cfg.Logger)

	return server
}
