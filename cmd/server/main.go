package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/batchflow/internal/app"
	"github.com/rpggio/batchflow/internal/config"
	"github.com/rpggio/batchflow/internal/loginguard"
	"github.com/rpggio/batchflow/internal/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if cfg.Log.Path != "" {
		file, err := openCappedLog(cfg.Log.Path, logCapBytes, logKeepBytes)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = file
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid time zone", "error", err)
		os.Exit(1)
	}

	if err := ensureDBDir(cfg.DB.Path); err != nil {
		logger.Error("failed to prepare database path", "error", err)
		os.Exit(1)
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	guard, closeGuard, err := newLoginGuard(ctx, cfg.Redis.URL, logger)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer closeGuard()

	application := app.New(db, app.Options{
		Location:      loc,
		Guard:         guard,
		SecureCookies: cfg.Production(),
		MCPEnabled:    cfg.MCP.Enabled,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		runStdioMode(ctx, logger, application, cfg.MCP.WorkerPIN)
		return
	}
	runHTTPMode(ctx, logger, application, cfg.Server.Host, cfg.Server.Port)
}

// newLoginGuard throttles failed logins through redis when a URL is set.
func newLoginGuard(ctx context.Context, url string, logger *slog.Logger) (loginguard.Guard, func(), error) {
	if url == "" {
		logger.Info("login throttling disabled", "reason", "no redis url")
		return loginguard.Nop{}, func() {}, nil
	}
	client, err := loginguard.Connect(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("login throttling enabled", "max_failures", loginguard.DefaultMaxFailures, "window", loginguard.DefaultWindow)
	return loginguard.NewRedis(client, loginguard.Options{}, logger), func() { _ = client.Close() }, nil
}

func runStdioMode(ctx context.Context, logger *slog.Logger, application *app.App, pin string) {
	actor, err := application.Workers.Identify(ctx, pin)
	if err != nil {
		logger.Error("stdio worker PIN rejected", "error", err)
		os.Exit(1)
	}
	logger.Info("starting stdio transport", "worker_id", actor.ID, "worker", actor.Name)

	// Run blocks until stdin closes or the context is canceled.
	if err := application.MCPServer(actor).Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func runHTTPMode(ctx context.Context, logger *slog.Logger, application *app.App, host string, port int) {
	go application.Hub.Run(ctx)

	addr := fmt.Sprintf("%s:%d", host, port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
