package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/batchflow/internal/domain/worker"
)

// ErrUnauthorized is returned for calls without a valid bearer PIN.
var ErrUnauthorized = errors.New("unauthorized")

type contextKey int

const workerKey contextKey = iota

// workerFrom extracts the acting worker from context.
func workerFrom(ctx context.Context) *worker.Worker {
	w, _ := ctx.Value(workerKey).(*worker.Worker)
	return w
}

func withWorker(ctx context.Context, w *worker.Worker) context.Context {
	return context.WithValue(ctx, workerKey, w)
}

// authMiddleware resolves "Authorization: Bearer <PIN>" to a worker.
// Handshake and notification traffic passes through unauthenticated.
func authMiddleware(auth Authenticator) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}
			if auth == nil {
				return nil, fmt.Errorf("%w: authentication is not configured", ErrUnauthorized)
			}

			extra := req.GetExtra()
			if extra == nil || extra.Header == nil {
				return nil, fmt.Errorf("%w: missing headers", ErrUnauthorized)
			}

			header := extra.Header.Get("Authorization")
			pin := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if pin == "" {
				return nil, fmt.Errorf("%w: missing bearer PIN", ErrUnauthorized)
			}

			w, err := auth.Identify(ctx, pin)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
			}

			return next(withWorker(ctx, w), method, req)
		}
	}
}

// fixedWorkerMiddleware acts as one configured worker.
func fixedWorkerMiddleware(w *worker.Worker) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			return next(withWorker(ctx, w), method, req)
		}
	}
}
