package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/rpggio/batchflow/internal/domain/worker"
)

// SessionCookie carries the signed-in worker's ID.
const SessionCookie = "workerId"

const sessionMaxAge = 7 * 24 * time.Hour

type workerKey struct{}

// WorkerLookup resolves the session cookie to a worker.
type WorkerLookup interface {
	Get(ctx context.Context, id string) (*worker.Worker, error)
}

// WorkerFromContext returns the signed-in worker, if any.
func WorkerFromContext(ctx context.Context) (*worker.Worker, bool) {
	w, ok := ctx.Value(workerKey{}).(*worker.Worker)
	return w, ok && w != nil
}

// WithWorker stores the signed-in worker in ctx.
func WithWorker(ctx context.Context, w *worker.Worker) context.Context {
	return context.WithValue(ctx, workerKey{}, w)
}

// SessionMiddleware resolves the session cookie. A cookie naming an unknown
// worker is cleared and the request continues anonymously.
func SessionMiddleware(workers WorkerLookup, secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			wk, err := workers.Get(r.Context(), cookie.Value)
			if err != nil {
				clearSessionCookie(w, secure)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithWorker(r.Context(), wk)))
		})
	}
}

// RequireSession rejects requests without a signed-in worker.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := WorkerFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOwner rejects requests from anyone but an OWNER.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wk, ok := WorkerFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !wk.IsOwner() {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func setSessionCookie(w http.ResponseWriter, workerID string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    workerID,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
