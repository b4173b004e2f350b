package server

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
)

const maxRequestIDLen = 64

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.statusCode = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestID propagates X-Request-ID, generating one when absent, and stores
// it in the request context for the engine's audit events.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(goGuard.WithRequestID(r.Context(), id)))
	})
}

func RequestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			logger.InfoContext(r.Context(), "http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", recorder.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

// Recover turns handler panics into 500 responses and reports them to Sentry.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					hub := sentry.CurrentHub().Clone()
					hub.WithScope(func(scope *sentry.Scope) {
						scope.SetTag("request_id", goGuard.RequestIDFromContext(r.Context()))
						scope.SetExtra("stack", string(debug.Stack()))
						hub.RecoverWithContext(r.Context(), rec)
					})

					logger.ErrorContext(r.Context(), "panic_recovered",
						"path", r.URL.Path,
						"method", r.Method,
						"panic", rec,
					)
					middleware.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
