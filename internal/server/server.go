// Package server is the HTTP surface of the goguard binary: a login endpoint
// behind the lockout gate and rate limited protected resources.
package server

import (
	"context"
	"log/slog"
	"net/http"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/middleware"
)

// Options holds the dependencies for creating a Server.
type Options struct {
	Engine *goGuard.Engine
	Tokens *jwt.Manager
	Logger *slog.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// Health reports backend readiness for GET /healthz. Nil means always ready.
	Health func(context.Context) error
}

// Server wires the engine, token manager and routes together.
type Server struct {
	engine  *goGuard.Engine
	tokens  *jwt.Manager
	logger  *slog.Logger
	health  func(context.Context) error
	mux     *http.ServeMux
	handler http.Handler
}

// New creates a Server and registers all routes.
func New(opts Options) (*Server, error) {
	if opts.Engine == nil {
		return nil, goGuard.ErrEngineNotReady
	}
	if opts.Tokens == nil {
		return nil, errTokensRequired
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		engine: opts.Engine,
		tokens: opts.Tokens,
		logger: logger,
		health: opts.Health,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes(opts.Metrics)
	s.handler = RequestID(Recover(s.logger)(RequestLogging(s.logger)(s.mux)))
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes(metrics http.Handler) {
	s.mux.HandleFunc("POST /login", s.handleLogin)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}

	authenticated := middleware.Authenticate(s.tokens)
	for _, op := range []string{"dashboard", "resources"} {
		guarded := authenticated(middleware.RateLimit(s.engine, op, nil)(s.resource(op)))
		s.mux.Handle("GET /"+op, guarded)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.WarnContext(r.Context(), "health_check_failed", "error", err)
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// resource serves a protected page. Content is a placeholder; what matters
// is the guard chain in front of it.
func (s *Server) resource(operation string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.ClaimsFromContext(r.Context())
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"operation":    operation,
			"identity":     claims.Subject,
			"principal_id": claims.PrincipalID,
		})
	})
}
