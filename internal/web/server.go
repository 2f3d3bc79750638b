// Package web serves the import API: preview an upload, inspect or
// discard the stored preview, then commit it.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/shplep/homecontentslistpro-sub000/internal/config"
	"github.com/shplep/homecontentslistpro-sub000/internal/core"
	"github.com/shplep/homecontentslistpro-sub000/internal/metrics"
	"github.com/shplep/homecontentslistpro-sub000/internal/ratelimit"
	"github.com/shplep/homecontentslistpro-sub000/internal/web/middleware"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the HTTP surface. Service is required;
// a nil limiter disables that rate limit.
type Deps struct {
	Service       *core.Service
	Metrics       *metrics.Metrics
	Store         Pinger
	GlobalLimiter ratelimit.Limiter
	ImportLimiter ratelimit.Limiter
}

// Server is the HTTP server for the import API.
type Server struct {
	service  *core.Service
	metrics  *metrics.Metrics
	store    Pinger
	cfg      *config.Config
	validate *validator.Validate
	router   *chi.Mux
	server   *http.Server
}

// NewServer builds the router.
func NewServer(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Service == nil {
		return nil, errors.New("new server: service is required")
	}
	s := &Server{
		service:  deps.Service,
		metrics:  deps.Metrics,
		store:    deps.Store,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware(deps.GlobalLimiter)
	s.setupRoutes(deps.ImportLimiter)
	return s, nil
}

func (s *Server) setupMiddleware(global ratelimit.Limiter) {
	var rec middleware.HTTPRecorder
	if s.metrics != nil {
		rec = s.metrics
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.RequestLogger(rec))
	s.router.Use(chimw.Recoverer)
	s.router.Use(securityHeaders)
	if global != nil {
		s.router.Use(middleware.RateLimit(global, middleware.ByIP))
	}
}

func (s *Server) setupRoutes(imports ratelimit.Limiter) {
	timeout := func(next http.Handler) http.Handler { return next }
	if s.cfg.Server.RequestTimeout > 0 {
		timeout = chimw.Timeout(s.cfg.Server.RequestTimeout)
	}

	s.router.With(timeout).Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled && s.cfg.Metrics.Path != "" && s.metrics != nil {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics.Handler())
	}

	s.router.Route("/api/imports", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Security))
		r.Use(middleware.RequireOwner)

		limited := r
		if imports != nil {
			limited = r.With(middleware.RateLimit(imports, middleware.ByOwner))
		}

		r.With(timeout).Get("/audit", s.handleAuditLog)
		r.With(timeout).Get("/{previewID}", s.handleGetPreview)
		r.With(timeout).Delete("/{previewID}", s.handleDiscardPreview)
		limited.With(timeout).Post("/preview", s.handlePreview)

		// Commit waits on its own timeout inside the service.
		limited.Post("/{previewID}/commit", s.handleCommit)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
