package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Scrappy-Poet-LLC/shipyard/internal/deploystatus"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/githubapp"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/registry"
	"github.com/Scrappy-Poet-LLC/shipyard/internal/syncer"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout  = 10 * time.Second
	HTTPWriteTimeout = 60 * time.Second
	HTTPIdleTimeout  = 60 * time.Second

	// Request timeout for middleware. Deployment batches fan out to the
	// GitHub API, so this is the only bound on a hung upstream call.
	RequestTimeout = 60 * time.Second

	// Rate limiting - requests per minute
	GlobalRateLimit  = 60
	WebhookRateLimit = 10
)

// Server represents the HTTP server
type Server struct {
	Registry *registry.Registry
	App      *githubapp.App
	Syncer   *syncer.Syncer
	Auth     Authenticator
	Logger   *slog.Logger
	TestMode bool

	// resolve produces the per-installation API client for the aggregator;
	// overridable in tests.
	resolve deploystatus.ResolveFunc
}

// NewServer creates a new server instance
func NewServer(reg *registry.Registry, app *githubapp.App, sync *syncer.Syncer, auth Authenticator, logger *slog.Logger, testMode bool) *Server {
	return &Server{
		Registry: reg,
		App:      app,
		Syncer:   sync,
		Auth:     auth,
		Logger:   logger,
		TestMode: testMode,
		resolve: func(ctx context.Context, installationID int64) (deploystatus.API, error) {
			return app.InstallationClient(ctx, installationID)
		},
	}
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	// Logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				s.Logger.Info("http_request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"duration_ms", time.Since(start).Milliseconds())
			}()

			next.ServeHTTP(ww, r)
		})
	})

	// Rate limiting middleware (only if not in test mode)
	if !s.TestMode {
		r.Use(NewRateLimitMiddleware(GlobalRateLimit, s.Logger))
	}

	// Routes
	r.Get("/health", s.HandleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireAuth)
		r.Get("/api/deployments", s.HandleDeployments)
		r.Get("/api/deploy-status", s.HandleDeployStatus)
	})

	r.Get("/setup", s.HandleSetup)

	// Webhook route with stricter rate limit
	if !s.TestMode {
		r.With(NewWebhookRateLimitMiddleware(WebhookRateLimit, s.Logger)).Post("/webhooks/github", s.HandleWebhook)
	} else {
		r.Post("/webhooks/github", s.HandleWebhook)
	}

	return r
}

// Start starts the HTTP server
func (s *Server) Start(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	s.Logger.Info("Starting server", "addr", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: HTTPWriteTimeout,
		IdleTimeout:  HTTPIdleTimeout,
	}

	return server.ListenAndServe()
}

// Shutdown closes the server's registry database
func (s *Server) Shutdown(ctx context.Context) error {
	if s.Registry != nil {
		return s.Registry.Close()
	}
	return nil
}
