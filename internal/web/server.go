// Package web provides the HTTP server and handlers for the CSV cleaner UI
// and its JSON API.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/JonMunkholm/csvcleaner/internal/auth"
	"github.com/JonMunkholm/csvcleaner/internal/config"
	"github.com/JonMunkholm/csvcleaner/internal/core"
	"github.com/JonMunkholm/csvcleaner/internal/tabular"
	appmw "github.com/JonMunkholm/csvcleaner/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the collaborators the server drives.
type Deps struct {
	Service *core.Service
	Users   auth.UserStore
	Codec   *tabular.Codec

	// Metrics serves /metrics when non-nil.
	Metrics http.Handler

	// Storage names the persistence backend on the dashboard and in /healthz.
	Storage string

	// Ping checks the backing store for /healthz. Nil means always healthy.
	Ping func(context.Context) error
}

// Server is the HTTP server for the CSV cleaner.
type Server struct {
	cfg     *config.Config
	deps    Deps
	router  *chi.Mux
	server  *http.Server
	results *resultStore
}

// NewServer creates a Server with middleware and routes installed.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		router:  chi.NewRouter(),
		results: newResultStore(cfg.Session.TTL),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(appmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(appmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
	}

	s.router.Use(s.securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.rateLimit(newIPRateLimiter(s.cfg.Rate.RequestsPerMinute)))
	}

	s.router.Use(s.loadSession)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	uploads := s.routeLimit(s.cfg.Rate.UploadLimit)
	logins := s.routeLimit(s.cfg.Rate.LoginLimit)

	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	if s.deps.Metrics != nil {
		s.router.With(appmw.APIKeyAuth(&s.cfg.Security)).Handle("/metrics", s.deps.Metrics)
	}

	// Accounts
	s.router.Get("/login", s.handleLoginPage)
	s.router.With(logins).Post("/login", s.handleLogin)
	s.router.Get("/register", s.handleRegisterPage)
	s.router.With(logins).Post("/register", s.handleRegister)
	s.router.Get("/logout", s.handleLogout)
	s.router.Post("/logout", s.handleLogout)

	// Pages
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireSession)
		r.Get("/cleaner", s.handleDashboard)
		r.With(uploads).Post("/cleaner", s.handleClean)
		r.Get("/download", s.handleDownload)
	})

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/operations", s.handleAPIOperations)

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.With(uploads).Post("/clean", s.handleAPIClean)
			r.Get("/history", s.handleAPIHistory)
		})
	})
}

// routeLimit returns a per-IP limiter for one route group, or a pass-through
// when rate limiting is off.
func (s *Server) routeLimit(perMinute int) func(http.Handler) http.Handler {
	if !s.cfg.Rate.Enabled || perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.rateLimit(newIPRateLimiter(perMinute))
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("starting server", "addr", ln.Addr().String(), "storage", s.deps.Storage)
	err := s.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Cleaning runs that still hold an upload slot are drained afterwards, so no
// new run can start between the two steps.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	if s.deps.Service == nil {
		return nil
	}
	if active := s.deps.Service.UploadLimiterStatus().Active; active > 0 {
		slog.Info("waiting for runs to complete", "active", active)
	}
	return s.deps.Service.WaitForRuns(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const contentSecurityPolicy = "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; form-action 'self'; frame-ancestors 'none'"

// securityHeaders adds security headers to all responses.
func (s *Server) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if s.cfg.Security.EnableCSP {
			w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
		}
		next.ServeHTTP(w, r)
	})
}

// uploadTimeout bounds a single cleaning run.
func (s *Server) uploadTimeout() time.Duration {
	if s.cfg.Upload.Timeout > 0 {
		return s.cfg.Upload.Timeout
	}
	return 2 * time.Minute
}
