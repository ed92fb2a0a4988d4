// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it connects handlers, middleware, and routes.
// It decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → sqlite.DB → SnippetService / TagService / AuthService → handlers
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/snippet-share/internal/auth"
	"github.com/sakif/snippet-share/internal/config"
	"github.com/sakif/snippet-share/internal/handler"
	"github.com/sakif/snippet-share/internal/middleware"
	sqliteRepo "github.com/sakif/snippet-share/internal/repository/sqlite"
	"github.com/sakif/snippet-share/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish on shutdown.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained, so no request ever runs against a closed pool.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	registry *prometheus.Registry
}

// New opens the database, builds every layer and registers the routes.
//
// IMPORT ALIAS:
// repository/sqlite is imported as `sqliteRepo` so it cannot be confused with
// the modernc.org/sqlite driver package.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		registry: prometheus.NewRegistry(),
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Handler returns the root handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database. Start calls it on shutdown; tests that never
// call Start call it directly.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added:
// 1. RequestID: unique ID per request, picked up by the logger
// 2. RealIP: client IP from proxy headers, used by the rate limiter
// 3. Logger and Metrics: observe the final status of every request
// 4. Recoverer: turns panics into 500s (inside the observers, so they see the 500)
// 5. CORS and rate limiting
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := middleware.NewMetrics(s.registry)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.config.Server.RateLimit > 0 {
		s.router.Use(httprate.LimitByIP(s.config.Server.RateLimit, time.Minute))
	}

	// === DEPENDENCY CHAIN ===
	// s.db implements every repository interface. Services receive the
	// interfaces, handlers receive the services. The handler never touches
	// the database and the service never touches HTTP.
	snippetService := service.NewSnippetService(s.db, s.logger)
	tagService := service.NewTagService(s.db, s.logger)
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordHasher(s.config.Auth.BcryptCost), s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHub.ClientID, s.config.GitHub.ClientSecret, s.config.GitHub.CallbackURL)
	}

	snippets := handler.NewSnippetHandler(snippetService, s.logger)
	tags := handler.NewTagHandler(tagService, s.logger)
	accounts := handler.NewAuthHandler(authService, github, handler.CookieOptions{
		TTL:    tokens.TTL(),
		Secure: s.config.Server.SecureCookies,
	}, s.logger)
	health := handler.NewHealthHandler(s.db, s.logger)

	// === Operational ===
	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", middleware.Handler(s.registry))

	// === Public ===
	s.router.Get("/snippets/public", snippets.HandleListPublic)
	s.router.Get("/snippet/public/{id}", snippets.HandleGetPublic)
	s.router.Get("/snippets/popular", snippets.HandleListPopular)

	s.router.Post("/register", accounts.HandleRegister)
	s.router.Post("/login", accounts.HandleLogin)
	s.router.Post("/logout", accounts.HandleLogout)
	if github != nil {
		s.router.Get("/auth/github/login", accounts.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", accounts.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub login disabled: github.client_id / github.client_secret not set")
	}

	// === Authenticated ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/user", accounts.HandleMe)

		r.Post("/create-snippet", snippets.HandleCreate)
		r.Get("/snippets", snippets.HandleListMine)
		r.Get("/snippets/liked", snippets.HandleListLiked)
		r.Get("/snippets/bookmarked", snippets.HandleListBookmarked)
		r.Get("/snippet/{id}", snippets.HandleGetOwned)
		r.Patch("/snippet/{id}", snippets.HandleUpdate)
		r.Delete("/snippet/{id}", snippets.HandleDelete)
		r.Patch("/snippet/like/{id}", snippets.HandleToggleLike)
		r.Patch("/snippet/bookmark/{id}", snippets.HandleToggleBookmark)
		r.Get("/leaderboard", snippets.HandleLeaderboard)

		r.Post("/create-tag", tags.HandleCreate)
		r.Get("/get-tags", tags.HandleList)
		r.Get("/tag/{id}", tags.HandleGet)
		r.Delete("/tag/{id}", tags.HandleDelete)

		r.With(auth.RequireAdmin(s.db)).Post("/bulk-tags", tags.HandleBulkCreate)
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
			slog.String("database", s.config.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
