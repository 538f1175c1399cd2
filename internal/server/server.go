// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the wiring layer — it connects handlers, middleware, and
// routes. It is the composition root: every dependency in the app is
// assembled here (database → repositories → services → handlers), rather
// than scattered across the codebase.
//
// Keeping server setup out of main.go makes it testable: tests can build a
// fully wired router with Router() without binding a port.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/miniponz/food-share-application/internal/auth"
	"github.com/miniponz/food-share-application/internal/geocode"
	"github.com/miniponz/food-share-application/internal/handler"
	"github.com/miniponz/food-share-application/internal/middleware"
	sqliteRepo "github.com/miniponz/food-share-application/internal/repository/sqlite"
	"github.com/miniponz/food-share-application/internal/search"
	"github.com/miniponz/food-share-application/internal/service"
)

// Config holds server configuration. Using a struct (instead of individual
// parameters) means new options don't change function signatures, and config
// loading stays in one place (main.go).
type Config struct {
	Port      int
	DBPath    string
	JWTSecret string
}

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection. When the server shuts down, the
// connection must be closed to flush pending writes and release the file
// lock; Start() handles this during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New creates a Server with the given config.
//
// The geocoder is injected rather than constructed here so tests (and any
// future alternative provider) can substitute one without touching the
// wiring. Everything else in the dependency chain is assembled in order:
//
//  1. sqlite.New opens the database; Listings()/Users() are its repositories
//  2. services receive the repository interfaces, never the concrete stores
//  3. handlers receive the services, never the repositories
func New(cfg Config, logger *slog.Logger, geocoder geocode.Geocoder) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(geocoder); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// Router returns the fully wired handler. Exposed for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE (all under /api/v1):
//
//	POST   /auth/signup                → create account, returns {user, token}
//	POST   /auth/signin                → exchange credentials for a token
//	GET    /auth/verify                → account behind the token      [auth]
//	POST   /listings                   → create listing                [auth]
//	GET    /listings                   → all listings                  [auth]
//	GET    /listings/{id}              → single listing                [auth]
//	PATCH  /listings/{id}              → partial update                [auth]
//	DELETE /listings/{id}              → archive (soft delete)         [auth]
//	GET    /listings/user/{userId}     → listings posted by a user
//	GET    /listings/zip/{zip}         → listings in a zip code
//	GET    /listings/close             → near the caller's address     [auth]
//	GET    /listings/close/zip         → near an arbitrary zip
//	GET    /listings/hotzips           → most active zip codes
//	GET    /listings/keyword           → title keyword search
//	GET    /listings/keyword/close     → keyword search near a zip
//	GET    /listings/dietary           → dietary flag filter
//	GET    /listings/dietary/close     → dietary filter near a zip
//
// Static sub-routes like /listings/close are registered alongside
// /listings/{id}; chi matches literal segments before parameters so the
// search routes are never shadowed by the ID route.
//
// MIDDLEWARE ORDER MATTERS — middleware executes in the order it's added:
// RequestID first (for tracing), then RealIP, then our request logger, then
// Recoverer so panics are logged as 500s instead of crashing the process.
func (s *Server) setupRoutes(geocoder geocode.Geocoder) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()

	listings := s.db.Listings()
	users := s.db.Users()

	authService := service.NewAuthService(users, passwords, tokens, geocoder, s.logger)
	listingService := service.NewListingService(listings, users, geocoder, s.logger)
	searchService := search.NewService(listings, geocoder, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	listingHandler := handler.NewListingHandler(listingService, s.logger)
	searchHandler := handler.NewSearchHandler(searchService, authService, s.logger)

	requireAuth := auth.RequireAuth(tokens)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.HandleSignup)
			r.Post("/signin", authHandler.HandleSignin)
			r.With(requireAuth).Get("/verify", authHandler.HandleVerify)
		})

		r.Route("/listings", func(r chi.Router) {
			// Public discovery routes.
			r.Get("/user/{userId}", listingHandler.HandleListByUser)
			r.Get("/zip/{zip}", listingHandler.HandleListByZip)
			r.Get("/close/zip", searchHandler.HandleCloseZip)
			r.Get("/hotzips", searchHandler.HandleHotZips)
			r.Get("/keyword", searchHandler.HandleKeyword)
			r.Get("/keyword/close", searchHandler.HandleKeywordClose)
			r.Get("/dietary", searchHandler.HandleDietary)
			r.Get("/dietary/close", searchHandler.HandleDietaryClose)

			// Routes that act on behalf of a signed-in user.
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", listingHandler.HandleCreate)
				r.Get("/", listingHandler.HandleList)
				r.Get("/close", searchHandler.HandleClose)
				r.Get("/{id}", listingHandler.HandleGetByID)
				r.Patch("/{id}", listingHandler.HandleUpdate)
				r.Delete("/{id}", listingHandler.HandleDelete)
			})
		})
	})

	return nil
}

// Start starts the HTTP server and handles graceful shutdown:
//
//  1. stop accepting new connections on SIGINT/SIGTERM
//  2. wait up to 30s for in-flight requests to finish
//  3. close the database connection (flushes WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
