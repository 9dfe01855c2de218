// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the wiring layer. It connects the store, the service,
// handlers, middleware and routes, and owns startup and graceful shutdown.
//
// DEPENDENCY INJECTION FLOW:
// main.go builds a config.Config and a logger, then:
//
//	Server.New() creates: RecipeStore (jsonfile or sqlite) + Guard
//	                      → RecipeService → RecipeHandler / HomeHandler
//	                      upload.Store → UploadHandler
//
// This is the "composition root" pattern: all dependencies are wired in
// one place instead of being scattered across the codebase.
package server

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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/recipe-box/internal/config"
	"github.com/sakif/recipe-box/internal/guard"
	"github.com/sakif/recipe-box/internal/handler"
	"github.com/sakif/recipe-box/internal/middleware"
	"github.com/sakif/recipe-box/internal/repository"
	"github.com/sakif/recipe-box/internal/repository/jsonfile"
	sqliteRepo "github.com/sakif/recipe-box/internal/repository/sqlite"
	"github.com/sakif/recipe-box/internal/service"
	"github.com/sakif/recipe-box/internal/upload"
	"github.com/sakif/recipe-box/web"
)

// LockFileName is the advisory lock used when lock mode is "file".
const LockFileName = "recipes.lock"

const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// When the SQLite backend is selected the Server owns the database
// connection and closes it after shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  repository.RecipeStore
	closer io.Closer // nil for the JSON backend
}

// New creates a Server from cfg. Nothing is listening until Start.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, closer, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		closer: closer,
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// openStore creates the selected backend under cfg.DataPath. Both backends
// create the data directory and an empty collection on first start.
func openStore(cfg config.Config, logger *slog.Logger) (repository.RecipeStore, io.Closer, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.DataPath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := sqliteRepo.New(filepath.Join(cfg.DataPath, sqliteRepo.FileName), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		return db, db, nil
	case config.BackendJSON, "":
		store, err := jsonfile.New(filepath.Join(cfg.DataPath, jsonfile.FileName), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("opening recipe file: %w", err)
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /                      → Recipe list page (HTML)
// GET    /static/*              → CSS and JS
// GET    /uploads/{filename}    → Uploaded images
// GET    /api/health            → Liveness
// GET    /api/recipes           → List recipes
// POST   /api/recipes           → Create recipe
// GET    /api/recipes/{id}      → Get one recipe
// PATCH  /api/recipes/{id}      → Partial update
// DELETE /api/recipes/{id}      → Delete recipe
// POST   /api/upload            → Upload an image
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID assigns an id that Logger reads
// 2. RealIP extracts the client IP from proxy headers
// 3. Recoverer turns panics into 500s
// 4. Logger logs each request
// 5. CORS answers preflight requests before routing
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	g, err := guard.New(s.config.LockMode, filepath.Join(s.config.DataPath, LockFileName))
	if err != nil {
		return err
	}
	recipeService := service.NewRecipeService(s.store, g, s.logger)

	uploads, err := upload.New(s.config.UploadDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	// === Static Files ===
	// Embedded by default; a directory on disk when configured, which lets
	// the front end be edited without rebuilding.
	static := web.Static()
	if s.config.StaticDir != "" {
		static = os.DirFS(s.config.StaticDir)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	// === Page Routes ===
	templates := web.Templates()
	if s.config.TemplateDir != "" {
		templates = os.DirFS(s.config.TemplateDir)
	}
	homeHandler, err := handler.NewHomeHandler(templates, recipeService, s.logger)
	if err != nil {
		return fmt.Errorf("creating home handler: %w", err)
	}
	s.router.Get("/", homeHandler.HandleHome)

	// === API Routes ===
	// The handler never touches the store directly and the service never
	// touches HTTP.
	recipeHandler := handler.NewRecipeHandler(recipeService, s.logger)
	uploadHandler := handler.NewUploadHandler(uploads, s.config.MaxUploadBytes, s.logger)

	s.router.Get("/uploads/{filename}", uploadHandler.HandleServe)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", handler.HandleHealth)

		r.Route("/recipes", func(r chi.Router) {
			r.Get("/", recipeHandler.HandleList)
			r.Post("/", recipeHandler.HandleCreate)
			r.Get("/{id}", recipeHandler.HandleGet)
			r.Patch("/{id}", recipeHandler.HandleUpdate)
			r.Delete("/{id}", recipeHandler.HandleDelete)
		})

		r.Post("/upload", uploadHandler.HandleUpload)
	})

	return nil
}

// Handler returns the fully wired router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the store. It is safe to call more than once.
func (s *Server) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// Start runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Close the database connection, if any
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
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
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("store", s.config.StoreBackend),
			slog.String("data_path", s.config.DataPath),
			slog.String("lock_mode", string(s.config.LockMode)),
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
