// Draw Labs - timed drawing practice and gallery server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/draw-labs/internal/api"
	"github.com/ashureev/draw-labs/internal/blob"
	"github.com/ashureev/draw-labs/internal/config"
	"github.com/ashureev/draw-labs/internal/feed"
	"github.com/ashureev/draw-labs/internal/middleware"
	"github.com/ashureev/draw-labs/internal/prompt"
	"github.com/ashureev/draw-labs/internal/store"
	"github.com/ashureev/draw-labs/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "db_driver", cfg.DBDriver)

	// Initialize dependencies.
	repo, err := store.Open(context.Background(), cfg.DBDriver, cfg.DBPath, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	blobs, err := blob.NewDisk(cfg.StorageDir, "drawings")
	if err != nil {
		slog.Error("Failed to initialize image storage", "error", err)
		os.Exit(1)
	}
	slog.Info("Image storage ready", "dir", cfg.StorageDir)

	catalog, err := prompt.Load(cfg.PromptsFile)
	if err != nil {
		slog.Error("Failed to load prompt catalog", "error", err, "path", cfg.PromptsFile)
		os.Exit(1)
	}
	slog.Info("Prompt catalog loaded", "prompts", catalog.Len(), "zone", cfg.PromptTZ.String())

	clock := clockwork.NewRealClock()
	hub := feed.NewHub(cfg.CORSOrigins)

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, blobs, cfg.PublicURL)
	healthHandler := api.NewHealthHandler(repo, 0)
	drawingHandler := api.NewDrawingHandler(baseHandler, hub, clock, cfg.MaxUploadBytes)
	promptHandler := api.NewPromptHandler(catalog, clock, cfg.PromptTZ)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Public routes.
	healthHandler.RegisterHealth(r)
	drawingHandler.RegisterRoutes(r)
	promptHandler.RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// No WriteTimeout: the live feed holds its WebSocket open.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.SweepInterval > 0 {
		blob.NewSweeper(blobs, repo, clock, cfg.SweepGrace).Start(ctx, cfg.SweepInterval)
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...", "live_subscribers", hub.Count())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
