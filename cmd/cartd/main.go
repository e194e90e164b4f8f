// cartd - Cart session service for the food ordering client.
// Fronts the ordering backend with per-owner cart engines, kitchen
// conflict reconciliation, and a persisted past-kitchen cache.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kitchencart/internal/auth"
	"kitchencart/internal/cache"
	"kitchencart/internal/clientinfo"
	"kitchencart/internal/config"
	"kitchencart/internal/engine"
	"kitchencart/internal/handler"
	"kitchencart/internal/middleware"
	"kitchencart/internal/orderapi"
	"kitchencart/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("backend_url", cfg.Backend.BaseURL),
		slog.String("min_app_version", cfg.MinAppVersion),
	)

	// Open the local store backing the past-kitchen cache. A broken or
	// missing SQLite file degrades to in-memory rather than refusing to
	// start; the cache is advisory.
	kv := openStore(cfg, logger)

	kitchens := cache.New(kv, logger)

	client, err := orderapi.New(orderapi.Config{
		BaseURL: cfg.Backend.BaseURL,
		APIKey:  cfg.Backend.APIKey,
	})
	if err != nil {
		return fmt.Errorf("creating ordering client: %w", err)
	}

	manager := engine.NewManager(client, kitchens, logger)

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.New(cfg.JWTSecret)
	} else {
		logger.Warn("JWT_SECRET not set, all requests treated as anonymous")
	}

	h := handler.New(manager, kitchens, verifier, logger)

	// Setup routes
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	// Apply middleware chain: recovery → request id → logging → client info → handler
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		clientinfo.Middleware(cfg.MinAppVersion, logger),
	)(mux)

	// Create HTTP server with timeouts. WriteTimeout is generous because
	// /cart/stream holds SSE connections open.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding requests time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// openStore opens the SQLite store from config, falling back to an
// in-memory store when no path is configured or the file cannot be opened.
func openStore(cfg *config.Config, logger *slog.Logger) storage.KV {
	if cfg.DBPath == "" {
		logger.Info("no DB_PATH configured, using in-memory store")
		return storage.NewMemoryStore()
	}

	kv, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Warn("opening sqlite store failed, using in-memory store",
			slog.String("path", cfg.DBPath),
			slog.String("error", err.Error()),
		)
		return storage.NewMemoryStore()
	}

	logger.Info("sqlite store opened", slog.String("path", cfg.DBPath))
	return kv
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
