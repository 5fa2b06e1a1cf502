package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cesargomez89/odyvault/internal/catalog"
	"github.com/cesargomez89/odyvault/internal/config"
	"github.com/cesargomez89/odyvault/internal/constants"
	httpapp "github.com/cesargomez89/odyvault/internal/http"
	"github.com/cesargomez89/odyvault/internal/httpclient"
	"github.com/cesargomez89/odyvault/internal/logger"
	"github.com/cesargomez89/odyvault/internal/store"
	"github.com/cesargomez89/odyvault/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize Logger
	appLogger := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	// Initialize DB; migrations must finish before anything else touches it
	db, err := store.Open(context.Background(), store.Options{
		Path:           cfg.DBPath,
		BusyTimeout:    cfg.BusyTimeout,
		AcquireTimeout: cfg.AcquireTimeout,
		MaxReaders:     cfg.MaxReaders,
		Logger:         appLogger,
	})
	if err != nil {
		var migErr *store.MigrationError
		if errors.As(err, &migErr) {
			appLogger.Error("Database migration failed",
				"version", migErr.Version,
				"description", migErr.Description,
				"statement", migErr.Statement,
				"error", migErr.Err)
		} else {
			appLogger.Error("Failed to init DB", "error", err)
		}
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Stores
	cache := store.NewCacheStore(db, cfg.TrackCacheAccess)
	progress := store.NewProgressStore(db)
	settings := store.NewSettingsStore(db)
	diagnostics := store.NewDiagnostics(db, cache, progress, store.MaintenanceOptions{
		StaleProgressAfter: cfg.StaleProgressAfter,
		Vacuum:             cfg.VacuumOnMaintenance,
	})

	// The user's cache_ttl setting wins over the configured default
	cacheTTL := cfg.CacheTTL
	if ttl, err := settings.Duration(context.Background(), constants.SettingCacheTTL); err == nil && ttl > 0 {
		cacheTTL = ttl
	}

	// Initialize Content Fetcher
	client := httpclient.NewClient(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.RequestInterval)
	fetcher, err := catalog.NewFetcher(cfg.Provider, cfg.ProviderURL, client)
	if err != nil {
		appLogger.Error("Failed to init provider", "error", err)
		os.Exit(1)
	}
	content := catalog.NewCachedFetcher(fetcher, cache, cacheTTL, appLogger)

	// Initialize Worker
	w := worker.NewWorker(cache, diagnostics, cfg.SweepInterval, cfg.MaintenanceInterval, appLogger)
	w.Start()
	defer w.Stop()

	// Initialize Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Routes
	h := httpapp.NewHandler(db, content, cache, diagnostics, appLogger)
	h.RegisterRoutes(r)

	// Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Info("Server listening", "addr", srv.Addr, "db", cfg.DBPath, "provider", cfg.Provider)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exiting")
}
