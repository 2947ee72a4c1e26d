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

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"borntoski-evo-sync/internal/config"
	"borntoski-evo-sync/internal/database"
	"borntoski-evo-sync/internal/evo"
	"borntoski-evo-sync/internal/handlers"
	"borntoski-evo-sync/internal/metrics"
	"borntoski-evo-sync/internal/middleware"
	syncpkg "borntoski-evo-sync/internal/sync"
	"borntoski-evo-sync/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set up logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting borntoski-evo-sync server",
		"host", cfg.Host,
		"port", cfg.Port,
		"database", cfg.DatabasePath,
		"sync_interval", cfg.SyncInterval,
		"log_level", cfg.LogLevel)

	// Open database
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		logger.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Init(); err != nil {
		logger.Error("Failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	logger.Info("Database opened successfully")

	// Create EVO client and syncer
	evoClient := evo.NewClient(cfg)
	syncer := syncpkg.New(db, evoClient, cfg)

	// Create handlers
	syncHandler := handlers.NewSyncHandler(syncer, cfg)
	clientsHandler := handlers.NewClientsHandler(db, cfg)
	reportsHandler := handlers.NewReportsHandler(db, cfg)
	healthHandler := handlers.NewHealthHandler(db)

	// Set up HTTP routes
	mux := http.NewServeMux()

	mux.Handle("/sync", middleware.WrapHandler(metrics.EndpointSync, syncHandler.HandleSync))
	mux.Handle("/clients", middleware.WrapHandler(metrics.EndpointClients, clientsHandler.HandleClients))
	mux.Handle("/clients/{id}/history", middleware.WrapHandler(metrics.EndpointHistory, clientsHandler.HandleClientHistory))
	mux.Handle("/level-changes", middleware.WrapHandler(metrics.EndpointLevelChanges, clientsHandler.HandleLevelChanges))
	mux.Handle("/reports/levels", middleware.WrapHandler(metrics.EndpointReports, reportsHandler.HandleLevelReport))
	mux.Handle("/health", middleware.WrapHandler(metrics.EndpointHealth, healthHandler.HandleHealth))

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a triggered sync runs inside the request
		IdleTimeout:  120 * time.Second,
	}

	// Start sync worker in background
	workerInstance := worker.NewWorker(syncer, cfg.SyncInterval).
		WithAgendaSync(cfg.AgendaLookbackDays, func(ctx context.Context, from, to time.Time) (int, error) {
			return syncer.SyncAgenda(ctx, from, to, syncpkg.NewDetailCache())
		})
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go func() {
		logger.Info("Starting sync worker")
		if err := workerInstance.Start(workerCtx); err != nil && err != context.Canceled {
			logger.Error("Sync worker failed", "error", err)
		}
	}()

	// Start table size collector if metrics are enabled
	if cfg.MetricsEnabled {
		go func() {
			logger.Info("Starting table size collector")
			metrics.StartTableSizeCollector(workerCtx, db, 15*time.Second)
		}()
	}

	// Start metrics server if enabled
	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsAddr := fmt.Sprintf("%s:%d", cfg.MetricsHost, cfg.MetricsPort)
		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info("Metrics server listening", "addr", metricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Start HTTP server in background
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gracefully...")

	// Stop worker
	workerCancel()

	// Shutdown HTTP servers with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("Metrics server shutdown failed", "error", err)
		}
	}

	logger.Info("Server stopped")
}
