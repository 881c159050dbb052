package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shapedtime/subvault/internal/api"
	"github.com/shapedtime/subvault/internal/config"
	"github.com/shapedtime/subvault/internal/engine"
	"github.com/shapedtime/subvault/internal/metrics"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting subvault", "config", *configPath)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Ensure required directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		slog.Error("Failed to create directories", "error", err)
		os.Exit(1)
	}

	// Initialize metrics
	registry := prometheus.NewRegistry()
	met := metrics.New(registry)

	// Initialize the retrieval engine
	eng := engine.New(cfg, met)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := eng.Init(ctx); err != nil {
		cancel()
		slog.Error("Failed to initialize engine", "error", err)
		os.Exit(1)
	}
	cancel()
	defer eng.Close()

	registry.MustRegister(metrics.NewStoreCollector(eng.Store()))

	// Initialize servers
	apiServer := api.NewServer(eng)
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort, registry)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: apiServer.Handler(),
	}

	// Start servers in goroutines
	go func() {
		slog.Info("Starting REST API server", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("REST API server error", "error", err)
		}
	}()

	go func() {
		if err := metricsServer.Start(); err != nil {
			slog.Error("Metrics server error", "error", err)
		}
	}()

	slog.Info("subvault is ready",
		"api_url", fmt.Sprintf("http://localhost:%d/api", cfg.Server.HTTPPort),
		"metrics_url", fmt.Sprintf("http://localhost:%d/metrics", cfg.Server.MetricsPort),
	)

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("REST API server shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Metrics server shutdown error", "error", err)
	}

	slog.Info("subvault stopped")
}
