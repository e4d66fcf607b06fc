package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/docstruct/internal/analyzer"
	"github.com/dgallion1/docstruct/internal/api"
	"github.com/dgallion1/docstruct/internal/config"
	"github.com/dgallion1/docstruct/internal/metrics"
	"github.com/dgallion1/docstruct/internal/pipeline"
	"github.com/joho/godotenv"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// Load .env if present.
	if err := godotenv.Load(); err == nil {
		log.Info("loaded .env")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.APIKey == "" {
		log.Warn("DOCSTRUCT_API_KEY is not set; API endpoints are unauthenticated")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize analysis.
	acfg, err := cfg.Analyzer()
	if err != nil {
		log.Error("invalid analyzer configuration", "error", err)
		os.Exit(1)
	}
	store, closeStore, err := cfg.Profiles()
	if err != nil {
		log.Error("profile store unavailable", "store", cfg.ProfileStore, "error", err)
		os.Exit(1)
	}
	window := metrics.NewWindow(cfg.MetricsWindow)
	a, err := analyzer.New(acfg, store, window, log)
	if err != nil {
		log.Error("analyzer setup failed", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, a, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, window, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		closeStore()
	}()

	log.Info("starting docstruct", "port", cfg.Port, "profile_store", cfg.ProfileStore, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
