package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bloodbridge/donor-extraction-service/api"
	"github.com/bloodbridge/donor-extraction-service/internal/app"
	"github.com/bloodbridge/donor-extraction-service/internal/config"
	"github.com/bloodbridge/donor-extraction-service/internal/metrics"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	deps := app.New(ctx, cfg, logger, app.Options{Metrics: m, Database: true, Storage: true})
	defer deps.Close()

	opts := api.Options{
		Storage:  deps.Archive != nil,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   logger,
	}
	if deps.Store != nil {
		opts.Stats = deps.Store
		opts.Database = deps.Store
	}
	handler := api.NewHandler(cfg, deps.Pipeline, opts)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	logger.Info("starting donor extraction service",
		"version", api.Version,
		"addr", addr,
		"remote_ocr", cfg.RemoteOCR.Enabled,
		"remote_provider", cfg.RemoteOCR.Provider,
		"ai", cfg.AI.Enabled,
		"ai_provider", cfg.AI.DefaultProvider,
		"languages", cfg.OCR.Languages,
		"database", deps.Store != nil,
		"storage", deps.Archive != nil,
	)
	logger.Info("endpoints",
		"identity", "POST /api/extract/identity",
		"report", "POST /api/extract/report",
		"preview", "POST /api/extract/preview",
		"cross_validate", "POST /api/cross-validate",
		"stats", "GET /api/stats",
		"health", "GET /health",
		"metrics", "GET /metrics",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
