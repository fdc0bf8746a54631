// Package app wires the configured backends into an extraction pipeline.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bloodbridge/donor-extraction-service/internal/ai"
	"github.com/bloodbridge/donor-extraction-service/internal/db"
	"github.com/bloodbridge/donor-extraction-service/internal/extraction"
	"github.com/bloodbridge/donor-extraction-service/internal/metrics"
	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/ocr"
	"github.com/bloodbridge/donor-extraction-service/internal/ocr/tesseract"
	"github.com/bloodbridge/donor-extraction-service/internal/storage"
)

// App holds the pipeline and its optional diagnostics sinks.
type App struct {
	Pipeline *extraction.Orchestrator
	Metrics  *metrics.Metrics
	Store    *db.Store             // nil without a database
	Archive  *storage.TraceArchive // nil without MinIO
}

// Options selects which optional sinks New connects.
type Options struct {
	Metrics  *metrics.Metrics
	Database bool
	Storage  bool
}

// NewLogger returns a JSON logger at the named level. Unknown levels
// fall back to info.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// New builds the pipeline from cfg. Failures of optional backends are
// logged and the stage or sink is left out.
func New(ctx context.Context, cfg *models.Config, logger *slog.Logger, opts Options) *App {
	a := &App{Metrics: opts.Metrics}

	var recorders []extraction.Recorder
	if opts.Database {
		if store, err := openStore(ctx, cfg.Database); err != nil {
			if errors.Is(err, db.ErrNotConfigured) {
				logger.Info("attempt log disabled", "reason", err)
			} else {
				logger.Warn("database not available, attempt log disabled", "error", err)
			}
		} else {
			a.Store = store
			recorders = append(recorders, store)
		}
	}
	if opts.Storage {
		if archive, err := storage.NewTraceArchive(ctx, cfg.Storage); err != nil {
			logger.Warn("MinIO storage not available, traces will not be archived", "error", err)
		} else {
			a.Archive = archive
			recorders = append(recorders, archive)
		}
	}

	pre := ocr.NewPreprocessor(cfg.OCR.ImageMagick, logger)
	a.Pipeline = extraction.New(extraction.Options{
		Remote:    remoteRecognizer(cfg.RemoteOCR, logger, opts.Metrics),
		Local:     tesseract.New(pre, cfg.OCR.Languages, logger),
		AI:        textParser(cfg.AI, logger),
		Config:    *cfg,
		Logger:    logger,
		Metrics:   opts.Metrics,
		Recorders: recorders,
	})
	return a
}

// Close releases the database pool.
func (a *App) Close() {
	if a.Store != nil {
		a.Store.Close()
	}
}

func openStore(ctx context.Context, cfg models.DatabaseConfig) (*db.Store, error) {
	url, err := db.ConnString(cfg, os.Getenv)
	if err != nil {
		return nil, err
	}
	store, err := db.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func remoteRecognizer(cfg models.RemoteOCRConfig, logger *slog.Logger, m *metrics.Metrics) ocr.RemoteRecognizer {
	if !cfg.Enabled {
		return nil
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "ocrspace":
		if cfg.OCRSpace.APIKey == "" {
			logger.Warn("remote OCR disabled", "provider", "ocrspace", "error", "missing api key")
			return nil
		}
		return ocr.NewOCRSpaceClient(cfg, logger, ocr.WithRetryObserver(m.IncrementRetry))
	case "documentai":
		return ocr.NewDocumentAIClient(cfg, logger, m.IncrementRetry)
	default:
		logger.Warn("remote OCR disabled", "error", fmt.Sprintf("unsupported provider %q", cfg.Provider))
		return nil
	}
}

func textParser(cfg models.AIConfig, logger *slog.Logger) extraction.TextParser {
	if !cfg.Enabled {
		return nil
	}
	provider, err := ai.NewProvider(cfg)
	if err != nil {
		logger.Warn("AI extraction disabled", "error", err)
		return nil
	}
	return ai.NewExtractor(provider, cfg)
}
