package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bloodbridge/donor-extraction-service/internal/db"
	"github.com/bloodbridge/donor-extraction-service/internal/extraction"
	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/ocr"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.0.0"
)

// Extractor is the extraction pipeline the handler serves.
type Extractor interface {
	ExtractIdentityDocument(ctx context.Context, path string) (*models.IdentityRecord, error)
	ExtractReportDocument(ctx context.Context, path string) (*models.ReportRecord, error)
	CrossValidate(identity models.IdentityRecord, report models.ReportRecord) models.ValidationResult
}

// StatsSource reports aggregated stage statistics.
type StatsSource interface {
	StageStats(ctx context.Context, since time.Time) ([]db.StageStat, error)
}

// Pinger reports whether an optional dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the optional collaborators of a Handler.
type Options struct {
	Stats     StatsSource // nil when no database is configured
	Database  Pinger
	Storage   bool // trace archive connected
	Gatherer  prometheus.Gatherer
	UploadDir string // "" uses the OS temp dir
	Logger    *slog.Logger
}

// Handler handles HTTP requests for document extraction
type Handler struct {
	config    *models.Config
	extractor Extractor
	opts      Options
	logger    *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, extractor Extractor, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handler{
		config:    config,
		extractor: extractor,
		opts:      opts,
		logger:    logger.With("component", "api"),
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Extraction
	router.HandleFunc("/api/extract/identity", h.ExtractIdentity).Methods("POST")
	router.HandleFunc("/api/extract/report", h.ExtractReport).Methods("POST")
	router.HandleFunc("/api/extract/preview", h.Preview).Methods("POST")
	router.HandleFunc("/api/cross-validate", h.CrossValidate).Methods("POST")

	// Statistics
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Operations
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return router
}

// ExtractIdentity handles a single Aadhaar card upload.
func (h *Handler) ExtractIdentity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.parseForm(w, r) {
		return
	}

	path, cleanup, err := h.saveUpload(r, "file", "document")
	if err != nil {
		h.sendUploadError(w, err)
		return
	}
	defer cleanup()

	start := time.Now()
	rec, err := h.extractor.ExtractIdentityDocument(r.Context(), path)
	if err != nil {
		h.sendExtractionError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"data":          rec,
		"totalDuration": time.Since(start).Seconds(),
	})
}

// ExtractReport handles a single blood report upload.
func (h *Handler) ExtractReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.parseForm(w, r) {
		return
	}

	path, cleanup, err := h.saveUpload(r, "file", "document")
	if err != nil {
		h.sendUploadError(w, err)
		return
	}
	defer cleanup()

	start := time.Now()
	rec, err := h.extractor.ExtractReportDocument(r.Context(), path)
	if err != nil {
		h.sendExtractionError(w, err)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"data":          rec,
		"totalDuration": time.Since(start).Seconds(),
	})
}

// PreviewResponse carries both documents of a registration preview.
// A document that failed has its error set instead of a record.
type PreviewResponse struct {
	Success       bool                     `json:"success"`
	Identity      *models.IdentityRecord   `json:"identity,omitempty"`
	IdentityError string                   `json:"identityError,omitempty"`
	Report        *models.ReportRecord     `json:"report,omitempty"`
	ReportError   string                   `json:"reportError,omitempty"`
	Validation    *models.ValidationResult `json:"validation,omitempty"`
	TotalDuration float64                  `json:"totalDuration"`
}

// Preview extracts both documents of a registration and cross-validates
// them. Each document is optional; at least one is required.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.parseForm(w, r) {
		return
	}

	start := time.Now()
	resp := PreviewResponse{}
	provided := 0

	idPath, idCleanup, err := h.saveUpload(r, "identity", "aadhaar")
	switch {
	case err == nil:
		defer idCleanup()
		provided++
		rec, err := h.extractor.ExtractIdentityDocument(r.Context(), idPath)
		if err != nil {
			resp.IdentityError = err.Error()
		} else {
			resp.Identity = rec
		}
	case !errors.Is(err, errNoFile):
		h.sendUploadError(w, err)
		return
	}

	repPath, repCleanup, err := h.saveUpload(r, "report", "bloodReport")
	switch {
	case err == nil:
		defer repCleanup()
		provided++
		rec, err := h.extractor.ExtractReportDocument(r.Context(), repPath)
		if err != nil {
			resp.ReportError = err.Error()
		} else {
			resp.Report = rec
		}
	case !errors.Is(err, errNoFile):
		h.sendUploadError(w, err)
		return
	}

	if provided == 0 {
		h.sendError(w, http.StatusBadRequest, "No documents provided (use 'identity' and/or 'report' fields)")
		return
	}

	if resp.Identity != nil && resp.Report != nil {
		v := h.extractor.CrossValidate(*resp.Identity, *resp.Report)
		resp.Validation = &v
	}
	resp.Success = resp.IdentityError == "" && resp.ReportError == ""
	resp.TotalDuration = time.Since(start).Seconds()

	json.NewEncoder(w).Encode(resp)
}

// CrossValidateRequest is the body of POST /api/cross-validate.
type CrossValidateRequest struct {
	Identity models.IdentityRecord `json:"identity"`
	Report   models.ReportRecord   `json:"report"`
}

// CrossValidate compares two records supplied by the caller, for example
// after manual corrections.
func (h *Handler) CrossValidate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req CrossValidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.extractor.CrossValidate(req.Identity, req.Report)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":    true,
		"validation": result,
	})
}

// GetStats returns per-stage statistics for the last ?hours= hours
// (default 24).
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.opts.Stats == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 24*90 {
			h.sendError(w, http.StatusBadRequest, "hours must be between 1 and 2160")
			return
		}
		hours = n
	}

	stats, err := h.opts.Stats.StageStats(r.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		h.logger.Error("stats query failed", "error", err)
		h.sendError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	if stats == nil {
		stats = []db.StageStat{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"hours":   hours,
		"stats":   stats,
	})
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Timestamp   string            `json:"timestamp"`
	Uptime      string            `json:"uptime"`
	Memory      MemoryStats       `json:"memory"`
	Tesseract   ServiceStatus     `json:"tesseract"`
	ImageMagick ServiceStatus     `json:"imageMagick"`
	Database    ServiceStatus     `json:"database"`
	Storage     ServiceStatus     `json:"storage"`
	Pipeline    map[string]string `json:"pipeline"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health reports dependency status. Only a missing Tesseract degrades the
// service; ImageMagick has an in-process fallback.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := checkBinary(r.Context(), "tesseract", "--version")
	imageMagickStatus := ServiceStatus{Error: "imagemagick not found, using built-in preprocessing"}
	if bin := ocr.ImageMagickBinary(); bin != "" {
		imageMagickStatus = checkBinary(r.Context(), bin, "-version")
	}

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract:   tesseractStatus,
		ImageMagick: imageMagickStatus,
		Database:    h.checkDatabase(r.Context()),
		Storage:     h.checkStorage(),
		Pipeline: map[string]string{
			"remoteOCR":    enabledName(h.config.RemoteOCR.Enabled, h.config.RemoteOCR.Provider),
			"ai":           enabledName(h.config.AI.Enabled, h.config.AI.DefaultProvider),
			"localOCR":     "tesseract",
			"threshold":    strconv.FormatFloat(h.config.RemoteOCR.ConfidenceThreshold, 'f', -1, 64),
			"ocrLanguages": strings.Join(h.config.OCR.Languages, "+"),
		},
	}

	if !tesseractStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkBinary runs bin with a version flag and reports its first line.
func checkBinary(ctx context.Context, bin, versionFlag string) ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	output, err := exec.CommandContext(ctx, bin, versionFlag).CombinedOutput()
	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     bin + " not found or not executable",
		}
	}

	version := "unknown"
	if line, _, _ := strings.Cut(string(output), "\n"); strings.TrimSpace(line) != "" {
		version = strings.TrimSpace(line)
	}
	return ServiceStatus{Available: true, Version: version}
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase(ctx context.Context) ServiceStatus {
	if h.opts.Database == nil {
		return ServiceStatus{Available: false, Error: "database not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.opts.Database.Ping(ctx); err != nil {
		return ServiceStatus{Available: false, Error: err.Error()}
	}
	return ServiceStatus{Available: true, Version: "PostgreSQL"}
}

// checkStorage reports whether the MinIO trace archive is connected
func (h *Handler) checkStorage() ServiceStatus {
	if !h.opts.Storage {
		return ServiceStatus{Available: false, Error: "storage client not initialized"}
	}
	return ServiceStatus{Available: true, Version: "MinIO S3"}
}

func enabledName(enabled bool, name string) string {
	if !enabled {
		return "disabled"
	}
	return name
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return false
	}
	return true
}

// sendExtractionError maps a terminal extraction failure to 422 and
// anything else to 500.
func (h *Handler) sendExtractionError(w http.ResponseWriter, err error) {
	var failure *extraction.ExtractionFailure
	if !errors.As(err, &failure) {
		h.logger.Error("extraction error", "error", err)
		h.sendError(w, http.StatusInternalServerError, "extraction failed")
		return
	}

	status := http.StatusUnprocessableEntity
	if failure.Reason == extraction.ReasonCanceled {
		status = http.StatusRequestTimeout
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   failure.Error(),
		"reason":  failure.Reason,
		"missing": failure.Missing,
	})
}

func (h *Handler) sendUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoFile):
		h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' or 'document' field)")
	case errors.Is(err, ocr.ErrUnsupportedFormat):
		h.sendError(w, http.StatusBadRequest, "Unsupported file type. Upload an image or a PDF.")
	default:
		h.logger.Error("upload failed", "error", err)
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
