// Package extraction sequences the OCR and parsing backends into a
// cost-ordered waterfall per document type.
package extraction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbridge/donor-extraction-service/internal/ai"
	"github.com/bloodbridge/donor-extraction-service/internal/metrics"
	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/ocr"
	"github.com/bloodbridge/donor-extraction-service/internal/services"
)

// DefaultConfidenceThreshold is the remote OCR score a result must exceed.
const DefaultConfidenceThreshold = 70.0

const recordTimeout = 5 * time.Second

// LocalRecognizer is the on-host OCR engine.
type LocalRecognizer interface {
	Name() string
	Recognize(ctx context.Context, path string) (models.OCRResult, error)
}

// TextParser turns OCR text into records. *ai.Extractor implements it.
type TextParser interface {
	ProviderName() string
	ParseIdentity(ctx context.Context, text string) (models.IdentityRecord, error)
	ParseReport(ctx context.Context, text string) (models.ReportRecord, error)
}

// Recorder receives a trace after every extraction. Failures are logged
// and never affect the result.
type Recorder interface {
	Record(ctx context.Context, trace models.ExtractionTrace) error
}

// Options wires the orchestrator. Remote and AI are used only when the
// matching Config flag is also set.
type Options struct {
	Remote    ocr.RemoteRecognizer
	Local     LocalRecognizer
	AI        TextParser
	Config    models.Config
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Recorders []Recorder
	Now       func() time.Time
}

// Orchestrator runs the extraction waterfall. It holds no per-request
// state and is safe for concurrent use.
type Orchestrator struct {
	remote    ocr.RemoteRecognizer
	local     LocalRecognizer
	ai        TextParser
	threshold float64
	logger    *slog.Logger
	metrics   *metrics.Metrics
	recorders []Recorder
	now       func() time.Time
}

// New creates an orchestrator from opts.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		local:     opts.Local,
		threshold: opts.Config.RemoteOCR.ConfidenceThreshold,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		recorders: opts.Recorders,
		now:       opts.Now,
	}
	if opts.Config.RemoteOCR.Enabled && opts.Remote != nil {
		o.remote = opts.Remote
	}
	if opts.Config.AI.Enabled && opts.AI != nil {
		o.ai = opts.AI
	}
	if o.threshold <= 0 {
		o.threshold = DefaultConfidenceThreshold
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	o.logger = o.logger.With("component", "extraction")
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// ExtractIdentityDocument extracts an IdentityRecord from the Aadhaar card
// at path. The only error type returned is *ExtractionFailure.
func (o *Orchestrator) ExtractIdentityDocument(ctx context.Context, path string) (*models.IdentityRecord, error) {
	rec, err := run(ctx, o, newRequest[models.IdentityRecord](path, models.DocumentIdentity), o.identityStages())
	if err != nil {
		return nil, err
	}
	rec.Confidence = identityConfidence(rec)
	return &rec, nil
}

// ExtractReportDocument extracts a ReportRecord from the lab report at
// path. The only error type returned is *ExtractionFailure.
func (o *Orchestrator) ExtractReportDocument(ctx context.Context, path string) (*models.ReportRecord, error) {
	rec, err := run(ctx, o, newRequest[models.ReportRecord](path, models.DocumentReport), o.reportStages())
	if err != nil {
		return nil, err
	}
	rec.Confidence = reportConfidence(rec)
	return &rec, nil
}

// CrossValidate compares two extracted records and counts any warnings.
func (o *Orchestrator) CrossValidate(identity models.IdentityRecord, report models.ReportRecord) models.ValidationResult {
	result := services.CrossValidate(identity, report)
	for _, w := range result.Warnings {
		o.metrics.IncrementWarning(w.Code)
	}
	return result
}

// request is the state of one extraction. Text fetched by one stage is
// reused by the later ones so no backend is called twice.
type request[R any] struct {
	id   string
	path string
	doc  models.DocumentType

	remoteText    string // only set when above the confidence threshold
	remoteBackend string

	localDone bool
	localText string
	localErr  error

	partial R // best incomplete record from an earlier stage

	sawText bool
	errs    []error
}

func newRequest[R any](path string, doc models.DocumentType) *request[R] {
	return &request[R]{id: uuid.NewString(), path: path, doc: doc}
}

// stageResult is the outcome of a stage that ran without error. ok is
// false when the record is insufficient for this stage.
type stageResult[R any] struct {
	record  R
	backend string
	ok      bool
}

type stage[R any] struct {
	method models.Method
	run    func(ctx context.Context, req *request[R]) (stageResult[R], error)
}

// run iterates stages in order until one accepts its record.
func run[R any](ctx context.Context, o *Orchestrator, req *request[R], stages []stage[R]) (R, error) {
	var zero R
	started := o.now()
	trace := models.ExtractionTrace{
		RequestID:    req.id,
		DocumentType: req.doc,
		SourceName:   req.path,
		StartedAt:    started,
	}
	logger := o.logger.With("request_id", req.id, "document", req.doc)
	logger.Info("extraction started", "stages", len(stages))

	finish := func(outcome string, method models.Method) {
		trace.Duration = o.now().Sub(started)
		trace.Outcome = outcome
		trace.Method = method
		o.metrics.IncrementOutcome(string(req.doc), outcomeLabel(outcome, method))
		o.record(ctx, trace)
	}

	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			req.errs = append(req.errs, err)
			break
		}

		t0 := o.now()
		res, err := st.run(ctx, req)
		d := o.now().Sub(t0)

		attempt := models.StageAttempt{Stage: st.method, Backend: res.backend, Duration: d}
		switch {
		case err != nil:
			attempt.Error = err.Error()
			req.errs = append(req.errs, err)
			o.metrics.ObserveStage(string(req.doc), string(st.method), "error", d)
			logStageError(logger, st.method, res.backend, err)
		case !res.ok:
			o.metrics.ObserveStage(string(req.doc), string(st.method), "rejected", d)
			logger.Info("stage insufficient, falling back", "stage", st.method, "backend", res.backend)
		default:
			attempt.Accepted = true
			o.metrics.ObserveStage(string(req.doc), string(st.method), "accepted", d)
		}
		trace.Attempts = append(trace.Attempts, attempt)

		if err == nil && res.ok {
			method := methodOf(res.record)
			logger.Info("extraction resolved", "method", method, "backend", res.backend, "duration", o.now().Sub(started))
			finish("success", method)
			return res.record, nil
		}
	}

	reason := ReasonFieldsMissing
	switch {
	case ctx.Err() != nil:
		reason = ReasonCanceled
	case !req.sawText:
		reason = ReasonNoText
	}
	failure := newFailure(req.doc, reason, req.errs)
	logger.Warn("extraction failed", "reason", reason, "attempts", len(trace.Attempts))
	finish(string(reason), "")
	return zero, failure
}

func logStageError(logger *slog.Logger, method models.Method, backend string, err error) {
	args := []any{"stage", method, "backend", backend, "error", err}
	var pe *ai.ParseError
	if errors.As(err, &pe) {
		args = append(args, "raw_response", pe.Raw)
	}
	var hard *ocr.HardProviderError
	if errors.As(err, &hard) {
		args = append(args, "status", hard.StatusCode)
	}
	logger.Warn("stage failed", args...)
}

// record sends the trace to every recorder. It outlives a canceled request
// context but is bounded by recordTimeout.
func (o *Orchestrator) record(ctx context.Context, trace models.ExtractionTrace) {
	if len(o.recorders) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	for _, r := range o.recorders {
		if err := r.Record(ctx, trace); err != nil {
			o.logger.Warn("trace not recorded", "request_id", trace.RequestID, "error", err)
		}
	}
}

func outcomeLabel(outcome string, method models.Method) string {
	if method != "" {
		return string(method)
	}
	return outcome
}

func methodOf(rec any) models.Method {
	switch r := rec.(type) {
	case models.IdentityRecord:
		return r.Method
	case models.ReportRecord:
		return r.Method
	}
	return ""
}

// identityConfidence is high only when every field printed on the card
// was extracted.
func identityConfidence(r models.IdentityRecord) models.Confidence {
	if r.Complete() && r.Name != "" && r.DateOfBirth != "" && r.Gender != "" {
		return models.ConfidenceHigh
	}
	return models.ConfidenceLow
}

func reportConfidence(r models.ReportRecord) models.Confidence {
	if r.Complete() && r.PatientName != "" {
		return models.ConfidenceHigh
	}
	return models.ConfidenceLow
}
