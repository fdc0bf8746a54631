package extraction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/bloodbridge/donor-extraction-service/internal/ai"
	"github.com/bloodbridge/donor-extraction-service/internal/metrics"
	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/ocr"
)

const (
	cardText   = "Government of India\nSiddharth\nDOB: 07/07/2008\nMALE\n8539 4858 7776\n"
	reportText = "Final Blood Group | A+\nName | Akshat Kumar\nAge | 21 Years\nGender | Male"
)

type fakeRemote struct {
	res   models.OCRResult
	err   error
	calls int
	opts  ocr.RemoteOptions
}

func (f *fakeRemote) Name() string { return "fake-remote" }

func (f *fakeRemote) Recognize(_ context.Context, _ string, opts ocr.RemoteOptions) (models.OCRResult, error) {
	f.calls++
	f.opts = opts
	return f.res, f.err
}

type fakeLocal struct {
	text  string
	err   error
	calls int
}

func (f *fakeLocal) Name() string { return "fake-local" }

func (f *fakeLocal) Recognize(context.Context, string) (models.OCRResult, error) {
	f.calls++
	if f.err != nil {
		return models.OCRResult{}, f.err
	}
	return models.OCRResult{Text: f.text, Confidence: 80, Source: models.SourceLocal}, nil
}

type fakeParser struct {
	identity models.IdentityRecord
	report   models.ReportRecord
	err      error
	calls    int
	text     string
}

func (f *fakeParser) ProviderName() string { return "fake-ai" }

func (f *fakeParser) ParseIdentity(_ context.Context, text string) (models.IdentityRecord, error) {
	f.calls++
	f.text = text
	return f.identity, f.err
}

func (f *fakeParser) ParseReport(_ context.Context, text string) (models.ReportRecord, error) {
	f.calls++
	f.text = text
	return f.report, f.err
}

type memoryRecorder struct {
	mu     sync.Mutex
	traces []models.ExtractionTrace
}

func (r *memoryRecorder) Record(_ context.Context, t models.ExtractionTrace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
	return nil
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, models.ExtractionTrace) error {
	return errors.New("bucket unavailable")
}

// OrchestratorSuite exercises the waterfall with in-memory backends.
type OrchestratorSuite struct {
	suite.Suite

	remote   *fakeRemote
	local    *fakeLocal
	parser   *fakeParser
	recorder *memoryRecorder
	metrics  *metrics.Metrics
	cfg      models.Config
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}

func (s *OrchestratorSuite) SetupTest() {
	s.remote = &fakeRemote{}
	s.local = &fakeLocal{}
	s.parser = &fakeParser{}
	s.recorder = &memoryRecorder{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.cfg = models.Config{}
	s.cfg.RemoteOCR.Enabled = true
	s.cfg.AI.Enabled = true
}

func (s *OrchestratorSuite) orchestrator() *Orchestrator {
	return New(Options{
		Remote:    s.remote,
		Local:     s.local,
		AI:        s.parser,
		Config:    s.cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:   s.metrics,
		Recorders: []Recorder{s.recorder, failingRecorder{}},
		Now:       func() time.Time { return time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC) },
	})
}

func (s *OrchestratorSuite) TestRemoteOCRResolvesIdentity() {
	s.remote.res = models.OCRResult{Text: cardText, Confidence: 90, Source: models.SourceRemote}

	rec, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "card.jpg")
	s.Require().NoError(err)

	s.Equal(models.IdentityRecord{
		IDNumber:    "853948587776",
		Name:        "Siddharth",
		DateOfBirth: "07/07/2008",
		Gender:      "Male",
		Age:         18,
		Method:      models.MethodRemoteOCR,
		Confidence:  models.ConfidenceHigh,
	}, *rec)
	s.True(s.remote.opts.DetectOrientation)
	s.False(s.remote.opts.IsTable)
	s.Zero(s.parser.calls)
	s.Zero(s.local.calls)
}

func (s *OrchestratorSuite) TestLowConfidenceRemoteFallsToAIOverLocalText() {
	s.remote.res = models.OCRResult{Text: cardText, Confidence: 70}
	s.local.text = "local card text"
	s.parser.identity = models.IdentityRecord{IDNumber: "853948587776", Name: "Siddharth", Gender: "Male"}

	rec, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "card.jpg")
	s.Require().NoError(err)

	s.Equal(models.MethodAI, rec.Method)
	s.Equal("local card text", s.parser.text)
	s.Equal(1, s.local.calls)
	s.Equal(models.ConfidenceLow, rec.Confidence)
}

func (s *OrchestratorSuite) TestAIReusesAcceptedRemoteText() {
	s.remote.res = models.OCRResult{Text: "8539 4858 7776", Confidence: 85}
	s.parser.identity = models.IdentityRecord{IDNumber: "853948587776", Name: "Siddharth"}

	rec, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "card.jpg")
	s.Require().NoError(err)

	s.Equal(models.MethodAI, rec.Method)
	s.Equal("8539 4858 7776", s.parser.text)
	s.Zero(s.local.calls)
}

func (s *OrchestratorSuite) TestIncompleteAIResultFallsThroughToRescue() {
	s.cfg.RemoteOCR.Enabled = false
	s.local.text = "8539 4858 7776\nMALE"
	s.parser.identity = models.IdentityRecord{Name: "Siddharth", DateOfBirth: "07/07/2008"}

	rec, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "card.jpg")
	s.Require().NoError(err)

	s.Equal(models.MethodLocalOCR, rec.Method)
	s.Equal("853948587776", rec.IDNumber)
	s.Equal("Siddharth", rec.Name)
	s.Equal("Male", rec.Gender)
	s.Equal(models.ConfidenceHigh, rec.Confidence)
	s.Equal(1, s.local.calls)
	s.Zero(s.remote.calls)
}

func (s *OrchestratorSuite) TestImplausibleAINameIsNulled() {
	s.cfg.RemoteOCR.Enabled = false
	s.local.text = cardText
	s.parser.identity = models.IdentityRecord{IDNumber: "853948587776", Name: "GOVERNMENT OF INDIA"}

	rec, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "card.jpg")
	s.Require().NoError(err)

	s.Equal(models.MethodLocalOCR, rec.Method)
	s.Equal("Siddharth", rec.Name)
}

func (s *OrchestratorSuite) TestAIParseErrorFallsThrough() {
	s.cfg.RemoteOCR.Enabled = false
	s.local.text = cardText
	s.parser.err = &ai.ParseError{Provider: "fake-ai", Raw: "not json"}

	rec, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "card.jpg")
	s.Require().NoError(err)
	s.Equal(models.MethodLocalOCR, rec.Method)

	s.Require().Len(s.recorder.traces, 1)
	trace := s.recorder.traces[0]
	s.Require().Len(trace.Attempts, 2)
	s.Equal(models.MethodAI, trace.Attempts[0].Stage)
	s.Contains(trace.Attempts[0].Error, "no JSON object")
	s.True(trace.Attempts[1].Accepted)
	s.Equal("success", trace.Outcome)
}

func (s *OrchestratorSuite) TestLocalFailureReusesRemoteText() {
	s.cfg.AI.Enabled = false
	s.remote.res = models.OCRResult{Text: "8539 4858 7776", Confidence: 90}
	s.local.err = errors.New("tesseract crashed")

	rec, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "card.jpg")
	s.Require().NoError(err)

	s.Equal(models.MethodRemoteOCR, rec.Method)
	s.Equal("853948587776", rec.IDNumber)
	s.Equal(models.ConfidenceLow, rec.Confidence)
}

func (s *OrchestratorSuite) TestNoTextFailure() {
	s.remote.err = ocr.ErrNoText
	s.local.err = ocr.ErrNoText

	_, err := s.orchestrator().ExtractIdentityDocument(context.Background(), "blank.jpg")

	var failure *ExtractionFailure
	s.Require().ErrorAs(err, &failure)
	s.Equal(ReasonNoText, failure.Reason)
	s.True(IsNoText(err))
	s.ErrorIs(err, ocr.ErrNoText)
	s.Contains(err.Error(), "Aadhaar number")
	s.Equal(1, s.local.calls)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ExtractionOutcome.WithLabelValues("identity", string(ReasonNoText))))
}

func (s *OrchestratorSuite) TestFieldsMissingFailure() {
	s.cfg.AI.Enabled = false
	s.remote.err = &ocr.TransientProviderError{Provider: "fake-remote", Attempts: 2, Err: errors.New("503")}
	s.local.text = "Haemoglobin 13.5 g/dL"

	_, err := s.orchestrator().ExtractReportDocument(context.Background(), "report.png")

	var failure *ExtractionFailure
	s.Require().ErrorAs(err, &failure)
	s.Equal(ReasonFieldsMissing, failure.Reason)
	s.Equal(models.DocumentReport, failure.Document)
	s.False(IsNoText(err))
	s.Contains(err.Error(), "Could not extract blood group.")
	s.Contains(err.Error(), "supported format")

	var transient *ocr.TransientProviderError
	s.ErrorAs(err, &transient)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.StageOutcome.WithLabelValues("report", "remote OCR", "error")))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.StageOutcome.WithLabelValues("report", "local OCR", "rejected")))
}

func (s *OrchestratorSuite) TestReportFromRemoteTable() {
	s.remote.res = models.OCRResult{Text: reportText, Confidence: 90}

	rec, err := s.orchestrator().ExtractReportDocument(context.Background(), "report.png")
	s.Require().NoError(err)

	s.Equal(models.ReportRecord{
		BloodGroup:  "A+",
		PatientName: "Akshat Kumar",
		PatientAge:  21,
		Gender:      "Male",
		Method:      models.MethodRemoteOCR,
		Confidence:  models.ConfidenceHigh,
	}, *rec)
	s.True(s.remote.opts.IsTable)
}

func (s *OrchestratorSuite) TestReportAIAcceptedAndEnriched() {
	s.cfg.RemoteOCR.Enabled = false
	s.local.text = reportText
	s.parser.report = models.ReportRecord{BloodGroup: "A+"}

	rec, err := s.orchestrator().ExtractReportDocument(context.Background(), "report.png")
	s.Require().NoError(err)

	s.Equal(models.MethodAI, rec.Method)
	s.Equal("Akshat Kumar", rec.PatientName)
	s.Equal(21, rec.PatientAge)
}

func (s *OrchestratorSuite) TestReportRhRowsViaLocal() {
	s.cfg.RemoteOCR.Enabled = false
	s.cfg.AI.Enabled = false
	s.local.text = "ABO Blood Group: B\nRh (D) Factor: Negative"

	rec, err := s.orchestrator().ExtractReportDocument(context.Background(), "report.png")
	s.Require().NoError(err)

	s.Equal("B-", rec.BloodGroup)
	s.Equal(models.MethodLocalOCR, rec.Method)
	s.Equal(models.ConfidenceLow, rec.Confidence)
	s.Zero(s.parser.calls)
}

func (s *OrchestratorSuite) TestCanceledContextStopsWaterfall() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.orchestrator().ExtractIdentityDocument(ctx, "card.jpg")

	var failure *ExtractionFailure
	s.Require().ErrorAs(err, &failure)
	s.Equal(ReasonCanceled, failure.Reason)
	s.ErrorIs(err, context.Canceled)
	s.Zero(s.remote.calls)
	s.Zero(s.local.calls)
}

func (s *OrchestratorSuite) TestCrossValidateCountsWarnings() {
	o := s.orchestrator()

	result := o.CrossValidate(
		models.IdentityRecord{Name: "Akshat Kumar Singh", Gender: "Male"},
		models.ReportRecord{PatientName: "Akshat", Gender: "Female"},
	)

	s.False(result.IsValid)
	s.Len(result.Warnings, 1)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ValidationWarnings.WithLabelValues("gender_mismatch")))
}
