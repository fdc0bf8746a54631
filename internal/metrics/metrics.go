package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the extraction pipeline.
type Metrics struct {
	// Stage attempts by document, stage and result
	StageOutcome *prometheus.CounterVec

	// Stage latency by document and stage
	StageLatency *prometheus.HistogramVec

	// Final outcome per request: method name or failure reason
	ExtractionOutcome *prometheus.CounterVec

	// Retries issued against remote OCR providers
	ProviderRetries *prometheus.CounterVec

	// Cross-document warnings by code
	ValidationWarnings *prometheus.CounterVec
}

// New registers all pipeline metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		StageOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "donor_extraction_stage_attempts_total",
			Help: "Extraction stage attempts by document type, stage and result",
		}, []string{"document", "stage", "result"}), // result: "accepted", "rejected", "error"

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "donor_extraction_stage_duration_seconds",
			Help:    "Duration of a single extraction stage",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"document", "stage"}),

		ExtractionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "donor_extraction_outcomes_total",
			Help: "Extraction requests by document type and outcome",
		}, []string{"document", "outcome"}),

		ProviderRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "donor_extraction_provider_retries_total",
			Help: "Retries issued against remote OCR providers",
		}, []string{"provider"}),

		ValidationWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "donor_extraction_validation_warnings_total",
			Help: "Cross-document validation warnings by code",
		}, []string{"code"}),
	}
}

// ObserveStage records one stage attempt.
func (m *Metrics) ObserveStage(document, stage, result string, d time.Duration) {
	if m != nil {
		m.StageOutcome.WithLabelValues(document, stage, result).Inc()
		m.StageLatency.WithLabelValues(document, stage).Observe(d.Seconds())
	}
}

// IncrementOutcome records the final outcome of a request.
func (m *Metrics) IncrementOutcome(document, outcome string) {
	if m != nil {
		m.ExtractionOutcome.WithLabelValues(document, outcome).Inc()
	}
}

// IncrementRetry counts one retry against provider. Its signature matches
// ocr.RetryObserver.
func (m *Metrics) IncrementRetry(provider string, _ int, _ error) {
	if m != nil {
		m.ProviderRetries.WithLabelValues(provider).Inc()
	}
}

// IncrementWarning counts one cross-document validation warning by code.
func (m *Metrics) IncrementWarning(code string) {
	if m != nil {
		m.ValidationWarnings.WithLabelValues(code).Inc()
	}
}
