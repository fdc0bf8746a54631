package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveStage("identity", "remote OCR", "rejected", 200*time.Millisecond)
	m.ObserveStage("identity", "AI", "accepted", time.Second)
	m.IncrementOutcome("identity", "AI")
	m.IncrementRetry("ocr.space", 1, errors.New("503"))
	m.IncrementRetry("ocr.space", 2, errors.New("503"))
	m.IncrementWarning("name_mismatch")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageOutcome.WithLabelValues("identity", "AI", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionOutcome.WithLabelValues("identity", "AI")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProviderRetries.WithLabelValues("ocr.space")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidationWarnings.WithLabelValues("name_mismatch")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.StageLatency))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveStage("report", "local OCR", "error", time.Millisecond)
		m.IncrementOutcome("report", "fields_missing")
		m.IncrementRetry("documentai", 1, nil)
		m.IncrementWarning("gender_mismatch")
	})
}
