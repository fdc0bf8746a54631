package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

func TestObjectName(t *testing.T) {
	trace := models.ExtractionTrace{
		RequestID:    "3f1c2a9e",
		DocumentType: models.DocumentReport,
		StartedAt:    time.Date(2026, time.March, 4, 23, 30, 0, 0, time.FixedZone("IST", 5*3600+1800)),
	}

	assert.Equal(t, "traces/2026/03/report/3f1c2a9e.json", ObjectName(trace))
}

func TestNewTraceArchiveRequiresCredentials(t *testing.T) {
	_, err := NewTraceArchive(context.Background(), models.StorageConfig{Endpoint: "localhost:9000"})
	assert.ErrorContains(t, err, "credentials")
}
