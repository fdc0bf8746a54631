package db

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

func TestAttemptRows(t *testing.T) {
	started := time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC)
	trace := models.ExtractionTrace{
		RequestID:    "0b6f1c9e-1f7a-4a55-9d5c-0f3b8e6f4a21",
		DocumentType: models.DocumentIdentity,
		StartedAt:    started,
		Outcome:      "success",
		Attempts: []models.StageAttempt{
			{Stage: models.MethodRemoteOCR, Backend: "ocr.space", Duration: 1500 * time.Millisecond, Error: strings.Repeat("x", 900)},
			{Stage: models.MethodLocalOCR, Backend: "tesseract", Accepted: true, Duration: 2 * time.Second},
		},
	}

	rows := AttemptRows(trace)
	require.Len(t, rows, 2)

	assert.Equal(t, 1, rows[0].Position)
	assert.Equal(t, "remote OCR", rows[0].Stage)
	assert.Equal(t, int64(1500), rows[0].DurationMS)
	assert.Len(t, rows[0].Error, maxErrorLength)
	assert.False(t, rows[0].Accepted)

	assert.Equal(t, 2, rows[1].Position)
	assert.True(t, rows[1].Accepted)
	assert.Equal(t, "identity", rows[1].Document)
	assert.Equal(t, "success", rows[1].Outcome)
	assert.Equal(t, started, rows[1].CreatedAt)
}

func TestAttemptRowsEmpty(t *testing.T) {
	assert.Empty(t, AttemptRows(models.ExtractionTrace{}))
}

func TestConnString(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	t.Run("explicit url wins", func(t *testing.T) {
		url, err := ConnString(models.DatabaseConfig{URL: "postgres://db/donors"}, getenv)
		require.NoError(t, err)
		assert.Equal(t, "postgres://db/donors", url)
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := ConnString(models.DatabaseConfig{}, getenv)
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("built from parts", func(t *testing.T) {
		env = map[string]string{"DB_HOST": "pg", "DB_USER": "svc", "DB_PASSWORD": "pw", "DB_NAME": "donors"}
		url, err := ConnString(models.DatabaseConfig{}, getenv)
		require.NoError(t, err)
		assert.Equal(t, "postgresql://svc:pw@pg:5432/donors?sslmode=disable", url)
	})
}
