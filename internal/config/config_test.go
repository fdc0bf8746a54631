package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

const sampleYAML = `
port: 9090
log_level: debug
ocr:
  languages: [eng]
  imagemagick: false
remote_ocr:
  enabled: true
  provider: documentai
  confidence_threshold: 80
  retry_backoff: 250ms
  documentai:
    project_id: donors
    location: eu
    processor_id: abc123
ai:
  enabled: true
  default_provider: gemini
  gemini:
    model: gemini-1.5-pro
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"eng"}, cfg.OCR.Languages)
	assert.False(t, cfg.OCR.ImageMagick)
	assert.True(t, cfg.RemoteOCR.Enabled)
	assert.Equal(t, "documentai", cfg.RemoteOCR.Provider)
	assert.Equal(t, 80.0, cfg.RemoteOCR.ConfidenceThreshold)
	assert.Equal(t, 250*time.Millisecond, cfg.RemoteOCR.RetryBackoff)
	assert.Equal(t, DefaultMaxAttempts, cfg.RemoteOCR.MaxAttempts)
	assert.Equal(t, "eu", cfg.RemoteOCR.DocumentAI.Location)
	assert.Equal(t, "gemini", cfg.AI.DefaultProvider)
	assert.Equal(t, "gemini-1.5-pro", cfg.AI.Gemini.Model)
	assert.Equal(t, float32(DefaultAITemperature), cfg.AI.Temperature)
	assert.Equal(t, DefaultAIMaxTokens, cfg.AI.MaxTokens)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.True(t, cfg.OCR.ImageMagick)
	assert.Equal(t, "ocrspace", cfg.RemoteOCR.Provider)
	assert.Equal(t, DefaultConfidenceThreshold, cfg.RemoteOCR.ConfidenceThreshold)
	assert.Equal(t, DefaultRetryBackoff, cfg.RemoteOCR.RetryBackoff)
	assert.Equal(t, DefaultRemoteTimeout, cfg.RemoteOCR.Timeout)
	assert.Equal(t, "groq", cfg.AI.DefaultProvider)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [not a number"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":              "7000",
		"USE_OCR_SPACE":     "true",
		"OCR_SPACE_API_KEY": "k-ocr",
		"USE_AI_EXTRACTION": "1",
		"AI_PROVIDER":       "openai",
		"OPENAI_API_KEY":    "k-openai",
		"OCR_LANGUAGES":     "eng+hin+mar",
		"MINIO_USE_SSL":     "false",
		"DATABASE_URL":      "postgres://localhost/donors",
		"HOST":              "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := models.Config{Host: "127.0.0.1"}
	require.NoError(t, applyEnv(&cfg, lookup))

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.True(t, cfg.RemoteOCR.Enabled)
	assert.Equal(t, "k-ocr", cfg.RemoteOCR.OCRSpace.APIKey)
	assert.True(t, cfg.AI.Enabled)
	assert.Equal(t, "openai", cfg.AI.DefaultProvider)
	assert.Equal(t, "k-openai", cfg.AI.OpenAI.APIKey)
	assert.Equal(t, []string{"eng", "hin", "mar"}, cfg.OCR.Languages)
	assert.Equal(t, "postgres://localhost/donors", cfg.Database.URL)
}

func TestApplyEnvReportsBadValues(t *testing.T) {
	lookup := func(k string) (string, bool) {
		switch k {
		case "PORT":
			return "eighty", true
		case "USE_AI_EXTRACTION":
			return "maybe", true
		}
		return "", false
	}

	err := applyEnv(&models.Config{}, lookup)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "USE_AI_EXTRACTION")
}
