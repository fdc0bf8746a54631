// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// Defaults applied after the file and environment are read.
const (
	DefaultPort                = 8080
	DefaultHost                = "0.0.0.0"
	DefaultConfidenceThreshold = 70.0
	DefaultMaxAttempts         = 2
	DefaultRetryBackoff        = time.Second
	DefaultRemoteTimeout       = 30 * time.Second
	DefaultAITimeout           = 30 * time.Second
	DefaultAITemperature       = 0.1
	DefaultAIMaxTokens         = 500
)

// Load reads path, applies environment overrides and fills defaults. A
// missing file is not an error; the service then runs on environment and
// defaults alone.
func Load(path string) (*models.Config, error) {
	var cfg models.Config
	cfg.OCR.ImageMagick = true

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

type lookupFunc func(string) (string, bool)

// applyEnv overrides cfg with any environment variable that is set.
func applyEnv(cfg *models.Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("PORT: %w", err))
		} else {
			cfg.Port = port
		}
	}
	str("HOST", &cfg.Host)
	str("LOG_LEVEL", &cfg.LogLevel)
	if v, ok := lookup("OCR_LANGUAGES"); ok && v != "" {
		cfg.OCR.Languages = strings.Split(v, "+")
	}
	boolean("USE_IMAGEMAGICK", &cfg.OCR.ImageMagick)

	boolean("USE_OCR_SPACE", &cfg.RemoteOCR.Enabled)
	str("REMOTE_OCR_PROVIDER", &cfg.RemoteOCR.Provider)
	str("OCR_SPACE_API_KEY", &cfg.RemoteOCR.OCRSpace.APIKey)
	str("DOCUMENTAI_PROJECT_ID", &cfg.RemoteOCR.DocumentAI.ProjectID)
	str("DOCUMENTAI_LOCATION", &cfg.RemoteOCR.DocumentAI.Location)
	str("DOCUMENTAI_PROCESSOR_ID", &cfg.RemoteOCR.DocumentAI.ProcessorID)
	str("GOOGLE_APPLICATION_CREDENTIALS", &cfg.RemoteOCR.DocumentAI.CredentialsFile)

	boolean("USE_AI_EXTRACTION", &cfg.AI.Enabled)
	str("AI_PROVIDER", &cfg.AI.DefaultProvider)
	str("GROQ_API_KEY", &cfg.AI.Groq.APIKey)
	str("GROQ_MODEL", &cfg.AI.Groq.Model)
	str("OPENAI_API_KEY", &cfg.AI.OpenAI.APIKey)
	str("OPENAI_BASE_URL", &cfg.AI.OpenAI.BaseURL)
	str("OPENAI_MODEL", &cfg.AI.OpenAI.Model)
	str("GEMINI_API_KEY", &cfg.AI.Gemini.APIKey)
	str("GEMINI_MODEL", &cfg.AI.Gemini.Model)
	str("OLLAMA_BASE_URL", &cfg.AI.Ollama.BaseURL)
	str("OLLAMA_MODEL", &cfg.AI.Ollama.Model)

	str("DATABASE_URL", &cfg.Database.URL)
	str("MINIO_ENDPOINT", &cfg.Storage.Endpoint)
	str("MINIO_ACCESS_KEY", &cfg.Storage.AccessKey)
	str("MINIO_SECRET_KEY", &cfg.Storage.SecretKey)
	str("MINIO_BUCKET", &cfg.Storage.Bucket)
	boolean("MINIO_USE_SSL", &cfg.Storage.UseSSL)

	return errors.Join(errs...)
}

func applyDefaults(cfg *models.Config) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	r := &cfg.RemoteOCR
	if r.Provider == "" {
		r.Provider = "ocrspace"
	}
	if r.ConfidenceThreshold <= 0 {
		r.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.RetryBackoff <= 0 {
		r.RetryBackoff = DefaultRetryBackoff
	}
	if r.Timeout <= 0 {
		r.Timeout = DefaultRemoteTimeout
	}

	a := &cfg.AI
	if a.DefaultProvider == "" {
		a.DefaultProvider = "groq"
	}
	if a.Temperature <= 0 {
		a.Temperature = DefaultAITemperature
	}
	if a.MaxTokens <= 0 {
		a.MaxTokens = DefaultAIMaxTokens
	}
	if a.Timeout <= 0 {
		a.Timeout = DefaultAITimeout
	}
}
