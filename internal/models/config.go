package models

import "time"

// Config represents the service configuration
type Config struct {
	// Server config
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Local OCR
	OCR OCRConfig `yaml:"ocr"`

	// Remote OCR (stage 1)
	RemoteOCR RemoteOCRConfig `yaml:"remote_ocr"`

	// AI text parsing (stage 2)
	AI AIConfig `yaml:"ai"`

	// Diagnostics sinks, both optional
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
}

// OCRConfig configures the local Tesseract engine
type OCRConfig struct {
	Languages []string `yaml:"languages"` // default: eng, hin
	// ImageMagick disables the external binary when false and forces the
	// in-process pipeline.
	ImageMagick bool `yaml:"imagemagick"`
}

// RemoteOCRConfig configures the remote OCR provider
type RemoteOCRConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"` // "ocrspace" or "documentai"

	// Results at or below this confidence are treated as insufficient.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	OCRSpace   OCRSpaceConfig   `yaml:"ocrspace"`
	DocumentAI DocumentAIConfig `yaml:"documentai"`
}

// OCRSpaceConfig for the OCR.space REST API
type OCRSpaceConfig struct {
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"` // Default: https://api.ocr.space/parse/image
	Language string `yaml:"language"` // Default: eng
	Engine   int    `yaml:"engine"`   // Default: 2
}

// DocumentAIConfig for Google Document AI
type DocumentAIConfig struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"` // e.g. "us" or "eu"
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// AIConfig represents AI provider configuration
type AIConfig struct {
	Enabled bool `yaml:"enabled"`

	// OpenAI-compatible endpoints
	Groq   OpenAIConfig `yaml:"groq"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Ollama OllamaConfig `yaml:"ollama"`

	// Gemini
	Gemini GeminiConfig `yaml:"gemini"`

	// Default provider
	DefaultProvider string `yaml:"default_provider"` // "groq", "openai", "gemini", "ollama"

	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

// OpenAIConfig for OpenAI and OpenAI-compatible APIs such as Groq
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"` // For custom endpoints
	Model   string `yaml:"model"`
}

// GeminiConfig for Google Gemini
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "gemini-1.5-flash"
}

// OllamaConfig for local Ollama
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"` // Default: "http://localhost:11434/v1"
	Model   string `yaml:"model"`    // e.g., "llama3.1"
}

// StorageConfig for the MinIO trace archive
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// DatabaseConfig for the Postgres attempt log
type DatabaseConfig struct {
	URL string `yaml:"url"`
}
