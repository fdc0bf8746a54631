package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// ErrProviderUnavailable is returned when the configured provider has no
// credentials or returned no completion.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

// CompletionRequest is a single text-completion call.
type CompletionRequest struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
	// JSON asks the backend for structured JSON output where supported.
	JSON bool
}

// Provider is a remote text-completion backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Default provider settings
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GroqModel     = "llama-3.3-70b-versatile"
	OpenAIModel   = "gpt-4o-mini"
	OllamaBaseURL = "http://localhost:11434/v1"
	OllamaModel   = "llama3.1"
	GeminiModel   = "gemini-1.5-flash"
)

// NewProvider creates the provider named by cfg.DefaultProvider.
func NewProvider(cfg models.AIConfig) (Provider, error) {
	switch strings.ToLower(cfg.DefaultProvider) {
	case "", "groq":
		if cfg.Groq.APIKey == "" {
			return nil, fmt.Errorf("groq: %w: missing api key", ErrProviderUnavailable)
		}
		return NewOpenAIProvider("groq", cfg.Groq.APIKey, orDefault(cfg.Groq.BaseURL, GroqBaseURL), orDefault(cfg.Groq.Model, GroqModel)), nil
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("openai: %w: missing api key", ErrProviderUnavailable)
		}
		return NewOpenAIProvider("openai", cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, orDefault(cfg.OpenAI.Model, OpenAIModel)), nil
	case "ollama":
		return NewOllamaProvider(orDefault(cfg.Ollama.BaseURL, OllamaBaseURL), orDefault(cfg.Ollama.Model, OllamaModel)), nil
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("gemini: %w: missing api key", ErrProviderUnavailable)
		}
		return NewGeminiProvider(cfg.Gemini.APIKey, orDefault(cfg.Gemini.Model, GeminiModel)), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.DefaultProvider)
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
