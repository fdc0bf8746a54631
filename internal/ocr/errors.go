package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrNoText means recognition succeeded but produced only whitespace.
	ErrNoText = errors.New("no text found in image")

	// ErrUnsupportedFormat is returned for files that are neither a
	// supported image nor a PDF.
	ErrUnsupportedFormat = errors.New("unsupported format")
)

// TransientProviderError wraps the last failure after the retry budget of a
// remote provider is exhausted.
type TransientProviderError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Provider, e.Attempts, e.Err)
}

func (e *TransientProviderError) Unwrap() error { return e.Err }

// HardProviderError is an explicit rejection by a remote provider. It is
// never retried.
type HardProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *HardProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Provider, e.Message)
}

// retryable marks an attempt failure that may succeed on retry.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }
