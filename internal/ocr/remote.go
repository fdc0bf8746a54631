package ocr

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// RemoteOptions are per-request hints for a remote provider.
type RemoteOptions struct {
	Language          string
	IsTable           bool
	DetectOrientation bool
}

// RemoteRecognizer is a network OCR service.
type RemoteRecognizer interface {
	Name() string
	Recognize(ctx context.Context, path string, opts RemoteOptions) (models.OCRResult, error)
}

// RetryPolicy is the fixed retry budget for a remote provider.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration // multiplied by the attempt number
}

// RetryObserver is notified before each retry. It may be nil.
type RetryObserver func(provider string, attempt int, err error)

// DefaultRetryPolicy allows two attempts with a one second linear backoff.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 2, Backoff: time.Second}

// withRetry runs attempt until it succeeds, returns a non-retryable error
// or the budget is spent. Only errors wrapped in retryable are retried.
func withRetry[T any](ctx context.Context, provider string, policy RetryPolicy, logger *slog.Logger, observe RetryObserver, attempt func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for i := 1; i <= policy.MaxAttempts; i++ {
		res, err := attempt(ctx)
		if err == nil {
			return res, nil
		}

		var r retryable
		if !errors.As(err, &r) {
			return zero, err
		}
		lastErr = r.err

		if i == policy.MaxAttempts {
			break
		}
		logger.Warn("remote OCR attempt failed, retrying", "provider", provider, "attempt", i, "error", lastErr)
		if observe != nil {
			observe(provider, i, lastErr)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(time.Duration(i) * policy.Backoff):
		}
	}
	return zero, &TransientProviderError{Provider: provider, Attempts: policy.MaxAttempts, Err: lastErr}
}
