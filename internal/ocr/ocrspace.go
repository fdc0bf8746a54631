package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

// OCR.space defaults
const (
	OCRSpaceEndpoint = "https://api.ocr.space/parse/image"
	ocrSpaceName     = "ocr.space"

	ocrSpaceBaseConfidence = 85.0
	longTextBonus          = 5.0
	longTextLength         = 50
	inlineErrorPenalty     = 10.0
)

// OCRSpaceClient calls the OCR.space parse API.
type OCRSpaceClient struct {
	apiKey   string
	endpoint string
	language string
	engine   int
	policy   RetryPolicy
	http     *http.Client
	logger   *slog.Logger
	observe  RetryObserver
}

// OCRSpaceOption customizes an OCRSpaceClient.
type OCRSpaceOption func(*OCRSpaceClient)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) OCRSpaceOption {
	return func(o *OCRSpaceClient) { o.http = c }
}

// WithRetryObserver registers a callback run before every retry.
func WithRetryObserver(fn RetryObserver) OCRSpaceOption {
	return func(o *OCRSpaceClient) { o.observe = fn }
}

// NewOCRSpaceClient creates a client from configuration.
func NewOCRSpaceClient(cfg models.RemoteOCRConfig, logger *slog.Logger, opts ...OCRSpaceOption) *OCRSpaceClient {
	if logger == nil {
		logger = slog.Default()
	}
	c := &OCRSpaceClient{
		apiKey:   cfg.OCRSpace.APIKey,
		endpoint: cfg.OCRSpace.Endpoint,
		language: cfg.OCRSpace.Language,
		engine:   cfg.OCRSpace.Engine,
		policy:   RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.RetryBackoff},
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With("component", "ocrspace"),
	}
	if c.endpoint == "" {
		c.endpoint = OCRSpaceEndpoint
	}
	if c.language == "" {
		c.language = "eng"
	}
	if c.engine == 0 {
		c.engine = 2
	}
	if c.policy.MaxAttempts <= 0 {
		c.policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if c.policy.Backoff <= 0 {
		c.policy.Backoff = DefaultRetryPolicy.Backoff
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *OCRSpaceClient) Name() string { return ocrSpaceName }

type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText   string          `json:"ParsedText"`
		ErrorMessage json.RawMessage `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// Recognize posts the image as a base64 data URI and returns the parsed
// text with a heuristic confidence.
func (c *OCRSpaceClient) Recognize(ctx context.Context, path string, opts RemoteOptions) (models.OCRResult, error) {
	mime := MIMEType(path)
	if mime == "" {
		return models.OCRResult{}, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	body, contentType, err := c.buildForm(mime, data, opts)
	if err != nil {
		return models.OCRResult{}, err
	}

	return withRetry(ctx, ocrSpaceName, c.policy, c.logger, c.observe, func(ctx context.Context) (models.OCRResult, error) {
		return c.post(ctx, body, contentType)
	})
}

func (c *OCRSpaceClient) buildForm(mime string, data []byte, opts RemoteOptions) ([]byte, string, error) {
	language := opts.Language
	if language == "" {
		language = c.language
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"base64Image", "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)},
		{"apikey", c.apiKey},
		{"language", language},
		{"isTable", strconv.FormatBool(opts.IsTable)},
		{"detectOrientation", strconv.FormatBool(opts.DetectOrientation)},
		{"scale", "true"},
		{"isOverlayRequired", "false"},
		{"OCREngine", strconv.Itoa(c.engine)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("build form: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("build form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func (c *OCRSpaceClient) post(ctx context.Context, body []byte, contentType string) (models.OCRResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.OCRResult{}, ctx.Err()
		}
		return models.OCRResult{}, retryable{err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return models.OCRResult{}, retryable{fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return models.OCRResult{}, retryable{fmt.Errorf("status %d: %s", resp.StatusCode, snippet(raw))}
	case resp.StatusCode >= 400:
		return models.OCRResult{}, &HardProviderError{Provider: ocrSpaceName, StatusCode: resp.StatusCode, Message: snippet(raw)}
	}

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return models.OCRResult{}, &HardProviderError{Provider: ocrSpaceName, StatusCode: resp.StatusCode, Message: "invalid response: " + snippet(raw)}
	}

	topErrors := errorMessages(parsed.ErrorMessage)
	if parsed.IsErroredOnProcessing {
		msg := "processing failed"
		if len(topErrors) > 0 {
			msg = topErrors[0]
		}
		return models.OCRResult{}, &HardProviderError{Provider: ocrSpaceName, StatusCode: resp.StatusCode, Message: msg}
	}

	var sb strings.Builder
	inlineError := len(topErrors) > 0
	for _, r := range parsed.ParsedResults {
		if len(errorMessages(r.ErrorMessage)) > 0 {
			inlineError = true
		}
		if sb.Len() > 0 && r.ParsedText != "" {
			sb.WriteByte('\n')
		}
		sb.WriteString(r.ParsedText)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return models.OCRResult{}, ErrNoText
	}

	return models.OCRResult{
		Text:       text,
		Confidence: ocrSpaceConfidence(text, inlineError),
		Source:     models.SourceRemote,
		Provider:   ocrSpaceName,
	}, nil
}

// ocrSpaceConfidence is a heuristic, not a calibrated probability.
func ocrSpaceConfidence(text string, inlineError bool) float64 {
	conf := ocrSpaceBaseConfidence
	if len(text) > longTextLength {
		conf += longTextBonus
	}
	if inlineError {
		conf -= inlineErrorPenalty
	}
	return max(0, min(100, conf))
}

// errorMessages decodes the ErrorMessage field, which the API sends either
// as a string or as a list of strings.
func errorMessages(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return compact(list)
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return compact([]string{single})
	}
	return nil
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func snippet(b []byte) string {
	const n = 200
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
