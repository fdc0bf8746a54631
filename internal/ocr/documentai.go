package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
)

const documentAIName = "documentai"

// DocumentAIClient recognizes documents with a Google Document AI OCR
// processor.
type DocumentAIClient struct {
	cfg     models.DocumentAIConfig
	policy  RetryPolicy
	logger  *slog.Logger
	observe RetryObserver
}

// NewDocumentAIClient creates a Document AI recognizer. Credentials come
// from cfg.CredentialsFile or GOOGLE_APPLICATION_CREDENTIALS.
func NewDocumentAIClient(cfg models.RemoteOCRConfig, logger *slog.Logger, observe RetryObserver) *DocumentAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	policy := RetryPolicy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.RetryBackoff}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if policy.Backoff <= 0 {
		policy.Backoff = DefaultRetryPolicy.Backoff
	}
	return &DocumentAIClient{
		cfg:     cfg.DocumentAI,
		policy:  policy,
		logger:  logger.With("component", "documentai"),
		observe: observe,
	}
}

func (c *DocumentAIClient) Name() string { return documentAIName }

// Recognize sends the raw file to the processor. Options other than the
// language hint are not supported by Document AI and are ignored.
func (c *DocumentAIClient) Recognize(ctx context.Context, path string, opts RemoteOptions) (models.OCRResult, error) {
	mime := MIMEType(path)
	if mime == "" {
		return models.OCRResult{}, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return models.OCRResult{}, fmt.Errorf("read %s: %w", path, err)
	}

	clientOpts := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", c.cfg.Location)),
	}
	creds := c.cfg.CredentialsFile
	if creds == "" {
		creds = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if creds != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(creds))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOpts...)
	if err != nil {
		return models.OCRResult{}, &HardProviderError{Provider: documentAIName, Message: "failed to create Document AI client: " + err.Error()}
	}
	defer client.Close()

	req := &documentaipb.ProcessRequest{
		Name: fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.cfg.ProjectID, c.cfg.Location, c.cfg.ProcessorID),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  content,
				MimeType: mime,
			},
		},
		SkipHumanReview: true,
	}
	if opts.Language != "" {
		req.ProcessOptions = &documentaipb.ProcessOptions{
			OcrConfig: &documentaipb.OcrConfig{
				Hints: &documentaipb.OcrConfig_Hints{LanguageHints: strings.Split(opts.Language, ",")},
			},
		}
	}

	return withRetry(ctx, documentAIName, c.policy, c.logger, c.observe, func(ctx context.Context) (models.OCRResult, error) {
		resp, err := client.ProcessDocument(ctx, req)
		if err != nil {
			return models.OCRResult{}, classifyGRPC(err)
		}
		text := strings.TrimSpace(resp.GetDocument().GetText())
		if text == "" {
			return models.OCRResult{}, ErrNoText
		}
		return models.OCRResult{
			Text:       text,
			Confidence: pageConfidence(resp.GetDocument()),
			Source:     models.SourceRemote,
			Provider:   documentAIName,
		}, nil
	})
}

// classifyGRPC marks throttling and availability failures as retryable.
// Every other status is a hard failure.
func classifyGRPC(err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return retryable{err}
	case codes.Canceled:
		return err
	}
	return &HardProviderError{Provider: documentAIName, Message: err.Error()}
}

// pageConfidence averages the page-layout confidences on a 0-100 scale.
func pageConfidence(doc *documentaipb.Document) float64 {
	pages := doc.GetPages()
	if len(pages) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pages {
		sum += float64(p.GetLayout().GetConfidence())
	}
	return sum / float64(len(pages)) * 100
}
