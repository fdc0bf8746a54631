// Package tesseract is the local OCR engine. It links libtesseract through cgo.
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/bloodbridge/donor-extraction-service/internal/models"
	"github.com/bloodbridge/donor-extraction-service/internal/ocr"
)

// DefaultLanguages covers the bilingual identity card.
var DefaultLanguages = []string{"eng", "hin"}

// Engine runs Tesseract over preprocessed images and reads the text layer
// of PDFs directly.
type Engine struct {
	pre       *ocr.Preprocessor
	languages []string
	logger    *slog.Logger
}

// New creates a local OCR engine. Empty languages select DefaultLanguages.
func New(pre *ocr.Preprocessor, languages []string, logger *slog.Logger) *Engine {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pre:       pre,
		languages: languages,
		logger:    logger.With("component", "tesseract"),
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the text of an image or PDF. Images are tried on the
// document variant first and on the general variant if that fails.
func (e *Engine) Recognize(ctx context.Context, path string) (models.OCRResult, error) {
	if ocr.IsPDF(path) {
		text, err := ocr.ExtractPDFText(ctx, path)
		if err != nil {
			return models.OCRResult{}, err
		}
		return models.OCRResult{Text: text, Confidence: 100, Source: models.SourceLocal, Provider: "pdf"}, nil
	}
	if !ocr.IsImage(path) {
		return models.OCRResult{}, fmt.Errorf("%s: %w", path, ocr.ErrUnsupportedFormat)
	}

	var lastErr error
	for _, variant := range []ocr.Variant{ocr.DocumentVariant, ocr.GeneralVariant} {
		if err := ctx.Err(); err != nil {
			return models.OCRResult{}, err
		}

		rendered := e.pre.Render(ctx, path, variant)
		text, conf, err := e.recognize(rendered)
		e.pre.Cleanup(path, rendered)

		if err == nil {
			return models.OCRResult{Text: text, Confidence: conf, Source: models.SourceLocal, Provider: e.Name()}, nil
		}
		e.logger.Warn("recognition failed", "variant", variant.Name, "error", err)
		lastErr = err
	}
	return models.OCRResult{}, lastErr
}

// recognize runs one Tesseract pass and returns the text with the mean
// word confidence.
func (e *Engine) recognize(path string) (string, float64, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(e.languages...); err != nil {
		return "", 0, fmt.Errorf("set languages: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return "", 0, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", 0, fmt.Errorf("recognize text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", 0, ocr.ErrNoText
	}
	return text, meanWordConfidence(client), nil
}

func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return sum / float64(len(boxes))
}
