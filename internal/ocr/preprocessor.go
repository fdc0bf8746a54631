package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Variant describes one OCR-tuned rendition of a source image.
type Variant struct {
	Name       string
	MaxSide    int     // longer side after resize, aspect ratio kept
	Sharpen    float64 // sharpen sigma
	Brightness float64 // multiplier, 1 = unchanged
	Threshold  uint8   // binarization level, 0 = none
}

var (
	// GeneralVariant suits mixed printed text such as lab reports.
	GeneralVariant = Variant{Name: "ocr", MaxSide: 2500, Sharpen: 2, Brightness: 1.1}

	// DocumentVariant is tuned for identity cards: larger, sharper and
	// binarized.
	DocumentVariant = Variant{Name: "doc_ocr", MaxSide: 3500, Sharpen: 3, Brightness: 1.2, Threshold: 100}
)

// Preprocessor handles image preprocessing for optimal OCR results
type Preprocessor struct {
	magick string // ImageMagick binary, "" when unavailable
	logger *slog.Logger
	now    func() time.Time
}

// NewPreprocessor creates a new image preprocessor. When useImageMagick is
// set and a binary is on PATH it is preferred over the in-process pipeline.
func NewPreprocessor(useImageMagick bool, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Preprocessor{
		logger: logger.With("component", "preprocessor"),
		now:    time.Now,
	}
	if useImageMagick {
		p.magick = ImageMagickBinary()
	}
	return p
}

// ImageMagickBinary returns "magick" (ImageMagick 7), "convert"
// (ImageMagick 6) or "" when neither is installed.
func ImageMagickBinary() string {
	for _, bin := range []string{"magick", "convert"} {
		if _, err := exec.LookPath(bin); err == nil {
			return bin
		}
	}
	return ""
}

// General writes the general-purpose variant and returns its path, or the
// source path when preprocessing fails.
func (p *Preprocessor) General(ctx context.Context, src string) string {
	return p.Render(ctx, src, GeneralVariant)
}

// Document writes the identity-card variant and returns its path, or the
// source path when preprocessing fails.
func (p *Preprocessor) Document(ctx context.Context, src string) string {
	return p.Render(ctx, src, DocumentVariant)
}

// Render writes variant v beside src. Any failure degrades to returning src.
func (p *Preprocessor) Render(ctx context.Context, src string, v Variant) string {
	out := p.outputPath(src, v)

	var err error
	if p.magick != "" {
		err = p.renderImageMagick(ctx, src, out, v)
		if err != nil {
			p.logger.Warn("ImageMagick failed, using built-in pipeline", "variant", v.Name, "error", err)
			err = renderNative(src, out, v)
		}
	} else {
		err = renderNative(src, out, v)
	}
	if err != nil {
		os.Remove(out)
		p.logger.Warn("preprocessing failed, using original image", "variant", v.Name, "error", err)
		return src
	}

	p.logger.Debug("image enhanced", "variant", v.Name, "path", out)
	return out
}

// Cleanup removes every path that is not the source itself. Errors are ignored.
func (p *Preprocessor) Cleanup(src string, paths ...string) {
	for _, path := range paths {
		if path == "" || path == src {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			p.logger.Debug("temp file not removed", "path", path, "error", err)
		}
	}
}

// outputPath builds a collision-resistant name beside the source:
// <stem>_<variant>_<unixnano>_<uuid8>.png
func (p *Preprocessor) outputPath(src string, v Variant) string {
	dir := filepath.Dir(src)
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	return filepath.Join(dir, fmt.Sprintf("%s_%s_%d_%s.png", stem, v.Name, p.now().UnixNano(), uuid.NewString()[:8]))
}

func (p *Preprocessor) renderImageMagick(ctx context.Context, src, out string, v Variant) error {
	// Pipeline: resize (if too large) -> grayscale -> normalize -> sharpen -> brightness [-> threshold]
	args := []string{
		src,
		"-auto-orient",
		"-resize", fmt.Sprintf("%dx%d", v.MaxSide, v.MaxSide),
		"-colorspace", "Gray",
		"-normalize",
		"-sharpen", fmt.Sprintf("0x%g", v.Sharpen),
		"-modulate", fmt.Sprintf("%d", int(v.Brightness*100)),
	}
	if v.Threshold > 0 {
		args = append(args, "-threshold", fmt.Sprintf("%.0f%%", float64(v.Threshold)/255*100))
	}
	args = append(args, out)

	cmd := exec.CommandContext(ctx, p.magick, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w - %s", p.magick, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
