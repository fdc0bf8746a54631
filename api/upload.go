package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbridge/donor-extraction-service/internal/ocr"
)

var errNoFile = errors.New("no file provided")

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// saveUpload writes the first present form file among fields to a
// request-scoped temp file. The returned cleanup removes it.
func (h *Handler) saveUpload(r *http.Request, fields ...string) (string, func(), error) {
	var (
		file   io.ReadCloser
		header string
		ctype  string
	)
	for _, field := range fields {
		f, hdr, err := r.FormFile(field)
		if err == nil {
			file, header, ctype = f, hdr.Filename, hdr.Header.Get("Content-Type")
			break
		}
	}
	if file == nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	name := uploadName(header, ctype, time.Now())
	if !ocr.IsImage(name) && !ocr.IsPDF(name) {
		return "", nil, fmt.Errorf("%s: %w", header, ocr.ErrUnsupportedFormat)
	}

	dir := h.opts.UploadDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(path)
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("temp upload not removed", "path", path, "error", err)
		}
	}
	return path, cleanup, nil
}

// uploadName builds <timestamp>_<uuid8>_<original> with a safe base name.
// The extension comes from the content type when the name has none.
func uploadName(original, contentType string, now time.Time) string {
	base := unsafeName.ReplaceAllString(filepath.Base(original), "_")
	base = strings.Trim(base, "._")
	if base == "" {
		base = "upload"
	}
	if filepath.Ext(base) == "" {
		base += ocr.FileExtension(contentType)
	}
	return fmt.Sprintf("%s_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8], base)
}
