package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeBlankPDF writes a one-page PDF whose page has an empty content
// stream, like a scan without a text layer.
func writeBlankPDF(t *testing.T, dir string) string {
	t.Helper()
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents 4 0 R >>",
		"<< /Length 0 >>\nstream\n\nendstream",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExtractPDFText(t *testing.T) {
	ctx := context.Background()

	t.Run("no text layer", func(t *testing.T) {
		path := writeBlankPDF(t, t.TempDir())

		text, err := ExtractPDFText(ctx, path)

		assert.ErrorIs(t, err, ErrNoText)
		assert.Empty(t, text)
	})

	t.Run("not a pdf", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.pdf")
		require.NoError(t, os.WriteFile(path, []byte("plain text pretending to be a pdf"), 0o644))

		_, err := ExtractPDFText(ctx, path)

		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNoText)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ExtractPDFText(ctx, filepath.Join(t.TempDir(), "gone.pdf"))
		assert.Error(t, err)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := ExtractPDFText(canceled, writeBlankPDF(t, t.TempDir()))

		assert.ErrorIs(t, err, context.Canceled)
	})
}
