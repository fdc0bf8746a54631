package ocr

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTestPNG(t *testing.T, dir string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x * 255) / max(1, w-1))
			img.Set(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	path := filepath.Join(dir, "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func TestPreprocessorNative(t *testing.T) {
	p := NewPreprocessor(false, discardLogger())
	ctx := context.Background()

	t.Run("general variant is written beside the source", func(t *testing.T) {
		dir := t.TempDir()
		src := writeTestPNG(t, dir, 64, 32)

		out := p.General(ctx, src)
		defer p.Cleanup(src, out)

		require.NotEqual(t, src, out)
		assert.Equal(t, dir, filepath.Dir(out))
		img := decodePNG(t, out)
		assert.Equal(t, image.Rect(0, 0, 2500, 1250), img.Bounds())
		_, isGray := img.(*image.Gray)
		assert.True(t, isGray)
	})

	t.Run("document variant is bounded and binarized", func(t *testing.T) {
		dir := t.TempDir()
		src := writeTestPNG(t, dir, 3600, 10)

		out := p.Document(ctx, src)
		defer p.Cleanup(src, out)

		img := decodePNG(t, out).(*image.Gray)
		assert.Equal(t, 3500, img.Bounds().Dx())
		for _, px := range img.Pix {
			require.True(t, px == 0 || px == 255)
		}
	})

	t.Run("small photos are enlarged", func(t *testing.T) {
		dir := t.TempDir()
		src := writeTestPNG(t, dir, 800, 500)

		doc := p.Document(ctx, src)
		general := p.General(ctx, src)
		defer p.Cleanup(src, doc, general)

		assert.Equal(t, image.Rect(0, 0, 3500, 2188), decodePNG(t, doc).Bounds())
		assert.Equal(t, image.Rect(0, 0, 2500, 1563), decodePNG(t, general).Bounds())
	})

	t.Run("names do not collide", func(t *testing.T) {
		dir := t.TempDir()
		src := writeTestPNG(t, dir, 8, 8)

		a := p.General(ctx, src)
		b := p.General(ctx, src)
		defer p.Cleanup(src, a, b)

		assert.NotEqual(t, a, b)
	})

	t.Run("undecodable input falls back to the source", func(t *testing.T) {
		dir := t.TempDir()
		src := filepath.Join(dir, "broken.jpg")
		require.NoError(t, os.WriteFile(src, []byte("definitely not an image"), 0o644))

		out := p.Document(ctx, src)
		assert.Equal(t, src, out)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("cleanup keeps the source", func(t *testing.T) {
		dir := t.TempDir()
		src := writeTestPNG(t, dir, 8, 8)
		out := p.General(ctx, src)

		p.Cleanup(src, src, out, "")

		_, err := os.Stat(src)
		assert.NoError(t, err)
		_, err = os.Stat(out)
		assert.True(t, os.IsNotExist(err))
	})
}

func TestFormats(t *testing.T) {
	assert.True(t, IsPDF("report.PDF"))
	assert.True(t, IsImage("card.JPEG"))
	assert.False(t, IsImage("notes.txt"))
	assert.Equal(t, "image/png", MIMEType("a.png"))
	assert.Equal(t, "application/pdf", MIMEType("a.pdf"))
	assert.Equal(t, "", MIMEType("a.docx"))
	assert.Equal(t, ".jpg", FileExtension("image/jpeg"))
	assert.Equal(t, "", FileExtension("text/plain"))
}
