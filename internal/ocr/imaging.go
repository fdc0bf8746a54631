package ocr

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// renderNative applies variant v in process and writes a PNG to out.
func renderNative(src, out string, v Variant) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode %s: %w", src, err)
	}

	gray := toGray(img, v.MaxSide)
	normalize(gray)
	if v.Sharpen > 0 {
		gray = sharpen(gray, v.Sharpen/2)
	}
	if v.Brightness > 0 && v.Brightness != 1 {
		brighten(gray, v.Brightness)
	}
	if v.Threshold > 0 {
		threshold(gray, v.Threshold)
	}

	w, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(w, gray); err != nil {
		w.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	return w.Close()
}

// toGray converts img to grayscale, scaled so that its longer side is
// maxSide. Small photos are enlarged.
func toGray(img image.Image, maxSide int) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSide > 0 && w > 0 && h > 0 && max(w, h) != maxSide {
		scale := float64(maxSide) / float64(max(w, h))
		w = max(1, int(math.Round(float64(w)*scale)))
		h = max(1, int(math.Round(float64(h)*scale)))
		dst := image.NewGray(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// normalize stretches the histogram so that the 1st and 99th percentiles
// map to black and white.
func normalize(g *image.Gray) {
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	total := len(g.Pix)
	if total == 0 {
		return
	}
	cut := total / 100
	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > cut {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > cut {
			break
		}
	}
	if hi <= lo {
		return
	}
	span := float64(hi - lo)
	for i, p := range g.Pix {
		g.Pix[i] = clamp((float64(p) - float64(lo)) * 255 / span)
	}
}

// sharpen applies an unsharp mask with a 3x3 box blur.
func sharpen(g *image.Gray, amount float64) *image.Gray {
	b := g.Bounds()
	out := image.NewGray(b)
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum, n := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					xx, yy := x+dx, y+dy
					if xx < 0 || yy < 0 || xx >= w || yy >= h {
						continue
					}
					sum += int(g.Pix[yy*g.Stride+xx])
					n++
				}
			}
			orig := float64(g.Pix[y*g.Stride+x])
			blur := float64(sum) / float64(n)
			out.Pix[y*out.Stride+x] = clamp(orig + amount*(orig-blur))
		}
	}
	return out
}

func brighten(g *image.Gray, factor float64) {
	for i, p := range g.Pix {
		g.Pix[i] = clamp(float64(p) * factor)
	}
}

func threshold(g *image.Gray, level uint8) {
	for i, p := range g.Pix {
		if p > level {
			g.Pix[i] = 255
		} else {
			g.Pix[i] = 0
		}
	}
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(math.Round(v))
}
