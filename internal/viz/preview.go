package viz

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/san-kum/glitchload/internal/glitch"
)

// ramp runs from dark to light.
const ramp = " .:-=+*#%@"

// Preview renders a frame as w×h characters by box-averaging luminance.
func Preview(dataURI string, w, h int) (string, error) {
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("preview size must be positive")
	}
	_, data, err := glitch.DecodeDataURI(dataURI)
	if err != nil {
		return "", err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("preview: %w", err)
	}
	return previewImage(img, w, h), nil
}

func previewImage(img image.Image, w, h int) string {
	b := img.Bounds()
	var sb strings.Builder
	sb.Grow((w + 1) * h)

	for row := 0; row < h; row++ {
		y0 := b.Min.Y + row*b.Dy()/h
		y1 := b.Min.Y + (row+1)*b.Dy()/h
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for col := 0; col < w; col++ {
			x0 := b.Min.X + col*b.Dx()/w
			x1 := b.Min.X + (col+1)*b.Dx()/w
			if x1 <= x0 {
				x1 = x0 + 1
			}
			sb.WriteByte(ramp[rampIndex(boxLuma(img, x0, y0, x1, y1))])
		}
		if row < h-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// boxLuma returns mean Rec. 601 luma in [0,1].
func boxLuma(img image.Image, x0, y0, x1, y1 int) float64 {
	var sum float64
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += (0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)) / 0xffff
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func rampIndex(l float64) int {
	i := int(l * float64(len(ramp)))
	if i >= len(ramp) {
		i = len(ramp) - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
