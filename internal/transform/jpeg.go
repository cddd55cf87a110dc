package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/san-kum/glitchload/internal/glitch"
)

// JPEG encodes the source at the tick's quality and nothing else. It stands
// in for a real glitch service when none is configured. Seed and amount are
// ignored and quality is truncated to a whole number, so over the default
// [97,99) range it yields only two nearly identical frames. Use a Command
// transform for a visible animation.
type JPEG struct{}

func NewJPEG() *JPEG { return &JPEG{} }

func (j *JPEG) Apply(ctx context.Context, img image.Image, p glitch.Parameters) (string, error) {
	if img == nil {
		return "", ErrNilImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q := int(p.Quality)
	if q < 1 {
		q = 1
	} else if q > 100 {
		q = 100
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return glitch.EncodeDataURI("image/jpeg", buf.Bytes()), nil
}
