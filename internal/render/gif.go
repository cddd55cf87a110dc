package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sync"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
)

// GIFRecorder keeps up to Limit frames (0 means no limit) and writes them as
// a looping GIF with a constant per-frame delay.
type GIFRecorder struct {
	Delay time.Duration
	Limit int

	mu     sync.Mutex
	frames []*image.Paletted
	errs   int
	last   error
}

func NewGIFRecorder(delay time.Duration, limit int) *GIFRecorder {
	return &GIFRecorder{Delay: delay, Limit: limit}
}

func (g *GIFRecorder) Render(dataURI string) {
	pal, err := palettedFrame(dataURI)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.errs++
		g.last = err
		return
	}
	if g.Limit > 0 && len(g.frames) >= g.Limit {
		return
	}
	g.frames = append(g.frames, pal)
}

func palettedFrame(dataURI string) (*image.Paletted, error) {
	_, data, err := glitch.DecodeDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("render: decode frame: %w", err)
	}
	if p, ok := img.(*image.Paletted); ok {
		return p, nil
	}
	b := img.Bounds()
	p := image.NewPaletted(b, palette.Plan9)
	draw.FloydSteinberg.Draw(p, b, img, b.Min)
	return p, nil
}

func (g *GIFRecorder) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.frames)
}

// Full reports whether the recorder has reached its limit.
func (g *GIFRecorder) Full() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Limit > 0 && len(g.frames) >= g.Limit
}

// Errors returns the number of frames that could not be decoded and the last
// such error.
func (g *GIFRecorder) Errors() (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errs, g.last
}

func (g *GIFRecorder) Encode(w io.Writer) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.frames) == 0 {
		return fmt.Errorf("render: no frames recorded")
	}
	// gif delays are in hundredths of a second
	delay := int(g.Delay / (10 * time.Millisecond))
	if delay < 1 {
		delay = 1
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range g.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
	}
	return gif.EncodeAll(w, &anim)
}

func (g *GIFRecorder) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := g.Encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
