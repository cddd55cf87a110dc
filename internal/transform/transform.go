// Package transform adapts external glitch services to the loop. A Transform
// turns a decoded source image and one tick's parameters into a data URI.
// The distortion itself always lives outside this module; the adapters here
// only move pixels and bytes across the boundary.
package transform

import (
	"context"
	"image"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
)

// Transform blocks until the encoded result is ready or ctx is done.
type Transform interface {
	Apply(ctx context.Context, img image.Image, p glitch.Parameters) (string, error)
}

type Func func(ctx context.Context, img image.Image, p glitch.Parameters) (string, error)

func (f Func) Apply(ctx context.Context, img image.Image, p glitch.Parameters) (string, error) {
	return f(ctx, img, p)
}

// Delay wraps a transform with a fixed latency before it runs, honouring ctx.
type Delay struct {
	Inner Transform
	D     time.Duration
}

func (d Delay) Apply(ctx context.Context, img image.Image, p glitch.Parameters) (string, error) {
	if d.D > 0 {
		t := time.NewTimer(d.D)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	return d.Inner.Apply(ctx, img, p)
}
