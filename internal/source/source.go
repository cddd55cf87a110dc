// Package source loads the still image the loop distorts and signals when it
// is ready.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
)

var (
	ErrEmptyRef = errors.New("source: empty image reference")
	ErrTooLarge = errors.New("source: image too large")
)

// maxRemoteBytes caps a downloaded image.
var maxRemoteBytes int64 = 32 << 20

// Ready is the one-shot image-ready signal.
type Ready struct {
	Image  image.Image
	Format string
	Err    error
}

// Load decodes a PNG, JPEG or GIF from a file path or an http(s) URL.
func Load(ctx context.Context, ref string) (image.Image, string, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, "", ErrEmptyRef
	}

	rc, err := open(ctx, ref)
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()

	img, format, err := image.Decode(rc)
	if err != nil {
		return nil, "", fmt.Errorf("source: decode %s: %w", ref, err)
	}
	return img, format, nil
}

func open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		f, err := os.Open(ref)
		if err != nil {
			return nil, fmt.Errorf("source: %w", err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source: fetch %s: %s", ref, resp.Status)
	}
	if resp.ContentLength > maxRemoteBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, ref, resp.ContentLength, maxRemoteBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes+1))
	if err != nil {
		return nil, fmt.Errorf("source: fetch %s: %w", ref, err)
	}
	if int64(len(data)) > maxRemoteBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, ref, maxRemoteBytes)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Await loads ref in the background. The returned channel yields exactly one
// Ready and is then closed.
func Await(ctx context.Context, ref string) <-chan Ready {
	ch := make(chan Ready, 1)
	go func() {
		defer close(ch)
		img, format, err := Load(ctx, ref)
		ch <- Ready{Image: img, Format: format, Err: err}
	}()
	return ch
}
