package render

import (
	"bytes"
	"image/gif"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/san-kum/glitchload/internal/loop"
)

func TestLatestAndFanout(t *testing.T) {
	a, b := &Latest{}, &Latest{}
	var sink loop.Sink = Fanout{a, nil, b}

	sink.Render("data:,one")
	sink.Render("data:,two")

	for _, l := range []*Latest{a, b} {
		frame, n := l.Frame()
		if frame != "data:,two" || n != 2 {
			t.Errorf("expected (data:,two, 2), got (%s, %d)", frame, n)
		}
	}
}

func TestGIFRecorder(t *testing.T) {
	rec := NewGIFRecorder(80*time.Millisecond, 2)

	rec.Render(pngFrame(0))
	rec.Render("data:,not-an-image")
	rec.Render(pngFrame(128))
	rec.Render(pngFrame(255))

	if rec.Len() != 2 || !rec.Full() {
		t.Fatalf("expected 2 frames and full, got %d", rec.Len())
	}
	if n, err := rec.Errors(); n != 1 || err == nil {
		t.Errorf("expected one decode error, got %d (%v)", n, err)
	}

	var buf bytes.Buffer
	if err := rec.Encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	anim, err := gif.DecodeAll(&buf)
	if err != nil {
		t.Fatalf("decode gif: %v", err)
	}
	if len(anim.Image) != 2 {
		t.Errorf("expected 2 frames, got %d", len(anim.Image))
	}
	if anim.Delay[0] != 8 {
		t.Errorf("expected delay 8 (80ms), got %d", anim.Delay[0])
	}

	path := filepath.Join(t.TempDir(), "loading.gif")
	if err := rec.Save(path); err != nil {
		t.Errorf("save failed: %v", err)
	}
}

func TestGIFRecorderEmpty(t *testing.T) {
	if err := NewGIFRecorder(time.Millisecond, 0).Encode(&bytes.Buffer{}); err == nil {
		t.Error("expected error encoding with no frames")
	}
}

func TestContactSheet(t *testing.T) {
	sheet := NewContactSheet(2, 1, 32, 32)
	frames := []string{pngFrame(1), pngFrame(2), pngFrame(3)}
	for _, f := range frames {
		sheet.Render(f)
	}
	if sheet.Len() != 2 {
		t.Fatalf("expected sheet capped at 2 frames, got %d", sheet.Len())
	}

	var buf bytes.Buffer
	if err := sheet.Encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(strings.TrimSpace(out), "<?xml") {
		t.Errorf("expected xml header, got %.40s", out)
	}
	if strings.Count(out, "<image") != 2 {
		t.Errorf("expected 2 image elements, got %d", strings.Count(out, "<image"))
	}
	if !strings.Contains(out, frames[0]) || strings.Contains(out, frames[2]) {
		t.Error("unexpected frames embedded")
	}
}
