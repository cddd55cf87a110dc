package glitch

import (
	"bytes"
	"errors"
	"testing"
)

func TestDataURIRoundTrip(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10}
	uri := EncodeDataURI("image/jpeg", payload)

	if uri[:23] != "data:image/jpeg;base64," {
		t.Fatalf("unexpected prefix: %s", uri[:23])
	}

	mime, data, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", mime)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("payload mismatch: %x", data)
	}
}

func TestDecodeDataURIMalformed(t *testing.T) {
	cases := []string{
		"http://example.com/a.png",
		"data:image/png;base64",
		"data:image/png,abc",
		"data:image/png;base64,!!!",
	}
	for _, c := range cases {
		if _, _, err := DecodeDataURI(c); !errors.Is(err, ErrMalformedDataURI) {
			t.Errorf("%q: expected ErrMalformedDataURI, got %v", c, err)
		}
	}
}
