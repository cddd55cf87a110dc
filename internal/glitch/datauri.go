package glitch

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedDataURI = errors.New("glitch: malformed data uri")

const dataScheme = "data:"

func EncodeDataURI(mime string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len(dataScheme) + len(mime) + 8 + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString(dataScheme)
	sb.WriteString(mime)
	sb.WriteString(";base64,")
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String()
}

// DecodeDataURI returns the media type and payload of a base64 data URI.
// Percent-encoded (non-base64) URIs are rejected.
func DecodeDataURI(uri string) (string, []byte, error) {
	if !strings.HasPrefix(uri, dataScheme) {
		return "", nil, fmt.Errorf("%w: missing %q scheme", ErrMalformedDataURI, dataScheme)
	}
	header, payload, ok := strings.Cut(uri[len(dataScheme):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload separator", ErrMalformedDataURI)
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("%w: only base64 payloads are supported", ErrMalformedDataURI)
	}
	if mime == "" {
		mime = "text/plain"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedDataURI, err)
	}
	return mime, data, nil
}
