package transform

import "errors"

var (
	ErrNilImage = errors.New("transform: nil source image")

	// ErrEncode marks failures turning the distorted output into a data URI,
	// as opposed to failures of the distortion service itself.
	ErrEncode = errors.New("transform: encode failed")

	ErrEmptyOutput = errors.New("transform: service produced no output")
)
