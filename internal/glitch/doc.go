// Package glitch defines the per-tick distortion parameters and the data URI
// codec shared by the loop, the transforms and the render sinks.
//
//   - [Parameters]: one tick's seed, quality, amount and iteration count
//   - [Ranges]: the half-open intervals each parameter is drawn from
//   - [Sampler]: independent uniform draws over [Ranges]
//   - [EncodeDataURI] / [DecodeDataURI]: base64 data URIs
//
// # Example
//
//	s := glitch.NewSampler(rand.NewSource(42), glitch.DefaultRanges())
//	p := s.Sample()
//	uri := glitch.EncodeDataURI("image/jpeg", payload)
//
// # Thread Safety
//
// A [Sampler] may be shared between goroutines; draws are serialized.
package glitch
