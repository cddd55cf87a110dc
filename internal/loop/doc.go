// Package loop drives the glitch animation: on every tick it samples fresh
// [glitch.Parameters], hands the source image to a [transform.Transform] and
// pushes the resulting data URI to a [Sink].
//
// # Scheduling
//
// Ticks fire on a fixed interval whether or not earlier ticks finished, so
// transforms overlap. At most Options.MaxInFlight ticks run at once; a tick
// that fires at capacity is reported dropped and the running ones keep
// going. Once a tick delivers, every older tick still in flight is cancelled
// as superseded, so the sink never steps backwards and a slow transform
// still renders.
//
// # Reporting
//
// Every tick ends in exactly one [TickReport] sent to each [Observer]. A
// failed tick never stops the loop.
//
// # Example
//
//	l := loop.New(transform.NewJPEG(), glitch.NewSeededSampler(1), loop.Options{})
//	h, err := l.Start(ctx, img, 80*time.Millisecond, sink)
//	...
//	h.Stop()
package loop
