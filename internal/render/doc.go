// Package render holds the presenters that receive frames from the loop.
//
// Every type here satisfies [loop.Sink]:
//
//   - [Latest]: keeps the newest frame for pull-style consumers
//   - [Fanout]: forwards each frame to several sinks
//   - [GIFRecorder]: collects frames into an animated GIF
//   - [ContactSheet]: lays recorded frames out on an SVG grid
//   - [Hub]: serves a page whose .loading element shows the frames as its
//     CSS background, pushed over server-sent events
package render
