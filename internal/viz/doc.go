// Package viz is the terminal dashboard for a running glitch loop.
//
// The dashboard polls a [metrics.Stats] and a [render.Latest] on its own
// refresh tick and draws:
//
//   - an ASCII preview of the newest frame
//   - outcome counters and the running metric values
//   - the latest parameter draw
//   - a latency plot of recently delivered ticks
//
// # Key Bindings
//
//	Space - Freeze/unfreeze the preview
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
