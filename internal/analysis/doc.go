// Package analysis looks for structure in a recorded run's frame cadence.
//
//   - [Intervals]: gaps between consecutive frame arrivals
//   - [Spectrum]: power spectrum of those gaps
//   - [DominantPeriod]: the strongest repeating stall pattern, in ticks
//
// # Periodic Stalls
//
// A transform that is slow every Nth call shows up as a peak at period N:
//
//	ps := analysis.Spectrum(analysis.Intervals(arrivals))
//	if p := analysis.DominantPeriod(ps); p > 0 {
//	    // frames stutter every p ticks
//	}
package analysis
