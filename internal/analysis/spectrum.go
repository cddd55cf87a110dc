package analysis

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

func Intervals(arrivals []float64) []float64 {
	if len(arrivals) < 2 {
		return nil
	}
	gaps := make([]float64, len(arrivals)-1)
	for i := 1; i < len(arrivals); i++ {
		gaps[i-1] = arrivals[i] - arrivals[i-1]
	}
	return gaps
}

// Spectrum removes the mean, zero-pads to a power of two and returns the
// power of the non-negative frequency bins below Nyquist.
func Spectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}

	n := 1
	for n < len(data) {
		n *= 2
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(len(data))

	padded := make([]float64, n)
	for i, v := range data {
		padded[i] = v - mean
	}

	coeffs := fft.FFTReal(padded)
	ps := make([]float64, n/2)
	for i := range ps {
		a := cmplx.Abs(coeffs[i])
		ps[i] = a * a
	}
	return ps
}

// DominantPeriod returns the period, in samples, of the strongest non-DC
// bin of ps, or 0 when the spectrum is flat.
func DominantPeriod(ps []float64) float64 {
	maxPower := 0.0
	maxIdx := 0
	for i := 1; i < len(ps); i++ {
		if ps[i] > maxPower {
			maxPower = ps[i]
			maxIdx = i
		}
	}
	if maxIdx == 0 || maxPower < 1e-9 {
		return 0
	}
	return float64(2*len(ps)) / float64(maxIdx)
}

type Summary struct {
	Mean, StdDev, Min, Max float64
}

func Summarize(data []float64) Summary {
	if len(data) == 0 {
		return Summary{}
	}
	s := Summary{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range data {
		s.Mean += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean /= float64(len(data))
	if len(data) > 1 {
		for _, v := range data {
			s.StdDev += (v - s.Mean) * (v - s.Mean)
		}
		s.StdDev = math.Sqrt(s.StdDev / float64(len(data)-1))
	}
	return s
}
