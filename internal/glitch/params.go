package glitch

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

var (
	// ErrInvalidRange indicates an empty or inverted sampling interval.
	ErrInvalidRange = errors.New("glitch: invalid parameter range")

	// ErrOutOfRange indicates a parameter outside its sampling interval.
	ErrOutOfRange = errors.New("glitch: parameter out of range")
)

const (
	DefaultSeedMax    = 3.0
	DefaultQualityMin = 97.0
	DefaultQualityMax = 99.0
	DefaultAmountMax  = 3.0
	DefaultIterations = 1
)

type Parameters struct {
	Seed       float64 `json:"seed" yaml:"seed"`
	Quality    float64 `json:"quality" yaml:"quality"`
	Amount     float64 `json:"amount" yaml:"amount"`
	Iterations int     `json:"iterations" yaml:"iterations"`
}

func (p Parameters) String() string {
	return fmt.Sprintf("seed=%.3f quality=%.3f amount=%.3f iterations=%d", p.Seed, p.Quality, p.Amount, p.Iterations)
}

// Validate reports whether every field lies inside r.
func (p Parameters) Validate(r Ranges) error {
	if !r.Seed.Contains(p.Seed) {
		return fmt.Errorf("%w: seed %f not in %s", ErrOutOfRange, p.Seed, r.Seed)
	}
	if !r.Quality.Contains(p.Quality) {
		return fmt.Errorf("%w: quality %f not in %s", ErrOutOfRange, p.Quality, r.Quality)
	}
	if !r.Amount.Contains(p.Amount) {
		return fmt.Errorf("%w: amount %f not in %s", ErrOutOfRange, p.Amount, r.Amount)
	}
	if p.Iterations != r.Iterations {
		return fmt.Errorf("%w: iterations %d, want %d", ErrOutOfRange, p.Iterations, r.Iterations)
	}
	return nil
}

// Range is the half-open interval [Min, Max).
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

func (r Range) Contains(v float64) bool { return v >= r.Min && v < r.Max }
func (r Range) Span() float64           { return r.Max - r.Min }
func (r Range) String() string          { return fmt.Sprintf("[%g,%g)", r.Min, r.Max) }

// at maps a unit draw u in [0,1) onto the interval.
func (r Range) at(u float64) float64 {
	v := r.Min + u*r.Span()
	if v >= r.Max {
		// float rounding can land exactly on Max for tiny spans
		return r.Min
	}
	return v
}

type Ranges struct {
	Seed       Range `yaml:"seed"`
	Quality    Range `yaml:"quality"`
	Amount     Range `yaml:"amount"`
	Iterations int   `yaml:"iterations"`
}

func DefaultRanges() Ranges {
	return Ranges{
		Seed:       Range{Min: 0, Max: DefaultSeedMax},
		Quality:    Range{Min: DefaultQualityMin, Max: DefaultQualityMax},
		Amount:     Range{Min: 0, Max: DefaultAmountMax},
		Iterations: DefaultIterations,
	}
}

func (r Ranges) Validate() error {
	named := []struct {
		name string
		rng  Range
	}{
		{"seed", r.Seed},
		{"quality", r.Quality},
		{"amount", r.Amount},
	}
	for _, n := range named {
		if !(n.rng.Max > n.rng.Min) {
			return fmt.Errorf("%w: %s %s", ErrInvalidRange, n.name, n.rng)
		}
	}
	if r.Quality.Min < 0 || r.Quality.Max > 100 {
		return fmt.Errorf("%w: quality %s outside [0,100]", ErrInvalidRange, r.Quality)
	}
	if r.Iterations < 1 {
		return fmt.Errorf("%w: iterations must be >= 1, got %d", ErrInvalidRange, r.Iterations)
	}
	return nil
}

type Sampler struct {
	mu     sync.Mutex
	rng    *rand.Rand
	ranges Ranges
}

func NewSampler(src rand.Source, ranges Ranges) *Sampler {
	return &Sampler{rng: rand.New(src), ranges: ranges}
}

// NewSeededSampler is shorthand for a sampler over the default ranges.
func NewSeededSampler(seed int64) *Sampler {
	return NewSampler(rand.NewSource(seed), DefaultRanges())
}

func (s *Sampler) Ranges() Ranges { return s.ranges }

// Sample draws seed, quality and amount independently, in that order.
func (s *Sampler) Sample() Parameters {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Parameters{
		Seed:       s.ranges.Seed.at(s.rng.Float64()),
		Quality:    s.ranges.Quality.at(s.rng.Float64()),
		Amount:     s.ranges.Amount.at(s.rng.Float64()),
		Iterations: s.ranges.Iterations,
	}
}
