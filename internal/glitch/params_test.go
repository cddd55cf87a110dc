package glitch

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
)

func TestSampleWithinDefaultRanges(t *testing.T) {
	s := NewSeededSampler(1)
	r := DefaultRanges()

	for i := 0; i < 10000; i++ {
		p := s.Sample()
		if p.Seed < 0 || p.Seed >= 3 {
			t.Fatalf("draw %d: seed %f outside [0,3)", i, p.Seed)
		}
		if p.Quality < 97 || p.Quality >= 99 {
			t.Fatalf("draw %d: quality %f outside [97,99)", i, p.Quality)
		}
		if p.Amount < 0 || p.Amount >= 3 {
			t.Fatalf("draw %d: amount %f outside [0,3)", i, p.Amount)
		}
		if p.Iterations != 1 {
			t.Fatalf("draw %d: expected iterations 1, got %d", i, p.Iterations)
		}
		if err := p.Validate(r); err != nil {
			t.Fatalf("draw %d: %v", i, err)
		}
	}
}

func TestSampleReproducible(t *testing.T) {
	a := NewSeededSampler(42)
	b := NewSeededSampler(42)

	for i := 0; i < 100; i++ {
		pa, pb := a.Sample(), b.Sample()
		if pa != pb {
			t.Fatalf("draw %d differs: %v vs %v", i, pa, pb)
		}
	}
}

// fixedSource replays a list of Int63 values so draws are fully known.
type fixedSource struct {
	vals []int64
	i    int
}

func (f *fixedSource) Int63() int64 {
	v := f.vals[f.i%len(f.vals)]
	f.i++
	return v
}

func (f *fixedSource) Seed(int64) {}

func TestSampleStubbedSource(t *testing.T) {
	half := int64(1) << 62 // Float64() == 0.5
	s := NewSampler(&fixedSource{vals: []int64{0, half, half}}, DefaultRanges())

	p := s.Sample()
	want := Parameters{Seed: 0, Quality: 98, Amount: 1.5, Iterations: 1}
	if p != want {
		t.Errorf("expected %v, got %v", want, p)
	}
}

func TestSampleIterationsConfigurable(t *testing.T) {
	r := DefaultRanges()
	r.Iterations = 4
	s := NewSampler(rand.NewSource(7), r)

	for i := 0; i < 10; i++ {
		if got := s.Sample().Iterations; got != 4 {
			t.Fatalf("expected iterations 4, got %d", got)
		}
	}
}

func TestSamplerConcurrent(t *testing.T) {
	s := NewSeededSampler(3)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if err := s.Sample().Validate(s.Ranges()); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestRangesValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Ranges)
		ok     bool
	}{
		{"defaults", func(r *Ranges) {}, true},
		{"inverted seed", func(r *Ranges) { r.Seed = Range{Min: 3, Max: 0} }, false},
		{"empty amount", func(r *Ranges) { r.Amount = Range{Min: 1, Max: 1} }, false},
		{"quality above 100", func(r *Ranges) { r.Quality = Range{Min: 90, Max: 101} }, false},
		{"zero iterations", func(r *Ranges) { r.Iterations = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRanges()
			tt.mutate(&r)
			err := r.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidRange) {
				t.Errorf("expected ErrInvalidRange, got %v", err)
			}
		})
	}
}

func TestParametersValidateOutOfRange(t *testing.T) {
	p := Parameters{Seed: 3, Quality: 98, Amount: 1, Iterations: 1}
	if err := p.Validate(DefaultRanges()); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for seed at upper bound, got %v", err)
	}
}
