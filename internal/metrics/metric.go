package metrics

import (
	"sort"
	"sync"

	"github.com/san-kum/glitchload/internal/loop"
)

type Metric interface {
	Name() string
	Observe(r loop.TickReport)
	Value() float64
	Reset()
}

// Set feeds every tick report to its metrics. It is a loop.Observer and is
// safe for concurrent use.
type Set struct {
	mu      sync.Mutex
	metrics []Metric
}

func NewSet(ms ...Metric) *Set {
	return &Set{metrics: ms}
}

func Default() *Set {
	return NewSet(NewDeliveryRate(), NewFailureRate(), NewMeanLatency(), NewIntervalJitter())
}

func (s *Set) OnTick(r loop.TickReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Observe(r)
	}
}

func (s *Set) Values() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.metrics))
	for _, m := range s.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

func (s *Set) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.metrics))
	for _, m := range s.metrics {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}

func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.metrics {
		m.Reset()
	}
}
