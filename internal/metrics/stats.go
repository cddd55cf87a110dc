package metrics

import (
	"sync"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
	"github.com/san-kum/glitchload/internal/loop"
)

const DefaultHistory = 240

// Stats keeps running counters and a bounded latency history for dashboards.
type Stats struct {
	mu       sync.Mutex
	capacity int
	counts   map[loop.Outcome]int
	latency  []float64
	last     loop.TickReport
	shown    loop.TickReport
	lastErr  error
	started  time.Time
}

type Snapshot struct {
	Total     int
	Counts    map[loop.Outcome]int
	LatencyMs []float64
	Last      loop.TickReport
	// LastDelivered is the newest tick whose frame reached the sink.
	LastDelivered loop.TickReport
	LastErr       error
	Elapsed       time.Duration
}

func NewStats(capacity int) *Stats {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	return &Stats{
		capacity: capacity,
		counts:   make(map[loop.Outcome]int),
		latency:  make([]float64, 0, capacity),
	}
}

func (s *Stats) OnTick(r loop.TickReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started.IsZero() {
		s.started = r.Scheduled
	}
	s.counts[r.Outcome]++
	s.last = r
	if r.Outcome.Failed() || r.Outcome == loop.OutcomeTimedOut {
		s.lastErr = r.Err
	}
	if r.Outcome == loop.OutcomeDelivered {
		s.shown = r
		if len(s.latency) == s.capacity {
			copy(s.latency, s.latency[1:])
			s.latency = s.latency[:s.capacity-1]
		}
		s.latency = append(s.latency, float64(r.Latency)/float64(time.Millisecond))
	}
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[loop.Outcome]int, len(s.counts))
	total := 0
	for k, v := range s.counts {
		counts[k] = v
		total += v
	}
	var elapsed time.Duration
	if !s.started.IsZero() {
		elapsed = s.last.Scheduled.Sub(s.started)
	}
	return Snapshot{
		Total:         total,
		Counts:        counts,
		LatencyMs:     append([]float64(nil), s.latency...),
		Last:          s.last,
		LastDelivered: s.shown,
		LastErr:       s.lastErr,
		Elapsed:       elapsed,
	}
}

// LastParams returns the parameters of the frame currently on screen.
func (s Snapshot) LastParams() glitch.Parameters { return s.LastDelivered.Params }
