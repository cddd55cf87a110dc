package metrics

import (
	"sort"
	"sync"

	"github.com/san-kum/glitchload/internal/loop"
)

// Recorder keeps up to limit reports (0 means unlimited) for later storage.
type Recorder struct {
	mu      sync.Mutex
	limit   int
	reports []loop.TickReport
	dropped int
}

func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) OnTick(rep loop.TickReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.limit > 0 && len(r.reports) >= r.limit {
		r.dropped++
		return
	}
	r.reports = append(r.reports, rep)
}

// Reports returns the recorded reports ordered by sequence number.
func (r *Recorder) Reports() []loop.TickReport {
	r.mu.Lock()
	out := append([]loop.TickReport(nil), r.reports...)
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reports)
}

func (r *Recorder) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
