package metrics

import (
	"math"
	"time"

	"github.com/san-kum/glitchload/internal/loop"
)

// DeliveryRate is the fraction of ticks whose frame reached the sink.
type DeliveryRate struct {
	name      string
	delivered int
	samples   int
}

func NewDeliveryRate() *DeliveryRate {
	return &DeliveryRate{name: "delivery_rate"}
}

func (d *DeliveryRate) Name() string { return d.name }

func (d *DeliveryRate) Observe(r loop.TickReport) {
	d.samples++
	if r.Outcome == loop.OutcomeDelivered {
		d.delivered++
	}
}

func (d *DeliveryRate) Value() float64 {
	if d.samples == 0 {
		return 0
	}
	return float64(d.delivered) / float64(d.samples)
}

func (d *DeliveryRate) Reset() {
	d.delivered = 0
	d.samples = 0
}

// FailureRate counts transform and encode failures and timeouts. Superseded,
// dropped and cancelled ticks are not failures.
type FailureRate struct {
	name    string
	failed  int
	samples int
}

func NewFailureRate() *FailureRate {
	return &FailureRate{name: "failure_rate"}
}

func (f *FailureRate) Name() string { return f.name }

func (f *FailureRate) Observe(r loop.TickReport) {
	f.samples++
	if r.Outcome.Failed() || r.Outcome == loop.OutcomeTimedOut {
		f.failed++
	}
}

func (f *FailureRate) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return float64(f.failed) / float64(f.samples)
}

func (f *FailureRate) Reset() {
	f.failed = 0
	f.samples = 0
}

// MeanLatency is the mean transform latency of delivered ticks, in ms.
type MeanLatency struct {
	name    string
	sum     time.Duration
	samples int
}

func NewMeanLatency() *MeanLatency {
	return &MeanLatency{name: "mean_latency_ms"}
}

func (m *MeanLatency) Name() string { return m.name }

func (m *MeanLatency) Observe(r loop.TickReport) {
	if r.Outcome != loop.OutcomeDelivered {
		return
	}
	m.sum += r.Latency
	m.samples++
}

func (m *MeanLatency) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return float64(m.sum) / float64(m.samples) / float64(time.Millisecond)
}

func (m *MeanLatency) Reset() {
	m.sum = 0
	m.samples = 0
}

// IntervalJitter is the standard deviation, in ms, of the gaps between
// consecutive frame arrivals (scheduled time plus latency).
type IntervalJitter struct {
	name  string
	last  time.Time
	n     int
	mean  float64
	m2    float64
	valid bool
}

func NewIntervalJitter() *IntervalJitter {
	return &IntervalJitter{name: "interval_jitter_ms"}
}

func (j *IntervalJitter) Name() string { return j.name }

func (j *IntervalJitter) Observe(r loop.TickReport) {
	if r.Outcome != loop.OutcomeDelivered {
		return
	}
	arrived := r.Scheduled.Add(r.Latency)
	if !j.valid {
		j.last = arrived
		j.valid = true
		return
	}
	gap := float64(arrived.Sub(j.last)) / float64(time.Millisecond)
	j.last = arrived

	// Welford
	j.n++
	delta := gap - j.mean
	j.mean += delta / float64(j.n)
	j.m2 += delta * (gap - j.mean)
}

func (j *IntervalJitter) Value() float64 {
	if j.n < 2 {
		return 0
	}
	return math.Sqrt(j.m2 / float64(j.n-1))
}

func (j *IntervalJitter) Reset() {
	*j = IntervalJitter{name: j.name}
}
