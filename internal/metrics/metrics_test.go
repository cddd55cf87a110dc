package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
	"github.com/san-kum/glitchload/internal/loop"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func report(seq uint64, outcome loop.Outcome, at, latency time.Duration) loop.TickReport {
	return loop.TickReport{Seq: seq, Outcome: outcome, Scheduled: t0.Add(at), Latency: latency}
}

func TestDeliveryAndFailureRate(t *testing.T) {
	set := NewSet(NewDeliveryRate(), NewFailureRate())

	set.OnTick(report(1, loop.OutcomeDelivered, 0, time.Millisecond))
	set.OnTick(report(2, loop.OutcomeTransformFailed, 80*time.Millisecond, 0))
	set.OnTick(report(3, loop.OutcomeSuperseded, 160*time.Millisecond, 0))
	set.OnTick(report(4, loop.OutcomeDelivered, 240*time.Millisecond, time.Millisecond))

	v := set.Values()
	if v["delivery_rate"] != 0.5 {
		t.Errorf("expected delivery rate 0.5, got %f", v["delivery_rate"])
	}
	if v["failure_rate"] != 0.25 {
		t.Errorf("expected failure rate 0.25, got %f", v["failure_rate"])
	}

	set.Reset()
	for name, val := range set.Values() {
		if val != 0 {
			t.Errorf("%s: expected 0 after reset, got %f", name, val)
		}
	}
}

func TestMeanLatency(t *testing.T) {
	m := NewMeanLatency()
	m.Observe(report(1, loop.OutcomeDelivered, 0, 10*time.Millisecond))
	m.Observe(report(2, loop.OutcomeDelivered, 0, 30*time.Millisecond))
	m.Observe(report(3, loop.OutcomeTimedOut, 0, time.Second))

	if math.Abs(m.Value()-20) > 1e-9 {
		t.Errorf("expected 20ms, got %f", m.Value())
	}
}

func TestIntervalJitter(t *testing.T) {
	j := NewIntervalJitter()
	for i := 0; i < 5; i++ {
		j.Observe(report(uint64(i+1), loop.OutcomeDelivered, time.Duration(i)*80*time.Millisecond, 5*time.Millisecond))
	}
	if j.Value() > 1e-9 {
		t.Errorf("expected zero jitter for a steady cadence, got %f", j.Value())
	}

	j.Reset()
	gaps := []time.Duration{0, 80, 200, 240}
	for i, at := range gaps {
		j.Observe(report(uint64(i+1), loop.OutcomeDelivered, at*time.Millisecond, 0))
	}
	// gaps 80, 120, 40 -> mean 80, sample stddev 40
	if math.Abs(j.Value()-40) > 1e-9 {
		t.Errorf("expected jitter 40, got %f", j.Value())
	}
	if j.Name() != "interval_jitter_ms" {
		t.Errorf("unexpected name %s", j.Name())
	}
}

func TestStatsSnapshot(t *testing.T) {
	s := NewStats(2)
	boom := errors.New("boom")

	s.OnTick(report(1, loop.OutcomeDelivered, 0, 1*time.Millisecond))
	s.OnTick(report(2, loop.OutcomeDelivered, 80*time.Millisecond, 2*time.Millisecond))
	fail := report(3, loop.OutcomeTransformFailed, 160*time.Millisecond, 0)
	fail.Err = boom
	s.OnTick(fail)
	s.OnTick(report(4, loop.OutcomeDelivered, 240*time.Millisecond, 3*time.Millisecond))

	snap := s.Snapshot()
	if snap.Total != 4 {
		t.Errorf("expected total 4, got %d", snap.Total)
	}
	if snap.Counts[loop.OutcomeDelivered] != 3 || snap.Counts[loop.OutcomeTransformFailed] != 1 {
		t.Errorf("unexpected counts %v", snap.Counts)
	}
	if len(snap.LatencyMs) != 2 || snap.LatencyMs[0] != 2 || snap.LatencyMs[1] != 3 {
		t.Errorf("expected latency history [2 3], got %v", snap.LatencyMs)
	}
	if !errors.Is(snap.LastErr, boom) {
		t.Errorf("expected last error boom, got %v", snap.LastErr)
	}
	if snap.Last.Seq != 4 || snap.Elapsed != 240*time.Millisecond {
		t.Errorf("unexpected last %d / elapsed %v", snap.Last.Seq, snap.Elapsed)
	}
}

func TestStatsLastParamsFollowsDeliveredFrame(t *testing.T) {
	s := NewStats(8)
	shown := glitch.Parameters{Seed: 1.25, Quality: 98, Amount: 2, Iterations: 1}

	ok := report(1, loop.OutcomeDelivered, 0, time.Millisecond)
	ok.Params = shown
	s.OnTick(ok)

	failed := report(2, loop.OutcomeTransformFailed, 80*time.Millisecond, 0)
	failed.Params = glitch.Parameters{Seed: 2.5, Quality: 97, Amount: 0.1, Iterations: 1}
	failed.Err = errors.New("service unavailable")
	s.OnTick(failed)

	dropped := report(3, loop.OutcomeDropped, 160*time.Millisecond, 0)
	dropped.Err = loop.ErrInFlightFull
	s.OnTick(dropped)

	snap := s.Snapshot()
	if snap.LastParams() != shown {
		t.Errorf("expected params of delivered tick %v, got %v", shown, snap.LastParams())
	}
	if snap.LastDelivered.Seq != 1 || snap.Last.Seq != 3 {
		t.Errorf("unexpected last delivered %d / last %d", snap.LastDelivered.Seq, snap.Last.Seq)
	}
	if snap.LastErr == nil || snap.LastErr.Error() != "service unavailable" {
		t.Errorf("dropped tick must not replace last error, got %v", snap.LastErr)
	}
}

func TestRecorderOrdersAndCaps(t *testing.T) {
	r := NewRecorder(3)
	for _, seq := range []uint64{2, 1, 4, 3} {
		r.OnTick(report(seq, loop.OutcomeDelivered, 0, 0))
	}

	reports := r.Reports()
	if len(reports) != 3 || r.Dropped() != 1 {
		t.Fatalf("expected 3 kept and 1 dropped, got %d / %d", len(reports), r.Dropped())
	}
	for i, want := range []uint64{1, 2, 4} {
		if reports[i].Seq != want {
			t.Errorf("index %d: expected seq %d, got %d", i, want, reports[i].Seq)
		}
	}
}
