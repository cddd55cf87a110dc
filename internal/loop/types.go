package loop

import (
	"errors"
	"fmt"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
)

var (
	ErrInvalidInterval = errors.New("loop: interval must be positive")
	ErrNilSink         = errors.New("loop: sink is required")
	ErrNilTransform    = errors.New("loop: transform is required")

	// ErrSuperseded marks a tick whose result was overtaken by a newer one.
	ErrSuperseded = errors.New("loop: tick superseded by a newer tick")
	// ErrInFlightFull marks a tick skipped because MaxInFlight ticks were
	// still running.
	ErrInFlightFull = errors.New("loop: in-flight limit reached")
)

type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeTransformFailed
	OutcomeEncodeFailed
	OutcomeSuperseded
	OutcomeTimedOut
	OutcomeCanceled
	OutcomeDropped
)

var outcomeNames = []string{
	OutcomeDelivered:       "delivered",
	OutcomeTransformFailed: "transform_failed",
	OutcomeEncodeFailed:    "encode_failed",
	OutcomeSuperseded:      "superseded",
	OutcomeTimedOut:        "timed_out",
	OutcomeCanceled:        "canceled",
	OutcomeDropped:         "dropped",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ParseOutcome is the inverse of Outcome.String.
func ParseOutcome(s string) (Outcome, error) {
	for i, name := range outcomeNames {
		if name == s {
			return Outcome(i), nil
		}
	}
	return 0, fmt.Errorf("unknown outcome: %s", s)
}

// Outcomes lists every outcome in declaration order.
func Outcomes() []Outcome {
	out := make([]Outcome, len(outcomeNames))
	for i := range out {
		out[i] = Outcome(i)
	}
	return out
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Outcome) UnmarshalText(b []byte) error {
	v, err := ParseOutcome(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

func (o Outcome) Failed() bool { return o == OutcomeTransformFailed || o == OutcomeEncodeFailed }

type TickReport struct {
	Seq       uint64
	Params    glitch.Parameters
	Outcome   Outcome
	Err       error
	Scheduled time.Time
	Latency   time.Duration
	Bytes     int
}

// TransformError wraps a failure returned by the transform for one tick.
type TransformError struct {
	Seq     uint64
	Wrapped error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("tick %d: %v", e.Seq, e.Wrapped)
}

func (e *TransformError) Unwrap() error {
	return e.Wrapped
}

type Observer interface {
	OnTick(r TickReport)
}

type ObserverFunc func(r TickReport)

func (f ObserverFunc) OnTick(r TickReport) { f(r) }

// Sink presents a frame. Calls are serialized by the loop.
type Sink interface {
	Render(dataURI string)
}

type SinkFunc func(dataURI string)

func (f SinkFunc) Render(dataURI string) { f(dataURI) }
