package loop

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
	"github.com/san-kum/glitchload/internal/transform"
)

const (
	DefaultInterval    = 80 * time.Millisecond
	DefaultMaxInFlight = 2

	// Unbounded disables the in-flight cap.
	Unbounded = -1
)

type Options struct {
	// MaxInFlight caps concurrent ticks. A tick that fires at the cap is
	// reported dropped and never started. Zero means DefaultMaxInFlight,
	// negative means no cap.
	MaxInFlight int
	// TickTimeout bounds a single transform call. Zero means no timeout.
	TickTimeout time.Duration
	NewTicker   func(time.Duration) Ticker
	Now         func() time.Time
}

type Loop struct {
	transform transform.Transform
	sampler   *glitch.Sampler
	opts      Options

	mu        sync.Mutex
	observers []Observer
}

func New(t transform.Transform, s *glitch.Sampler, opts Options) *Loop {
	if s == nil {
		s = glitch.NewSeededSampler(time.Now().UnixNano())
	}
	if opts.MaxInFlight == 0 {
		opts.MaxInFlight = DefaultMaxInFlight
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loop{transform: t, sampler: s, opts: opts}
}

// AddObserver registers o for every report that follows, including those of
// a loop that is already running.
func (l *Loop) AddObserver(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *Loop) snapshotObservers() []Observer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Observer(nil), l.observers...)
}

// Start begins ticking every interval until ctx is cancelled or the handle
// is stopped. The source must already be decoded; Start does not check.
func (l *Loop) Start(ctx context.Context, src image.Image, interval time.Duration, sink Sink) (*Handle, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if sink == nil {
		return nil, ErrNilSink
	}
	if l.transform == nil {
		return nil, ErrNilTransform
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		loop: l,
		ctx:  runCtx,
		src:  src,
		sink: sink,
	}
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	ticker := l.opts.NewTicker(interval)
	go r.timerLoop(ticker, h.done)

	return h, nil
}

// RunTick performs one tick synchronously and delivers its frame directly,
// without the scheduling state of a running loop.
func (l *Loop) RunTick(ctx context.Context, src image.Image, sink Sink) TickReport {
	if l.transform == nil {
		return TickReport{Outcome: OutcomeTransformFailed, Err: ErrNilTransform}
	}

	p := l.sampler.Sample()
	tctx, cancel := l.tickContext(ctx)
	defer cancel()

	scheduled := l.opts.Now()
	uri, err := l.apply(tctx, src, p)
	rep := TickReport{Params: p, Scheduled: scheduled, Latency: l.opts.Now().Sub(scheduled)}

	if err != nil || uri == "" {
		classify(&rep, ctx, tctx, err)
	} else {
		rep.Outcome = OutcomeDelivered
		rep.Bytes = len(uri)
		if sink != nil {
			sink.Render(uri)
		}
	}

	for _, o := range l.snapshotObservers() {
		o.OnTick(rep)
	}
	return rep
}

func (l *Loop) tickContext(parent context.Context) (context.Context, context.CancelFunc) {
	if l.opts.TickTimeout > 0 {
		return context.WithTimeout(parent, l.opts.TickTimeout)
	}
	return context.WithCancel(parent)
}

type result struct {
	uri string
	err error
}

// apply returns as soon as ctx is done even if the transform ignores it; the
// transform goroutine then finishes on its own and its result is dropped.
func (l *Loop) apply(ctx context.Context, src image.Image, p glitch.Parameters) (string, error) {
	res := make(chan result, 1)
	go func() {
		uri, err := l.transform.Apply(ctx, src, p)
		res <- result{uri: uri, err: err}
	}()

	select {
	case r := <-res:
		return r.uri, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func classify(rep *TickReport, runCtx, tickCtx context.Context, err error) {
	switch {
	case runCtx.Err() != nil:
		rep.Outcome = OutcomeCanceled
		rep.Err = runCtx.Err()
	case errors.Is(tickCtx.Err(), context.DeadlineExceeded):
		rep.Outcome = OutcomeTimedOut
		rep.Err = &TransformError{Seq: rep.Seq, Wrapped: context.DeadlineExceeded}
	case err == nil:
		rep.Outcome = OutcomeEncodeFailed
		rep.Err = &TransformError{Seq: rep.Seq, Wrapped: transform.ErrEmptyOutput}
	case errors.Is(err, transform.ErrEncode):
		rep.Outcome = OutcomeEncodeFailed
		rep.Err = &TransformError{Seq: rep.Seq, Wrapped: err}
	default:
		rep.Outcome = OutcomeTransformFailed
		rep.Err = &TransformError{Seq: rep.Seq, Wrapped: err}
	}
}

type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the timer and all in-flight ticks and waits for them to
// report. It is safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} { return h.done }

type tick struct {
	seq        uint64
	cancel     context.CancelFunc
	superseded bool
}

type run struct {
	loop *Loop
	ctx  context.Context
	src  image.Image
	sink Sink
	wg   sync.WaitGroup

	mu       sync.Mutex
	seq      uint64
	inflight []*tick

	deliverMu     sync.Mutex
	lastDelivered uint64

	observeMu sync.Mutex
}

func (r *run) timerLoop(t Ticker, done chan struct{}) {
	defer close(done)
	defer r.wg.Wait()
	defer t.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-t.C():
			r.fire(now)
		}
	}
}

func (r *run) fire(now time.Time) {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	// sampled under the lock so a seeded sampler yields params in seq order
	p := r.loop.sampler.Sample()

	if limit := r.loop.opts.MaxInFlight; limit > 0 && len(r.inflight) >= limit {
		r.mu.Unlock()
		r.emit(TickReport{
			Seq:       seq,
			Params:    p,
			Outcome:   OutcomeDropped,
			Err:       ErrInFlightFull,
			Scheduled: now,
		})
		return
	}

	tctx, cancel := r.loop.tickContext(r.ctx)
	tk := &tick{seq: seq, cancel: cancel}
	r.inflight = append(r.inflight, tk)
	r.wg.Add(1)
	r.mu.Unlock()

	go r.execute(tctx, tk, p, now)
}

func (r *run) execute(tctx context.Context, tk *tick, p glitch.Parameters, scheduled time.Time) {
	defer r.wg.Done()
	defer tk.cancel()

	uri, err := r.loop.apply(tctx, r.src, p)
	rep := TickReport{
		Seq:       tk.seq,
		Params:    p,
		Scheduled: scheduled,
		Latency:   r.loop.opts.Now().Sub(scheduled),
	}

	r.mu.Lock()
	superseded := tk.superseded
	r.remove(tk)
	r.mu.Unlock()

	switch {
	case superseded:
		rep.Outcome = OutcomeSuperseded
		rep.Err = ErrSuperseded
	case err != nil || uri == "":
		classify(&rep, r.ctx, tctx, err)
	default:
		r.deliver(&rep, uri)
	}

	r.emit(rep)
}

func (r *run) emit(rep TickReport) {
	r.observeMu.Lock()
	defer r.observeMu.Unlock()
	for _, o := range r.loop.snapshotObservers() {
		o.OnTick(rep)
	}
}

func (r *run) deliver(rep *TickReport, uri string) {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	switch {
	case r.ctx.Err() != nil:
		rep.Outcome = OutcomeCanceled
		rep.Err = r.ctx.Err()
	case rep.Seq < r.lastDelivered:
		rep.Outcome = OutcomeSuperseded
		rep.Err = ErrSuperseded
	default:
		r.lastDelivered = rep.Seq
		r.sink.Render(uri)
		rep.Outcome = OutcomeDelivered
		rep.Bytes = len(uri)
		r.supersedeBefore(rep.Seq)
	}
}

// supersedeBefore cancels in-flight ticks older than seq. Their results
// could no longer be delivered, so their slots are freed now.
func (r *run) supersedeBefore(seq uint64) {
	r.mu.Lock()
	var stale []*tick
	kept := r.inflight[:0]
	for _, t := range r.inflight {
		if t.seq < seq {
			t.superseded = true
			stale = append(stale, t)
			continue
		}
		kept = append(kept, t)
	}
	r.inflight = kept
	r.mu.Unlock()

	for _, t := range stale {
		t.cancel()
	}
}

func (r *run) remove(tk *tick) {
	for i, t := range r.inflight {
		if t == tk {
			r.inflight = append(r.inflight[:i], r.inflight[i+1:]...)
			return
		}
	}
}
