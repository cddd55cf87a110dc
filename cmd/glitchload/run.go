package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/san-kum/glitchload/internal/analysis"
	"github.com/san-kum/glitchload/internal/config"
	"github.com/san-kum/glitchload/internal/glitch"
	"github.com/san-kum/glitchload/internal/logging"
	"github.com/san-kum/glitchload/internal/loop"
	"github.com/san-kum/glitchload/internal/metrics"
	"github.com/san-kum/glitchload/internal/render"
	"github.com/san-kum/glitchload/internal/source"
	"github.com/san-kum/glitchload/internal/storage"
	"github.com/san-kum/glitchload/internal/transform"
	"github.com/san-kum/glitchload/internal/viz"
)

// resolveConfig layers defaults, the config file, the preset and finally any
// flag set explicitly on the command line.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg.Apply(p)
	}

	flags := cmd.Flags()
	if flags.Changed("interval") {
		cfg.IntervalMs = intervalMs
	}
	if flags.Changed("transform") {
		cfg.Transform = transformNm
	}
	if flags.Changed("command") {
		cfg.Command = commandLine
	}
	if flags.Changed("max-inflight") {
		cfg.MaxInFlight = maxInFlight
	}
	if flags.Changed("timeout") {
		cfg.TickTimeoutMs = timeoutMs
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("addr") {
		cfg.Addr = addr
	}
	if flags.Changed("frames") {
		cfg.Frames = frames
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// maxRecorded bounds the ticks kept for a saved run.
const maxRecorded = 1 << 16

// session is one configured loop over a loaded source image.
type session struct {
	cfg      *config.Config
	ref      string
	img      image.Image
	seed     int64
	loop     *loop.Loop
	set      *metrics.Set
	stats    *metrics.Stats
	recorder *metrics.Recorder
	log      *logging.Logger
}

func newSession(ctx context.Context, cmd *cobra.Command, ref string) (*session, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	log := logging.With("source", ref, "transform", cfg.Transform)

	t, err := transform.NewRegistry().Get(cfg.Transform, transform.Options{Command: cfg.Command})
	if err != nil {
		return nil, err
	}

	log.Info("loading source")
	var ready source.Ready
	select {
	case ready = <-source.Await(ctx, ref):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if ready.Err != nil {
		return nil, ready.Err
	}
	b := ready.Image.Bounds()
	log.Info("source ready", "format", ready.Format, "width", b.Dx(), "height", b.Dy())

	sampler, usedSeed := newSampler(cfg)
	s := &session{
		cfg:      cfg,
		ref:      ref,
		img:      ready.Image,
		seed:     usedSeed,
		set:      metrics.Default(),
		stats:    metrics.NewStats(metrics.DefaultHistory),
		recorder: metrics.NewRecorder(maxRecorded),
		log:      log,
	}
	s.loop = loop.New(t, sampler, loop.Options{
		MaxInFlight: cfg.MaxInFlight,
		TickTimeout: cfg.TickTimeout(),
	})
	s.loop.AddObserver(s.set)
	s.loop.AddObserver(s.stats)
	s.loop.AddObserver(s.recorder)
	s.loop.AddObserver(tickLogger(log))
	return s, nil
}

func tickLogger(log *logging.Logger) loop.Observer {
	return loop.ObserverFunc(func(r loop.TickReport) {
		switch {
		case r.Outcome == loop.OutcomeDelivered:
			log.Debug("tick delivered", "seq", r.Seq, "latency", r.Latency, "bytes", r.Bytes, "params", r.Params)
		case r.Outcome == loop.OutcomeSuperseded || r.Outcome == loop.OutcomeCanceled || r.Outcome == loop.OutcomeDropped:
			log.Debug("tick dropped", "seq", r.Seq, "outcome", r.Outcome)
		default:
			log.Warn("tick failed", "seq", r.Seq, "outcome", r.Outcome, "err", r.Err)
		}
	})
}

// newSampler seeds from cfg.Seed, or from the clock when it is zero, and
// returns the seed actually used.
func newSampler(cfg *config.Config) (*glitch.Sampler, int64) {
	s := cfg.Seed
	if s == 0 {
		s = time.Now().UnixNano()
	}
	return glitch.NewSampler(rand.NewSource(s), cfg.Ranges), s
}

func (s *session) start(ctx context.Context, sink loop.Sink) (*loop.Handle, error) {
	h, err := s.loop.Start(ctx, s.img, s.cfg.Interval(), sink)
	if err != nil {
		return nil, err
	}
	s.log.Info("loop started", "interval", s.cfg.Interval(), "max_in_flight", s.cfg.MaxInFlight, "seed", s.seed)
	return h, nil
}

func (s *session) save() (string, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return "", err
	}
	runID, err := st.Save(storage.RunMetadata{
		Source:      s.ref,
		Transform:   s.cfg.Transform,
		Seed:        s.seed,
		IntervalMs:  int64(s.cfg.IntervalMs),
		MaxInFlight: s.cfg.MaxInFlight,
		Metrics:     s.set.Values(),
	}, s.recorder.Reports())
	if err != nil {
		return "", err
	}
	s.log.Info("run saved", "id", runID, "ticks", s.recorder.Len())
	return runID, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newSession(ctx, cmd, args[0])
	if err != nil {
		return err
	}

	hub := render.NewHub()
	serveErr := make(chan error, 1)
	go func() { serveErr <- hub.Start(ctx, s.cfg.Addr) }()

	h, err := s.start(ctx, hub)
	if err != nil {
		hub.Stop()
		return err
	}
	s.log.Info("serving", "addr", "http://"+s.cfg.Addr)

	select {
	case <-ctx.Done():
	case <-h.Done():
	case err = <-serveErr:
	}
	h.Stop()
	if stopErr := hub.Stop(); err == nil {
		err = stopErr
	}

	snap := s.stats.Snapshot()
	s.log.Info("stopped", "ticks", snap.Total, "delivered", snap.Counts[loop.OutcomeDelivered])
	if recordRun {
		if _, saveErr := s.save(); saveErr != nil && err == nil {
			err = saveErr
		}
	}
	return err
}

func runLive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newSession(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	// the dashboard owns the terminal
	logging.SetOutput(io.Discard)
	defer logging.SetOutput(os.Stderr)

	latest := &render.Latest{}
	h, err := s.start(ctx, latest)
	if err != nil {
		return err
	}

	m := viz.NewModel(viz.Info{
		Source:    s.ref,
		Transform: s.cfg.Transform,
		Interval:  s.cfg.Interval(),
	}, s.stats, s.set, latest)

	p := tea.NewProgram(m, tea.WithContext(ctx))
	go func() {
		<-h.Done()
		p.Send(viz.StoppedMsg{})
	}()

	_, runErr := p.Run()
	h.Stop()
	if errors.Is(runErr, tea.ErrProgramKilled) && ctx.Err() != nil {
		runErr = nil
	}
	if recordRun {
		logging.SetOutput(os.Stderr)
		if _, err := s.save(); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, err := newSession(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	n := s.cfg.Frames
	if n <= 0 {
		return fmt.Errorf("frames must be positive, got %d", n)
	}

	gifRec := render.NewGIFRecorder(s.cfg.Interval(), n)
	sinks := render.Fanout{gifRec}
	var sheet *render.ContactSheet
	if svgPath != "" {
		cols := 5
		rows := (n + cols - 1) / cols
		b := s.img.Bounds()
		cellW := 160
		cellH := cellW * b.Dy() / max(b.Dx(), 1)
		sheet = render.NewContactSheet(cols, rows, cellW, max(cellH, 1))
		sheet.Title = "glitchload " + s.ref
		sinks = append(sinks, sheet)
	}

	full := make(chan struct{})
	var once sync.Once
	delivered := 0
	s.loop.AddObserver(loop.ObserverFunc(func(r loop.TickReport) {
		if r.Outcome != loop.OutcomeDelivered {
			return
		}
		delivered++
		if delivered >= n {
			once.Do(func() { close(full) })
		}
	}))

	h, err := s.start(ctx, sinks)
	if err != nil {
		return err
	}
	select {
	case <-full:
	case <-ctx.Done():
		s.log.Warn("recording interrupted", "frames", gifRec.Len())
	case <-h.Done():
	}
	h.Stop()

	if bad, lastErr := gifRec.Errors(); bad > 0 {
		s.log.Warn("frames skipped", "count", bad, "err", lastErr)
	}
	if gifRec.Len() == 0 {
		return fmt.Errorf("no frames recorded")
	}
	if err := gifRec.Save(gifPath); err != nil {
		return err
	}
	s.log.Info("gif written", "path", gifPath, "frames", gifRec.Len())

	if sheet != nil {
		f, err := os.Create(svgPath)
		if err != nil {
			return err
		}
		if err := sheet.Encode(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		s.log.Info("contact sheet written", "path", svgPath, "frames", sheet.Len())
	}

	_, err = s.save()
	return err
}

func runBench(cmd *cobra.Command, args []string) error {
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	ctx, cancel := signalContext()
	defer cancel()

	ready := <-source.Await(ctx, args[0])
	if ready.Err != nil {
		return ready.Err
	}

	registry := transform.NewRegistry()
	names := registry.List()

	fmt.Printf("benchmarking %s (%d ticks per transform)\n\n", args[0], count)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRANSFORM\tDELIVERED\tFAILED\tMEAN\tSTDDEV\tMIN\tMAX\tBYTES")

	for _, name := range names {
		t, err := registry.Get(name, transform.Options{Command: commandLine})
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t-\t%s\n", name, strings.TrimSpace(err.Error()))
			continue
		}
		if delayMs > 0 {
			t = transform.Delay{Inner: t, D: time.Duration(delayMs) * time.Millisecond}
		}

		l := loop.New(t, glitch.NewSeededSampler(seed), loop.Options{})
		var latency []float64
		failed, bytes := 0, 0
		for i := 0; i < count; i++ {
			rep := l.RunTick(ctx, ready.Image, loop.SinkFunc(func(string) {}))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if rep.Outcome != loop.OutcomeDelivered {
				failed++
				logging.Debug("bench tick failed", "transform", name, "seq", rep.Seq, "err", rep.Err)
				continue
			}
			latency = append(latency, float64(rep.Latency)/float64(time.Millisecond))
			bytes += rep.Bytes
		}

		sum := analysis.Summarize(latency)
		avgBytes := 0
		if len(latency) > 0 {
			avgBytes = bytes / len(latency)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2fms\t%.2fms\t%.2fms\t%.2fms\t%d\n",
			name, len(latency), failed, sum.Mean, sum.StdDev, sum.Min, sum.Max, avgBytes)
	}

	return w.Flush()
}
