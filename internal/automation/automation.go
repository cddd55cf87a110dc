package automation

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/glitchload/internal/config"
	"github.com/san-kum/glitchload/internal/glitch"
	"github.com/san-kum/glitchload/internal/logging"
	"github.com/san-kum/glitchload/internal/loop"
	"github.com/san-kum/glitchload/internal/metrics"
	"github.com/san-kum/glitchload/internal/transform"
)

// Scenario defines a scripted sequence of loop runs
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one loop run. Zero fields keep the runner's base configuration.
type Step struct {
	Name          string         `yaml:"name"`
	Preset        string         `yaml:"preset"`
	Transform     string         `yaml:"transform"`
	Command       string         `yaml:"command"`
	IntervalMs    int            `yaml:"interval_ms"`
	MaxInFlight   int            `yaml:"max_in_flight"`
	TickTimeoutMs int            `yaml:"tick_timeout_ms"`
	DelayMs       int            `yaml:"delay_ms"`
	Seed          int64          `yaml:"seed"`
	Ranges        *glitch.Ranges `yaml:"ranges"`
	Ticks         int            `yaml:"ticks"`
	SaveAs        string         `yaml:"save_as"`
}

type Result struct {
	Step    Step
	Config  *config.Config
	Seed    int64
	Reports []loop.TickReport
	Metrics map[string]float64
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	for i, step := range scenario.Steps {
		if step.Ticks <= 0 {
			return nil, fmt.Errorf("step %d: ticks must be positive, got %d", i+1, step.Ticks)
		}
	}
	return &scenario, nil
}

type Runner struct {
	Registry *transform.Registry
	Base     *config.Config
	Log      *logging.Logger
	// NewTicker overrides the loop clock; nil uses a real ticker.
	NewTicker func(time.Duration) loop.Ticker
}

func NewRunner(base *config.Config) *Runner {
	if base == nil {
		base = config.DefaultConfig()
	}
	return &Runner{
		Registry: transform.NewRegistry(),
		Base:     base,
		Log:      logging.Default(),
	}
}

// Config resolves the effective configuration of a step.
func (r *Runner) Config(step Step) (*config.Config, error) {
	cfg := *r.Base
	if step.Preset != "" {
		p := config.GetPreset(step.Preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s", step.Preset)
		}
		cfg.Apply(p)
	}
	if step.Transform != "" {
		cfg.Transform = step.Transform
	}
	if step.Command != "" {
		cfg.Command = step.Command
	}
	if step.Seed != 0 {
		cfg.Seed = step.Seed
	}
	if step.Ranges != nil {
		cfg.Ranges = *step.Ranges
	}
	cfg.Apply(&config.Config{
		IntervalMs:    step.IntervalMs,
		MaxInFlight:   step.MaxInFlight,
		TickTimeoutMs: step.TickTimeoutMs,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RunStep starts a loop over img and stops it once step.Ticks reports have
// been observed. Ticks still in flight at that point are reported canceled
// and included in the result.
func (r *Runner) RunStep(ctx context.Context, img image.Image, step Step) (*Result, error) {
	if step.Ticks <= 0 {
		return nil, fmt.Errorf("ticks must be positive, got %d", step.Ticks)
	}
	cfg, err := r.Config(step)
	if err != nil {
		return nil, err
	}
	t, err := r.Registry.Get(cfg.Transform, transform.Options{Command: cfg.Command})
	if err != nil {
		return nil, err
	}
	if step.DelayMs > 0 {
		t = transform.Delay{Inner: t, D: time.Duration(step.DelayMs) * time.Millisecond}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	l := loop.New(t, glitch.NewSampler(rand.NewSource(seed), cfg.Ranges), loop.Options{
		MaxInFlight: cfg.MaxInFlight,
		TickTimeout: cfg.TickTimeout(),
		NewTicker:   r.NewTicker,
	})

	set := metrics.Default()
	rec := metrics.NewRecorder(0)
	l.AddObserver(set)
	l.AddObserver(rec)

	enough := make(chan struct{})
	var once sync.Once
	seen := 0
	l.AddObserver(loop.ObserverFunc(func(loop.TickReport) {
		seen++
		if seen >= step.Ticks {
			once.Do(func() { close(enough) })
		}
	}))

	h, err := l.Start(ctx, img, cfg.Interval(), loop.SinkFunc(func(string) {}))
	if err != nil {
		return nil, err
	}
	select {
	case <-enough:
	case <-h.Done():
	case <-ctx.Done():
	}
	h.Stop()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Result{
		Step:    step,
		Config:  cfg,
		Seed:    seed,
		Reports: rec.Reports(),
		Metrics: set.Values(),
	}, nil
}

// RunScenario executes all steps in a scenario
func (r *Runner) RunScenario(ctx context.Context, img image.Image, scenario *Scenario) ([]Result, error) {
	results := make([]Result, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		r.Log.Info("running step", "step", i+1, "of", len(scenario.Steps), "name", step.Name)

		res, err := r.RunStep(ctx, img, step)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		results = append(results, *res)
	}

	return results, nil
}

// Sweep runs Base once per evenly spaced value of Param in [Min, Max].
type Sweep struct {
	Param    string
	Min, Max float64
	NumSteps int
	Base     Step
}

type SweepResult struct {
	Value   float64
	Metrics map[string]float64
}

var ErrUnknownParam = errors.New("unknown sweep parameter")

// SweepParams lists the step fields a sweep can vary.
func SweepParams() []string {
	return []string{"interval_ms", "max_in_flight", "tick_timeout_ms", "delay_ms"}
}

func setParam(step *Step, name string, v float64) error {
	n := int(v + 0.5)
	switch name {
	case "interval_ms":
		step.IntervalMs = n
	case "max_in_flight":
		step.MaxInFlight = n
	case "tick_timeout_ms":
		step.TickTimeoutMs = n
	case "delay_ms":
		step.DelayMs = n
	default:
		return fmt.Errorf("%w: %s (available: %v)", ErrUnknownParam, name, SweepParams())
	}
	return nil
}

// Values returns the swept parameter values.
func (s *Sweep) Values() []float64 {
	if s.NumSteps <= 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.NumSteps-1)
	out := make([]float64, s.NumSteps)
	for i := range out {
		out[i] = s.Min + float64(i)*step
	}
	return out
}

func (r *Runner) RunSweep(ctx context.Context, img image.Image, sweep *Sweep) ([]SweepResult, error) {
	if err := setParam(&Step{}, sweep.Param, 0); err != nil {
		return nil, err
	}
	values := sweep.Values()
	results := make([]SweepResult, 0, len(values))

	for i, v := range values {
		step := sweep.Base
		if err := setParam(&step, sweep.Param, v); err != nil {
			return nil, err
		}
		res, err := r.RunStep(ctx, img, step)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.Param, v, err)
		}
		results = append(results, SweepResult{Value: v, Metrics: res.Metrics})
		r.Log.Info("sweep", "step", i+1, "of", len(values), sweep.Param, v)
	}
	return results, nil
}

// Best returns the result with the lowest value of metric.
func Best(results []SweepResult, metric string) (SweepResult, bool) {
	var best SweepResult
	found := false
	for _, res := range results {
		v, ok := res.Metrics[metric]
		if !ok {
			continue
		}
		if !found || v < best.Metrics[metric] {
			best = res
			found = true
		}
	}
	return best, found
}
