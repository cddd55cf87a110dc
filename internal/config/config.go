package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/glitchload/internal/glitch"
)

const (
	DefaultIntervalMs  = 80
	DefaultTransform   = "jpeg"
	DefaultMaxInFlight = 2
	DefaultAddr        = "127.0.0.1:8080"
	DefaultFrames      = 50
)

type Config struct {
	Source        string        `yaml:"source"`
	IntervalMs    int           `yaml:"interval_ms"`
	Transform     string        `yaml:"transform"`
	Command       string        `yaml:"command"`
	MaxInFlight   int           `yaml:"max_in_flight"`
	TickTimeoutMs int           `yaml:"tick_timeout_ms"`
	Seed          int64         `yaml:"seed"`
	Addr          string        `yaml:"addr"`
	Frames        int           `yaml:"frames"`
	Ranges        glitch.Ranges `yaml:"ranges"`
}

func DefaultConfig() *Config {
	return &Config{
		IntervalMs:  DefaultIntervalMs,
		Transform:   DefaultTransform,
		MaxInFlight: DefaultMaxInFlight,
		Addr:        DefaultAddr,
		Frames:      DefaultFrames,
		Ranges:      glitch.DefaultRanges(),
	}
}

// Load reads a YAML file over the defaults, so omitted keys keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.IntervalMs <= 0 {
		return fmt.Errorf("interval_ms must be positive, got %d", c.IntervalMs)
	}
	if c.TickTimeoutMs < 0 {
		return fmt.Errorf("tick_timeout_ms must not be negative, got %d", c.TickTimeoutMs)
	}
	if c.Transform == "command" && c.Command == "" {
		return fmt.Errorf("transform command requires a command line")
	}
	if c.Frames < 0 {
		return fmt.Errorf("frames must not be negative, got %d", c.Frames)
	}
	return c.Ranges.Validate()
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMs) * time.Millisecond
}

func (c *Config) TickTimeout() time.Duration {
	return time.Duration(c.TickTimeoutMs) * time.Millisecond
}

// Apply copies the non-zero fields of a preset onto c.
func (c *Config) Apply(p *Config) {
	if p.IntervalMs != 0 {
		c.IntervalMs = p.IntervalMs
	}
	if p.MaxInFlight != 0 {
		c.MaxInFlight = p.MaxInFlight
	}
	if p.TickTimeoutMs != 0 {
		c.TickTimeoutMs = p.TickTimeoutMs
	}
	if p.Frames != 0 {
		c.Frames = p.Frames
	}
	if p.Ranges != (glitch.Ranges{}) {
		c.Ranges = p.Ranges
	}
}
