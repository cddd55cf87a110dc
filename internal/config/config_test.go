package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Interval() != 80*time.Millisecond {
		t.Errorf("expected 80ms interval, got %v", cfg.Interval())
	}
	if cfg.Transform != "jpeg" {
		t.Errorf("expected transform jpeg, got %s", cfg.Transform)
	}
	if cfg.Ranges.Iterations != 1 {
		t.Errorf("expected iterations 1, got %d", cfg.Ranges.Iterations)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glitch.yaml")
	data := []byte(`
interval_ms: 120
transform: command
command: glitch-cli --stdin
ranges:
  seed: {min: 0, max: 2}
  quality: {min: 95, max: 99}
  amount: {min: 0, max: 1}
  iterations: 2
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.IntervalMs != 120 || cfg.Command != "glitch-cli --stdin" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.MaxInFlight != DefaultMaxInFlight || cfg.Addr != DefaultAddr {
		t.Errorf("omitted keys should keep defaults, got %+v", cfg)
	}
	if cfg.Ranges.Iterations != 2 || cfg.Ranges.Quality.Min != 95 {
		t.Errorf("unexpected ranges %+v", cfg.Ranges)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero interval", "interval_ms: 0"},
		{"command without line", "transform: command"},
		{"inverted range", "ranges: {seed: {min: 3, max: 1}, quality: {min: 97, max: 99}, amount: {min: 0, max: 3}, iterations: 1}"},
		{"bad yaml", "interval_ms: [nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			os.WriteFile(path, []byte(tt.yaml), 0644)
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	cfg := DefaultConfig()
	cfg.Seed = 7
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *cfg {
		t.Errorf("round trip mismatch: %+v vs %+v", got, cfg)
	}
}

func TestPresets(t *testing.T) {
	for _, name := range ListPresets() {
		cfg := DefaultConfig()
		cfg.Apply(GetPreset(name))
		if err := cfg.Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}

	cfg := DefaultConfig()
	cfg.Apply(GetPreset("calm"))
	if cfg.IntervalMs != 250 || cfg.MaxInFlight != 1 || cfg.Ranges.Amount.Max != 0.5 {
		t.Errorf("calm preset not applied: %+v", cfg)
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}
