package config

import (
	"sort"

	"github.com/san-kum/glitchload/internal/glitch"
)

var Presets = map[string]*Config{
	"loading": {
		IntervalMs: 80, MaxInFlight: 2,
		Ranges: glitch.DefaultRanges(),
	},
	"calm": {
		IntervalMs: 250, MaxInFlight: 1, TickTimeoutMs: 1000,
		Ranges: glitch.Ranges{
			Seed:       glitch.Range{Min: 0, Max: 1},
			Quality:    glitch.Range{Min: 98, Max: 99},
			Amount:     glitch.Range{Min: 0, Max: 0.5},
			Iterations: 1,
		},
	},
	"frantic": {
		IntervalMs: 33, MaxInFlight: 4, TickTimeoutMs: 200,
		Ranges: glitch.Ranges{
			Seed:       glitch.Range{Min: 0, Max: 3},
			Quality:    glitch.Range{Min: 90, Max: 99},
			Amount:     glitch.Range{Min: 1, Max: 3},
			Iterations: 1,
		},
	},
	"record": {
		IntervalMs: 80, MaxInFlight: 1, Frames: 25,
		Ranges: glitch.DefaultRanges(),
	},
}

func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
