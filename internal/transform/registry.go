package transform

import (
	"fmt"
	"sort"
)

// Options carries the settings a registered transform may need.
type Options struct {
	Command string
}

type Registry struct {
	transforms map[string]func(Options) (Transform, error)
}

func NewRegistry() *Registry {
	r := &Registry{transforms: make(map[string]func(Options) (Transform, error))}

	r.transforms["jpeg"] = func(Options) (Transform, error) { return NewJPEG(), nil }
	r.transforms["command"] = func(opts Options) (Transform, error) {
		if opts.Command == "" {
			return nil, fmt.Errorf("transform command requires --command")
		}
		return ParseCommand(opts.Command)
	}

	return r
}

func (r *Registry) Register(name string, fn func(Options) (Transform, error)) {
	r.transforms[name] = fn
}

func (r *Registry) Get(name string, opts Options) (Transform, error) {
	fn, ok := r.transforms[name]
	if !ok {
		return nil, fmt.Errorf("unknown transform: %s (available: %v)", name, r.List())
	}
	return fn(opts)
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
