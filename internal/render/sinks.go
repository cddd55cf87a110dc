package render

import (
	"sync"

	"github.com/san-kum/glitchload/internal/loop"
)

type Fanout []loop.Sink

func (f Fanout) Render(dataURI string) {
	for _, s := range f {
		if s != nil {
			s.Render(dataURI)
		}
	}
}

type Latest struct {
	mu    sync.RWMutex
	frame string
	count uint64
}

func (l *Latest) Render(dataURI string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frame = dataURI
	l.count++
}

// Frame returns the newest frame and how many frames have been rendered.
func (l *Latest) Frame() (string, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame, l.count
}
