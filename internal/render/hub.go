package render

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/san-kum/glitchload/internal/glitch"
)

const page = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>loading</title>
<style>
html, body { margin: 0; height: 100%; background: #000; }
.loading { width: 100%; height: 100%; background-size: cover; background-position: center; image-rendering: pixelated; }
</style>
</head>
<body>
<div class="loading"></div>
<script>
const target = document.querySelector('.loading');
const frames = new EventSource('/frames');
frames.onmessage = function(e) {
    target.style.backgroundImage = 'url(' + e.data + ')';
};
</script>
</body>
</html>
`

// Hub fans frames out to browsers over server-sent events. Each subscriber
// holds at most one pending frame; a slow client skips to the newest.
type Hub struct {
	mu      sync.RWMutex
	frame   string
	seq     uint64
	subs    map[chan hubFrame]struct{}
	server  *http.Server
	lis     net.Listener
	started bool
	closing chan struct{}
	once    sync.Once
}

type hubFrame struct {
	seq uint64
	uri string
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan hubFrame]struct{}), closing: make(chan struct{})}
}

func (h *Hub) Render(dataURI string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	h.frame = dataURI
	f := hubFrame{seq: h.seq, uri: dataURI}
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- f
	}
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) subscribe() (chan hubFrame, hubFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan hubFrame, 1)
	h.subs[ch] = struct{}{}
	return ch, hubFrame{seq: h.seq, uri: h.frame}
}

func (h *Hub) unsubscribe(ch chan hubFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, ch)
}

func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handlePage)
	mux.HandleFunc("/frames", h.handleFrames)
	mux.HandleFunc("/frame", h.handleFrame)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	return mux
}

func (h *Hub) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}

func (h *Hub) handleFrame(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	frame := h.frame
	h.mu.RUnlock()

	if frame == "" {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	mime, data, err := glitch.DecodeDataURI(frame)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func (h *Hub) handleFrames(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch, current := h.subscribe()
	defer h.unsubscribe(ch)

	if current.uri != "" {
		writeEvent(w, current)
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.closing:
			return
		case f := <-ch:
			writeEvent(w, f)
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, f hubFrame) {
	fmt.Fprintf(w, "id: %d\ndata: %s\n\n", f.seq, f.uri)
}

// Start listens on addr and serves until ctx is cancelled or Stop is called.
func (h *Hub) Start(ctx context.Context, addr string) error {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return errors.New("hub already started")
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		h.mu.Unlock()
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.lis = lis
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	h.started = true
	srv := h.server
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.Stop()
	}()

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("hub: %w", err)
	}
	return nil
}

func (h *Hub) Stop() error {
	h.mu.Lock()
	srv := h.server
	started := h.started
	h.started = false
	h.mu.Unlock()

	if !started || srv == nil {
		return nil
	}
	// streaming handlers would otherwise hold Shutdown until its deadline
	h.once.Do(func() { close(h.closing) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("hub shutdown: %w", err)
	}
	return nil
}

// ListenAddr returns the bound address, or "" before Start.
func (h *Hub) ListenAddr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lis == nil {
		return ""
	}
	return h.lis.Addr().String()
}
