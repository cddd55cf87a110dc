package render

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/glitchload/internal/glitch"
)

// nextData reads SSE lines until a data field arrives.
func nextData(r *bufio.Reader) (string, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return "", err
		}
		if data, ok := strings.CutPrefix(strings.TrimRight(line, "\n"), "data: "); ok {
			return data, nil
		}
	}
}

var _ = Describe("Hub", func() {
	var (
		hub *Hub
		srv *httptest.Server
	)

	BeforeEach(func() {
		hub = NewHub()
		srv = httptest.NewServer(hub.Handler())
		DeferCleanup(func() {
			hub.Stop()
			srv.CloseClientConnections()
			srv.Close()
		})
	})

	It("serves a page that paints frames as the .loading background", func() {
		resp, err := http.Get(srv.URL + "/")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		Expect(resp.Header.Get("Content-Type")).To(HavePrefix("text/html"))
		Expect(string(body)).To(ContainSubstring(`class="loading"`))
		Expect(string(body)).To(ContainSubstring("new EventSource('/frames')"))
		Expect(string(body)).To(ContainSubstring("style.backgroundImage"))
	})

	It("returns 404 for unknown paths", func() {
		resp, err := http.Get(srv.URL + "/nope")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("serves the latest frame decoded", func() {
		resp, err := http.Get(srv.URL + "/frame")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))

		frame := pngFrame(200)
		hub.Render(frame)

		resp, err = http.Get(srv.URL + "/frame")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		_, want, _ := glitch.DecodeDataURI(frame)
		Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
		Expect(body).To(Equal(want))
	})

	It("streams frames over server-sent events", func() {
		first := pngFrame(10)
		hub.Render(first)

		resp, err := http.Get(srv.URL + "/frames")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))

		r := bufio.NewReader(resp.Body)
		Expect(nextData(r)).To(Equal(first))
		Eventually(hub.Subscribers).Should(Equal(1))

		second := pngFrame(20)
		hub.Render(second)
		Expect(nextData(r)).To(Equal(second))
	})

	It("drops stale frames for a subscriber that has not caught up", func() {
		ch, _ := hub.subscribe()
		defer hub.unsubscribe(ch)

		hub.Render("data:,a")
		hub.Render("data:,b")
		hub.Render("data:,c")

		Expect(ch).To(HaveLen(1))
		f := <-ch
		Expect(f.uri).To(Equal("data:,c"))
		Expect(f.seq).To(Equal(uint64(3)))
	})

	It("stops promptly with open streams", func() {
		live := NewHub()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errc := make(chan error, 1)
		go func() { errc <- live.Start(ctx, "127.0.0.1:0") }()
		Eventually(live.ListenAddr).ShouldNot(BeEmpty())

		resp, err := http.Get("http://" + live.ListenAddr() + "/healthz")
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		stream, err := http.Get("http://" + live.ListenAddr() + "/frames")
		Expect(err).NotTo(HaveOccurred())
		defer stream.Body.Close()
		Eventually(live.Subscribers).Should(Equal(1))

		start := time.Now()
		Expect(live.Stop()).To(Succeed())
		Expect(time.Since(start)).To(BeNumerically("<", 2*time.Second))
		Eventually(errc).Should(Receive(BeNil()))
	})
})
