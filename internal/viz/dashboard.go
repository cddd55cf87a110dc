package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/glitchload/internal/loop"
	"github.com/san-kum/glitchload/internal/metrics"
	"github.com/san-kum/glitchload/internal/render"
)

const (
	RefreshInterval = 100 * time.Millisecond
	previewWidth    = 48
	previewHeight   = 16
	plotHeight      = 8
)

type TickMsg time.Time

// StoppedMsg tells the dashboard that the loop has exited on its own.
type StoppedMsg struct{}

type Info struct {
	Source    string
	Transform string
	Interval  time.Duration
}

type Model struct {
	info   Info
	stats  *metrics.Stats
	set    *metrics.Set
	latest *render.Latest

	snap      metrics.Snapshot
	values    map[string]float64
	frameSeen uint64
	preview   string

	themeIdx int
	styles   styles
	frozen   bool
	showHelp bool
	stopped  bool
	width    int
	height   int
}

func NewModel(info Info, stats *metrics.Stats, set *metrics.Set, latest *render.Latest) Model {
	return Model{
		info:   info,
		stats:  stats,
		set:    set,
		latest: latest,
		styles: newStyles(Themes[0]),
		width:  80,
		height: 24,
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ":
			m.frozen = !m.frozen
		case "t":
			m.themeIdx = (m.themeIdx + 1) % len(Themes)
			m.styles = newStyles(Themes[m.themeIdx])
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StoppedMsg:
		m.stopped = true
		m.refresh()
	case TickMsg:
		m.refresh()
		return m, tickCmd()
	}
	return m, nil
}

func (m *Model) refresh() {
	if m.stats != nil {
		m.snap = m.stats.Snapshot()
	}
	if m.set != nil {
		m.values = m.set.Values()
	}
	if m.latest == nil || m.frozen {
		return
	}
	frame, n := m.latest.Frame()
	if n == m.frameSeen || frame == "" {
		return
	}
	m.frameSeen = n
	if p, err := Preview(frame, previewWidth, previewHeight); err == nil {
		m.preview = p
	}
}

func (m Model) Theme() Theme { return Themes[m.themeIdx] }

func (m Model) View() string {
	s := m.styles
	var b strings.Builder

	title := fmt.Sprintf("GLITCHLOAD  %s  [%s]", m.info.Source, m.info.Transform)
	if m.stopped {
		title += "  (stopped)"
	}
	b.WriteString(s.header.Render(title))
	b.WriteString("\n")

	preview := m.preview
	if preview == "" {
		preview = s.muted.Render("waiting for first frame...")
	}
	if m.frozen {
		preview += "\n" + s.muted.Render("(frozen)")
	}
	left := s.panel.Render(preview)
	right := s.panel.Render(m.statsView())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	b.WriteString("\n")

	if len(m.snap.LatencyMs) >= 2 {
		width := m.width - 10
		if width < 20 {
			width = 20
		}
		if width > 120 {
			width = 120
		}
		graph := asciigraph.Plot(m.snap.LatencyMs,
			asciigraph.Height(plotHeight),
			asciigraph.Width(width),
			asciigraph.Caption("latency (ms) of delivered ticks"))
		b.WriteString(graph)
		b.WriteString("\n")
	}

	if m.snap.LastErr != nil {
		b.WriteString(s.errorText.Render("last error: " + m.snap.LastErr.Error()))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(s.help.Render("space freeze preview | t theme | ? help | q quit"))
	} else {
		b.WriteString(s.help.Render(fmt.Sprintf("theme: %s | ? help", m.Theme().Name)))
	}
	return b.String()
}

func (m Model) statsView() string {
	s := m.styles
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(s.label.Render(label))
		b.WriteString(s.value.Render(value))
		b.WriteString("\n")
	}

	row("interval", m.info.Interval.String())
	row("ticks", fmt.Sprintf("%d", m.snap.Total))
	row("elapsed", m.snap.Elapsed.Round(time.Millisecond).String())
	for _, o := range loop.Outcomes() {
		b.WriteString(s.label.Render(o.String()))
		b.WriteString(s.outcome[o == loop.OutcomeDelivered].Render(fmt.Sprintf("%d", m.snap.Counts[o])))
		b.WriteString("\n")
	}

	if m.set != nil {
		for _, name := range m.set.Names() {
			row(name, fmt.Sprintf("%.3f", m.values[name]))
		}
	}

	p := m.snap.LastParams()
	row("seed", fmt.Sprintf("%.4f", p.Seed))
	row("quality", fmt.Sprintf("%.4f", p.Quality))
	row("amount", fmt.Sprintf("%.4f", p.Amount))
	row("iterations", fmt.Sprintf("%d", p.Iterations))
	return strings.TrimRight(b.String(), "\n")
}
