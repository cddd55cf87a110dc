package render

import (
	"fmt"
	"io"
	"sync"

	svg "github.com/ajstarks/svgo"
)

// ContactSheet records up to Columns*Rows frames and lays them out on a grid,
// each frame embedded by its data URI.
type ContactSheet struct {
	Columns, Rows int
	CellW, CellH  int
	Title         string

	mu     sync.Mutex
	frames []string
}

func NewContactSheet(columns, rows, cellW, cellH int) *ContactSheet {
	return &ContactSheet{Columns: columns, Rows: rows, CellW: cellW, CellH: cellH, Title: "glitchload"}
}

func (c *ContactSheet) Render(dataURI string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) < c.Columns*c.Rows {
		c.frames = append(c.frames, dataURI)
	}
}

func (c *ContactSheet) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func (c *ContactSheet) Encode(w io.Writer) error {
	c.mu.Lock()
	frames := append([]string(nil), c.frames...)
	c.mu.Unlock()

	if len(frames) == 0 {
		return fmt.Errorf("render: no frames recorded")
	}

	const gap, header = 4, 24
	width := c.Columns*(c.CellW+gap) + gap
	height := header + c.Rows*(c.CellH+gap) + gap

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Title(c.Title)
	canvas.Rect(0, 0, width, height, "fill:#0a0a0a")
	canvas.Text(gap, header-8, fmt.Sprintf("%s (%d frames)", c.Title, len(frames)), "fill:#00ffff;font-family:monospace;font-size:12px")

	for i, frame := range frames {
		col, row := i%c.Columns, i/c.Columns
		x := gap + col*(c.CellW+gap)
		y := header + gap + row*(c.CellH+gap)
		canvas.Image(x, y, c.CellW, c.CellH, frame)
	}
	canvas.Grid(0, header, width, height-header, c.CellW+gap, "stroke:#444466;opacity:0.3")
	canvas.End()
	return nil
}
