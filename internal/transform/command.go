package transform

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/san-kum/glitchload/internal/glitch"
)

const stderrTail = 512

// Command runs an external glitch program per tick. The source is written to
// stdin as PNG; the parameters are passed both as flags and as GLITCH_*
// environment variables; stdout must carry the encoded image.
type Command struct {
	Path string
	Args []string
	Env  []string
}

func NewCommand(path string, args ...string) *Command {
	return &Command{Path: path, Args: args}
}

// ParseCommand splits a command line on whitespace. Quoting is not supported.
func ParseCommand(line string) (*Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil, fmt.Errorf("transform: empty command")
	}
	return NewCommand(parts[0], parts[1:]...), nil
}

func (c *Command) Apply(ctx context.Context, img image.Image, p glitch.Parameters) (string, error) {
	if img == nil {
		return "", ErrNilImage
	}

	var in bytes.Buffer
	if err := png.Encode(&in, img); err != nil {
		return "", fmt.Errorf("transform: encode source: %w", err)
	}

	cmd := exec.CommandContext(ctx, c.Path, append(append([]string{}, c.Args...), paramFlags(p)...)...)
	cmd.Env = append(append(os.Environ(), c.Env...), paramEnv(p)...)
	cmd.Stdin = &in
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("transform: %s: %w: %s", c.Path, err, tail(errOut.String(), stderrTail))
	}
	if out.Len() == 0 {
		return "", ErrEmptyOutput
	}

	mime := http.DetectContentType(out.Bytes())
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: output is %s, not an image", ErrEncode, mime)
	}
	return glitch.EncodeDataURI(mime, out.Bytes()), nil
}

func paramFlags(p glitch.Parameters) []string {
	return []string{
		"--seed", formatFloat(p.Seed),
		"--quality", formatFloat(p.Quality),
		"--amount", formatFloat(p.Amount),
		"--iterations", strconv.Itoa(p.Iterations),
	}
}

func paramEnv(p glitch.Parameters) []string {
	return []string{
		"GLITCH_SEED=" + formatFloat(p.Seed),
		"GLITCH_QUALITY=" + formatFloat(p.Quality),
		"GLITCH_AMOUNT=" + formatFloat(p.Amount),
		"GLITCH_ITERATIONS=" + strconv.Itoa(p.Iterations),
	}
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
