package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Palette holds the colors used by the console report.
type Palette struct {
	Title   *color.Color
	Rule    *color.Color
	Label   *color.Color
	Value   *color.Color
	Latency *color.Color
	Pass    *color.Color
	Warn    *color.Color
	Fail    *color.Color
	Dim     *color.Color
}

// NewPalette returns the report palette with colors on or off.
func NewPalette(enabled bool) *Palette {
	p := &Palette{
		Title:   color.New(color.Bold),
		Rule:    color.New(color.FgCyan),
		Label:   color.New(color.Bold),
		Value:   color.New(color.FgCyan),
		Latency: color.New(color.FgBlue),
		Pass:    color.New(color.FgGreen, color.Bold),
		Warn:    color.New(color.FgYellow, color.Bold),
		Fail:    color.New(color.FgRed, color.Bold),
		Dim:     color.New(color.Faint),
	}

	for _, c := range []*color.Color{p.Title, p.Rule, p.Label, p.Value, p.Latency, p.Pass, p.Warn, p.Fail, p.Dim} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// rate picks pass, warn or fail for a failure ratio.
func (p *Palette) rate(failRate float64) *color.Color {
	switch {
	case failRate > 0.05:
		return p.Fail
	case failRate > 0.01:
		return p.Warn
	default:
		return p.Pass
	}
}

// ColorEnabled reports whether colored output should be written to w.
//
// Colors are used only on a terminal, and never when noColor is set, NO_COLOR
// is present or TERM is "dumb".
func ColorEnabled(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	if os.Getenv("FORCE_COLOR") != "" {
		return true
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return IsTerminal(w)
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
