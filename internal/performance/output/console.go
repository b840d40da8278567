// Package output renders run progress and summaries for humans and tools.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

const ruleWidth = 56

// Console writes progress lines and the final report.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	palette *Palette
	quiet   bool
}

// ConsoleConfig contains configuration for Console.
type ConsoleConfig struct {
	Writer  io.Writer
	NoColor bool
	Quiet   bool

	// ForceColor enables colors even when Writer is not a terminal
	ForceColor bool
}

// NewConsole creates a console writer. Writer defaults to stdout.
func NewConsole(cfg ConsoleConfig) *Console {
	if cfg.Writer == nil {
		cfg.Writer = os.Stdout
	}
	enabled := cfg.ForceColor || ColorEnabled(cfg.Writer, cfg.NoColor)
	return &Console{
		w:       cfg.Writer,
		palette: NewPalette(enabled && !cfg.NoColor),
		quiet:   cfg.Quiet,
	}
}

// RunInfo describes a run before it starts.
type RunInfo struct {
	Name       string
	VUs        int
	Iterations int64
	Duration   time.Duration
	Steps      int
}

// PrintHeader prints the run banner.
func (c *Console) PrintHeader(info RunInfo) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	rule := strings.Repeat("━", ruleWidth)
	c.println(c.palette.Rule.Sprint(rule))
	c.println(c.palette.Title.Sprintf("%s - Running", info.Name))
	c.println(c.palette.Rule.Sprint(rule))

	budget := "unbounded"
	if info.Iterations > 0 {
		budget = fmt.Sprintf("%s iterations", formatNumber(info.Iterations))
	}
	if info.Duration > 0 {
		if info.Iterations > 0 {
			budget += fmt.Sprintf(" or %s", formatDuration(info.Duration))
		} else {
			budget = formatDuration(info.Duration)
		}
	}
	c.println(fmt.Sprintf("VUs: %s | Budget: %s | Steps: %d",
		c.palette.Value.Sprint(info.VUs), c.palette.Value.Sprint(budget), info.Steps))
	c.println("")
}

// ProgressLine is one periodic status update.
type ProgressLine struct {
	Elapsed    time.Duration
	Percent    float64
	ActiveVUs  int
	Iterations int64
	Requests   int64
	Failed     int64
}

// PrintProgress prints a single-line status update.
func (c *Console) PrintProgress(p ProgressLine) {
	if c.quiet {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var failRate float64
	if p.Requests > 0 {
		failRate = float64(p.Failed) / float64(p.Requests)
	}
	c.println(fmt.Sprintf("[%s] %5.1f%% | VUs: %d | Iterations: %s | Reqs: %s | Failed: %s",
		formatDuration(p.Elapsed),
		p.Percent,
		p.ActiveVUs,
		formatNumber(p.Iterations),
		formatNumber(p.Requests),
		c.palette.rate(failRate).Sprintf("%d (%.1f%%)", p.Failed, failRate*100)))
}

// PrintSummary prints the final report. In quiet mode only the verdict
// is written.
func (c *Console) PrintSummary(s *metrics.Summary) {
	c.mu.Lock()
	defer c.mu.Unlock()

	verdict := c.palette.Pass.Sprint("PASSED")
	if !s.Passed {
		verdict = c.palette.Fail.Sprint("FAILED")
	}
	if c.quiet {
		c.println(verdict)
		return
	}

	status := c.palette.Pass.Sprint("Completed ✓")
	switch {
	case !s.Passed:
		status = c.palette.Fail.Sprint("Failed ✗")
	case s.Interrupted:
		status = c.palette.Warn.Sprint("Interrupted")
	}

	rule := strings.Repeat("━", ruleWidth)
	c.println("")
	c.println(c.palette.Rule.Sprint(rule))
	c.println(fmt.Sprintf("%s - %s", c.palette.Title.Sprint(s.Name), status))
	c.println(c.palette.Rule.Sprint(rule))
	c.println("")

	c.println(fmt.Sprintf("Run ID:        %s", c.palette.Dim.Sprint(s.RunID)))
	c.println(fmt.Sprintf("Duration:      %s", c.palette.Value.Sprint(formatDuration(s.Duration))))
	c.println(fmt.Sprintf("VUs:           %s", c.palette.Value.Sprint(s.VUs)))
	c.println(fmt.Sprintf("Iterations:    %s", c.palette.Value.Sprint(formatNumber(s.Iterations))))
	c.println(fmt.Sprintf("Total Reqs:    %s (%.1f/s)", c.palette.Value.Sprint(formatNumber(s.TotalRequests)), s.RPS))
	c.println(fmt.Sprintf("Passed:        %s", c.palette.Pass.Sprint(formatNumber(s.PassCount))))
	c.println(fmt.Sprintf("Failed:        %s (network: %d, checks: %d)",
		c.palette.rate(s.FailRate).Sprint(formatNumber(s.FailCount)), s.NetworkErrors, s.CheckFailures))
	c.println(fmt.Sprintf("Fail Rate:     %s", c.palette.rate(s.FailRate).Sprintf("%.2f%%", s.FailRate*100)))
	c.println(fmt.Sprintf("Data Received: %s", formatBytes(s.TotalBytes)))
	c.println("")

	c.println(c.palette.Label.Sprint("Latency Distribution:"))
	l := s.Latency
	for _, row := range []struct {
		name string
		d    time.Duration
	}{
		{"Min", l.Min}, {"Avg", l.Mean}, {"P50", l.P50}, {"P90", l.P90},
		{"P95", l.P95}, {"P99", l.P99}, {"Max", l.Max},
	} {
		c.println(fmt.Sprintf("  %-10s %s", row.name+":", c.palette.Latency.Sprint(formatDurationShort(row.d))))
	}
	c.println("")

	if len(s.Steps) > 0 {
		c.println(c.palette.Label.Sprint("Steps:"))
		c.println(c.palette.Dim.Sprintf("  %-24s %8s %8s %8s %10s %10s", "NAME", "REQS", "PASS", "FAIL", "P95", "P99"))
		for _, st := range s.Steps {
			failed := fmt.Sprintf("%8d", st.FailCount)
			if st.FailCount > 0 {
				failed = c.palette.Fail.Sprint(failed)
			}
			c.println(fmt.Sprintf("  %-24s %8d %8d %s %10s %10s",
				truncate(st.Name, 24), st.TotalRequests, st.PassCount, failed,
				formatDurationShort(st.Latency.P95), formatDurationShort(st.Latency.P99)))
		}
		c.println("")
	}

	if codes := s.SortedStatusCodes(); len(codes) > 0 {
		parts := make([]string, 0, len(codes))
		for _, code := range codes {
			parts = append(parts, fmt.Sprintf("%d×%d", code, s.StatusCodes[code]))
		}
		c.println(fmt.Sprintf("Status Codes:  %s", strings.Join(parts, "  ")))
		c.println("")
	}

	if len(s.Thresholds) > 0 {
		c.println(c.palette.Label.Sprint("Thresholds:"))
		for _, t := range s.Thresholds {
			mark := c.palette.Pass.Sprint("✓")
			if !t.Passed {
				mark = c.palette.Fail.Sprint("✗")
			}
			line := fmt.Sprintf("  %s %s %s (actual: %s)", mark, t.Metric, t.Expression, t.Value)
			if t.Message != "" && !t.Passed {
				line += " " + c.palette.Dim.Sprint(t.Message)
			}
			c.println(line)
		}
		c.println("")
	}

	c.println(fmt.Sprintf("Result:        %s", verdict))
}

func (c *Console) println(s string) {
	fmt.Fprintln(c.w, s)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %02dm %02ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func formatDurationShort(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}

func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
