package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

func sampleSummary() *metrics.Summary {
	return &metrics.Summary{
		RunID:         "4d1c0f7e-8b0a-4c55-9d5f-0d3f2b1a9e11",
		Name:          "gateway smoke",
		StartTime:     time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2026, 10, 19, 12, 0, 12, 0, time.UTC),
		Duration:      12 * time.Second,
		VUs:           50,
		Iterations:    50,
		TotalRequests: 150,
		PassCount:     147,
		FailCount:     3,
		NetworkErrors: 1,
		CheckFailures: 2,
		TotalBytes:    42_000,
		FailRate:      0.02,
		RPS:           12.5,
		Latency: metrics.LatencyStats{
			Min: 3 * time.Millisecond, Mean: 41 * time.Millisecond,
			P50: 38 * time.Millisecond, P90: 70 * time.Millisecond,
			P95: 88 * time.Millisecond, P99: 140 * time.Millisecond,
			Max: 190 * time.Millisecond, Count: 150,
		},
		Steps: []metrics.StepSummary{
			{Index: 0, Name: "gateway", TotalRequests: 50, PassCount: 50},
			{Index: 1, Name: "gateway bot", TotalRequests: 50, PassCount: 48, FailCount: 2, CheckFailures: 2},
			{Index: 2, Name: "users me", TotalRequests: 50, PassCount: 49, FailCount: 1, NetworkErrors: 1},
		},
		StatusCodes: map[int]int64{200: 147, 401: 2},
		Thresholds: []metrics.ThresholdResult{
			{Metric: "fail_rate", Expression: "rate <= 0.0500", Passed: true, Value: "0.0200"},
			{Metric: "http_req_duration", Expression: "p99 < 100ms", Passed: false, Value: "140ms", Message: "p99 is 140ms, threshold: < 100ms"},
		},
		Passed: false,
	}
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})

	c.PrintSummary(sampleSummary())
	out := buf.String()

	for _, want := range []string{
		"gateway smoke - Failed ✗",
		"Total Reqs:    150 (12.5/s)",
		"Failed:        3 (network: 1, checks: 2)",
		"Fail Rate:     2.00%",
		"P95:",
		"88.0ms",
		"gateway bot",
		"200×147",
		"401×2",
		"✗ http_req_duration p99 < 100ms (actual: 140ms)",
		"✓ fail_rate",
		"Result:        FAILED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("NoColor output contains ANSI escapes")
	}
}

func TestConsole_Quiet(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true, Quiet: true})

	c.PrintHeader(RunInfo{Name: "x", VUs: 1, Iterations: 1})
	c.PrintProgress(ProgressLine{Requests: 10})

	s := sampleSummary()
	s.Passed = true
	c.PrintSummary(s)

	if got := strings.TrimSpace(buf.String()); got != "PASSED" {
		t.Errorf("quiet output = %q, want PASSED", got)
	}
}

func TestConsole_ForceColor(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, ForceColor: true})

	c.PrintSummary(sampleSummary())

	if !strings.Contains(buf.String(), "\033[") {
		t.Error("expected ANSI escapes with ForceColor")
	}
}

func TestConsole_PrintHeader(t *testing.T) {
	tests := []struct {
		name string
		info RunInfo
		want string
	}{
		{"iterations", RunInfo{Name: "a", VUs: 50, Iterations: 1500}, "Budget: 1,500 iterations"},
		{"duration", RunInfo{Name: "a", VUs: 5, Duration: 90 * time.Second}, "Budget: 1m 30s"},
		{"both", RunInfo{Name: "a", VUs: 5, Iterations: 10, Duration: 30 * time.Second}, "Budget: 10 iterations or 30.0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewConsole(ConsoleConfig{Writer: &buf, NoColor: true}).PrintHeader(tt.info)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("header missing %q\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestConsole_PrintProgress(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(ConsoleConfig{Writer: &buf, NoColor: true})

	c.PrintProgress(ProgressLine{Elapsed: 2 * time.Second, Percent: 40, ActiveVUs: 3, Iterations: 20, Requests: 60, Failed: 6})

	want := "[2.0s]  40.0% | VUs: 3 | Iterations: 20 | Reqs: 60 | Failed: 6 (10.0%)"
	if got := strings.TrimSpace(buf.String()); got != want {
		t.Errorf("PrintProgress() = %q, want %q", got, want)
	}
}

func TestColorEnabled_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	t.Setenv("FORCE_COLOR", "")
	t.Setenv("NO_COLOR", "")
	if ColorEnabled(&buf, false) {
		t.Error("ColorEnabled(buffer) = true, want false")
	}

	t.Setenv("FORCE_COLOR", "1")
	if !ColorEnabled(&buf, false) {
		t.Error("FORCE_COLOR should enable colors")
	}
	if ColorEnabled(&buf, true) {
		t.Error("noColor must win over FORCE_COLOR")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{500 * time.Millisecond, "500ms"},
		{1 * time.Second, "1.0s"},
		{1*time.Minute + 30*time.Second, "1m 30s"},
		{1*time.Hour + 2*time.Minute + 3*time.Second, "1h 02m 03s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDuration(tt.duration); got != tt.expected {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatDurationShort(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{0, "0ms"},
		{500 * time.Microsecond, "500µs"},
		{50 * time.Millisecond, "50.0ms"},
		{1500 * time.Millisecond, "1.50s"},
		{90 * time.Second, "1.5m"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatDurationShort(tt.duration); got != tt.expected {
				t.Errorf("formatDurationShort(%v) = %q, want %q", tt.duration, got, tt.expected)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		number   int64
		expected string
	}{
		{0, "0"},
		{100, "100"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := formatNumber(tt.number); got != tt.expected {
				t.Errorf("formatNumber(%d) = %q, want %q", tt.number, got, tt.expected)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.n); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
