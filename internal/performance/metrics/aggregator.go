// Package metrics aggregates per-request results into run summaries using
// HDR histograms.
package metrics

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Sink observes every result accepted by the Aggregator.
//
// Observe is called from VU goroutines concurrently and must not block.
type Sink interface {
	Observe(result RequestResult)
}

// Config contains configuration for an Aggregator.
type Config struct {
	// RunID identifies the run in reports and history
	RunID string

	// Name of the run
	Name string

	// Steps are the scenario step names, indexed like RequestResult.StepIndex
	Steps []string

	// HistogramMin is the minimum recordable value in microseconds (default: 1)
	HistogramMin int64

	// HistogramMax is the maximum recordable value in microseconds (default: 1 hour)
	HistogramMax int64

	// HistogramSigFigs is the number of significant figures (default: 3)
	HistogramSigFigs int
}

func (c *Config) applyDefaults() {
	if c.HistogramMin <= 0 {
		c.HistogramMin = 1
	}
	if c.HistogramMax <= 0 {
		c.HistogramMax = int64(time.Hour / time.Microsecond)
	}
	if c.HistogramSigFigs <= 0 {
		c.HistogramSigFigs = 3
	}
}

// counters groups the lock-free tallies kept overall and per step.
type counters struct {
	total         atomic.Int64
	passed        atomic.Int64
	failed        atomic.Int64
	networkErrors atomic.Int64
	checkFailures atomic.Int64
	bytes         atomic.Int64
}

func (c *counters) add(r *RequestResult) {
	c.total.Add(1)
	c.bytes.Add(r.BytesReceived)

	switch r.Outcome() {
	case OutcomePassed:
		c.passed.Add(1)
	case OutcomeNetworkError:
		c.failed.Add(1)
		c.networkErrors.Add(1)
	default:
		c.failed.Add(1)
		c.checkFailures.Add(1)
	}
}

// histogram is an HDR histogram guarded by a mutex; RecordValue is not
// safe for concurrent use.
type histogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func (h *histogram) record(micros int64) {
	h.mu.Lock()
	_ = h.hist.RecordValue(micros)
	h.mu.Unlock()
}

func (h *histogram) stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return latencyStatsOf(h.hist)
}

type stepStats struct {
	name string
	counters
	latency histogram
}

// Aggregator collects RequestResults from all VUs.
//
// # Thread Safety
//
// Record is safe for concurrent use. Counters use atomic operations and
// histograms are mutex protected. Finalize takes an exclusive lock so no
// Record can interleave with it; after Finalize every Record is rejected
// with ErrFinalized.
type Aggregator struct {
	config Config

	// stateMu guards finalized; Record holds it shared.
	stateMu   sync.RWMutex
	finalized bool

	overall counters
	latency histogram
	steps   []*stepStats

	statusMu    sync.Mutex
	statusCodes map[int]int64

	sinks []Sink

	startTime time.Time
}

// NewAggregator creates an Aggregator for a scenario with the given steps.
func NewAggregator(config Config, sinks ...Sink) *Aggregator {
	config.applyDefaults()

	newHist := func() *hdrhistogram.Histogram {
		return hdrhistogram.New(config.HistogramMin, config.HistogramMax, config.HistogramSigFigs)
	}

	a := &Aggregator{
		config:      config,
		latency:     histogram{hist: newHist()},
		steps:       make([]*stepStats, len(config.Steps)),
		statusCodes: make(map[int]int64),
		sinks:       sinks,
		startTime:   time.Now(),
	}
	for i, name := range config.Steps {
		a.steps[i] = &stepStats{name: name, latency: histogram{hist: newHist()}}
	}
	return a
}

// Start resets the clock used for throughput. Call it when the first VU starts.
func (a *Aggregator) Start() {
	a.stateMu.Lock()
	a.startTime = time.Now()
	a.stateMu.Unlock()
}

// Record accumulates one result.
func (a *Aggregator) Record(result RequestResult) error {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()

	if a.finalized {
		return ErrFinalized
	}
	if result.StepIndex < 0 || result.StepIndex >= len(a.steps) {
		return fmt.Errorf("result for unknown step index %d (scenario has %d steps)", result.StepIndex, len(a.steps))
	}

	micros := a.clamp(result.Latency.Microseconds())

	a.overall.add(&result)
	a.latency.record(micros)

	step := a.steps[result.StepIndex]
	step.add(&result)
	step.latency.record(micros)

	if result.StatusCode > 0 {
		a.statusMu.Lock()
		a.statusCodes[result.StatusCode]++
		a.statusMu.Unlock()
	}

	for _, sink := range a.sinks {
		sink.Observe(result)
	}
	return nil
}

func (a *Aggregator) clamp(micros int64) int64 {
	if micros < a.config.HistogramMin {
		return a.config.HistogramMin
	}
	if micros > a.config.HistogramMax {
		return a.config.HistogramMax
	}
	return micros
}

// Progress is a cheap live view of the counters.
type Progress struct {
	TotalRequests int64
	PassCount     int64
	FailCount     int64
}

// Progress returns the current counters. It may be called at any time.
func (a *Aggregator) Progress() Progress {
	return Progress{
		TotalRequests: a.overall.total.Load(),
		PassCount:     a.overall.passed.Load(),
		FailCount:     a.overall.failed.Load(),
	}
}

// Finalize freezes the aggregator and returns the run summary.
//
// It must be called once, after every VU has terminated. Further calls to
// Finalize or Record fail with ErrFinalized.
func (a *Aggregator) Finalize() (*Summary, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if a.finalized {
		return nil, ErrFinalized
	}
	a.finalized = true

	end := time.Now()
	elapsed := end.Sub(a.startTime)

	summary := &Summary{
		RunID:         a.config.RunID,
		Name:          a.config.Name,
		StartTime:     a.startTime,
		EndTime:       end,
		Duration:      elapsed,
		TotalRequests: a.overall.total.Load(),
		PassCount:     a.overall.passed.Load(),
		FailCount:     a.overall.failed.Load(),
		NetworkErrors: a.overall.networkErrors.Load(),
		CheckFailures: a.overall.checkFailures.Load(),
		TotalBytes:    a.overall.bytes.Load(),
		Latency:       a.latency.stats(),
		StatusCodes:   make(map[int]int64, len(a.statusCodes)),
		Passed:        true,
	}

	if summary.TotalRequests > 0 {
		summary.FailRate = float64(summary.FailCount) / float64(summary.TotalRequests)
	}
	if elapsed > 0 {
		summary.RPS = float64(summary.TotalRequests) / elapsed.Seconds()
	}

	a.statusMu.Lock()
	for code, n := range a.statusCodes {
		summary.StatusCodes[code] = n
	}
	a.statusMu.Unlock()

	for i, step := range a.steps {
		summary.Steps = append(summary.Steps, StepSummary{
			Index:         i,
			Name:          step.name,
			TotalRequests: step.total.Load(),
			PassCount:     step.passed.Load(),
			FailCount:     step.failed.Load(),
			NetworkErrors: step.networkErrors.Load(),
			CheckFailures: step.checkFailures.Load(),
			Latency:       step.latency.stats(),
		})
	}

	return summary, nil
}

// Summary is the finalized result of a run.
type Summary struct {
	RunID     string        `json:"runId"`
	Name      string        `json:"name"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`

	VUs        int   `json:"vus"`
	Iterations int64 `json:"iterations"`

	TotalRequests int64   `json:"totalRequests"`
	PassCount     int64   `json:"passCount"`
	FailCount     int64   `json:"failCount"`
	NetworkErrors int64   `json:"networkErrors"`
	CheckFailures int64   `json:"checkFailures"`
	TotalBytes    int64   `json:"totalBytes"`
	FailRate      float64 `json:"failRate"`
	RPS           float64 `json:"rps"`

	Latency     LatencyStats      `json:"latency"`
	Steps       []StepSummary     `json:"steps"`
	StatusCodes map[int]int64     `json:"statusCodes"`
	Thresholds  []ThresholdResult `json:"thresholds,omitempty"`
	Passed      bool              `json:"passed"`

	// Interrupted is set when the run was stopped by a signal rather than a budget.
	Interrupted bool `json:"interrupted,omitempty"`
}

// SortedStatusCodes returns the observed status codes in ascending order.
func (s *Summary) SortedStatusCodes() []int {
	codes := make([]int, 0, len(s.StatusCodes))
	for code := range s.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// StepSummary is the per-step breakdown of a Summary.
type StepSummary struct {
	Index         int          `json:"index"`
	Name          string       `json:"name"`
	TotalRequests int64        `json:"totalRequests"`
	PassCount     int64        `json:"passCount"`
	FailCount     int64        `json:"failCount"`
	NetworkErrors int64        `json:"networkErrors"`
	CheckFailures int64        `json:"checkFailures"`
	Latency       LatencyStats `json:"latency"`
}

// LatencyStats contains latency statistics.
type LatencyStats struct {
	Min    time.Duration `json:"min"`
	Max    time.Duration `json:"max"`
	Mean   time.Duration `json:"mean"`
	StdDev time.Duration `json:"stdDev"`
	P50    time.Duration `json:"p50"`
	P90    time.Duration `json:"p90"`
	P95    time.Duration `json:"p95"`
	P99    time.Duration `json:"p99"`
	Count  int64         `json:"count"`
}

func latencyStatsOf(h *hdrhistogram.Histogram) LatencyStats {
	if h.TotalCount() == 0 {
		return LatencyStats{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return LatencyStats{
		Min:    us(h.Min()),
		Max:    us(h.Max()),
		Mean:   time.Duration(h.Mean() * float64(time.Microsecond)),
		StdDev: time.Duration(h.StdDev() * float64(time.Microsecond)),
		P50:    us(h.ValueAtQuantile(50)),
		P90:    us(h.ValueAtQuantile(90)),
		P95:    us(h.ValueAtQuantile(95)),
		P99:    us(h.ValueAtQuantile(99)),
		Count:  h.TotalCount(),
	}
}
