package performance

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/runner/internal/logging"
	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

// Driver runs a scenario with a fixed pool of virtual users.
//
// # Lifecycle
//
// A Driver is single use: NewDriver, then Run exactly once. Progress may be
// polled from other goroutines while Run is executing.
//
// # Stopping
//
// Run ends when the iteration budget is exhausted, the configured duration
// elapses, or ctx is cancelled. On a stop signal every VU finishes its
// in-flight request and exits before the next step. In-flight requests are
// cancelled only if they outlive RunConfig.GracefulStop.
type Driver struct {
	config     *RunConfig
	runID      string
	logger     *logrus.Entry
	aggregator *metrics.Aggregator
	budget     *IterationBudget
	sinks      []metrics.Sink
	client     *http.Client

	started   atomic.Bool
	startTime atomic.Int64
	activeVUs atomic.Int32
	retries   atomic.Int64
}

// Option configures a Driver.
type Option func(*Driver)

// WithSink registers an observer for every recorded result.
func WithSink(sink metrics.Sink) Option {
	return func(d *Driver) { d.sinks = append(d.sinks, sink) }
}

// WithLogger sets the logger used by the driver and its VUs.
func WithLogger(logger *logrus.Entry) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithHTTPClient makes every VU use client instead of building one from
// RunConfig.HTTP.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Driver) { d.client = client }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

// NewDriver validates cfg and prepares a run.
func NewDriver(cfg *RunConfig, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Driver{
		config: cfg,
		runID:  uuid.NewString(),
		logger: logging.For("driver"),
		budget: NewIterationBudget(cfg.Iterations),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithField("run_id", d.runID)
	if d.client == nil && !cfg.HTTP.PerVU {
		d.client = NewHTTPClient(cfg.HTTP)
	}

	names := make([]string, len(cfg.Steps))
	for i, s := range cfg.Steps {
		names[i] = s.Name
	}
	d.aggregator = metrics.NewAggregator(metrics.Config{
		RunID: d.runID,
		Name:  cfg.Name,
		Steps: names,
	}, d.sinks...)

	return d, nil
}

// RunID returns the identifier of this run.
func (d *Driver) RunID() string { return d.runID }

// Run executes the scenario and returns the finalized summary.
//
// Network errors and failed checks are recorded, not returned. An error is
// returned only for misuse, such as calling Run twice.
func (d *Driver) Run(ctx context.Context) (*metrics.Summary, error) {
	if !d.started.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}

	runCtx := ctx
	if d.config.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.config.Duration)
		defer cancel()
	}
	stop := runCtx.Done()

	// Requests outlive the stop signal until the graceful stop period ends.
	reqCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	d.logger.WithFields(logrus.Fields{
		"vus":            d.config.VUs,
		"iterations":     d.config.Iterations,
		"duration":       d.config.Duration,
		"steps":          len(d.config.Steps),
		"network_errors": d.networkPolicy(),
	}).Info("starting run")

	d.aggregator.Start()
	d.startTime.Store(time.Now().UnixNano())

	var wg sync.WaitGroup
	for i := 0; i < d.config.VUs; i++ {
		vu := &virtualUser{
			id:     i + 1,
			driver: d,
			client: d.clientFor(),
			logger: d.logger.WithField("vu", i+1),
		}
		wg.Add(1)
		d.activeVUs.Add(1)
		go func() {
			defer wg.Done()
			defer d.activeVUs.Add(-1)
			vu.run(reqCtx, stop)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-stop:
		d.logger.WithField("active_vus", d.activeVUs.Load()).Info("stop signal received, waiting for in-flight requests")
		d.awaitGraceful(done, cancelRequests)
	}

	summary, err := d.aggregator.Finalize()
	if err != nil {
		return nil, err
	}
	summary.VUs = d.config.VUs
	summary.Iterations = d.budget.Completed()
	summary.Interrupted = ctx.Err() != nil
	summary.Evaluate(d.config.Thresholds)

	d.logger.WithFields(logrus.Fields{
		"iterations": summary.Iterations,
		"requests":   summary.TotalRequests,
		"failed":     summary.FailCount,
		"retries":    d.retries.Load(),
		"elapsed":    summary.Duration.Round(time.Millisecond),
	}).Info("run finished")

	return summary, nil
}

// awaitGraceful waits for the VUs after a stop signal, cancelling in-flight
// requests once the graceful stop period is over.
func (d *Driver) awaitGraceful(done <-chan struct{}, cancelRequests context.CancelFunc) {
	if d.config.GracefulStop <= 0 {
		<-done
		return
	}

	timer := time.NewTimer(d.config.GracefulStop)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		d.logger.WithField("graceful_stop", d.config.GracefulStop).Warn("graceful stop expired, cancelling in-flight requests")
		cancelRequests()
		<-done
	}
}

// clientFor returns the shared client, or a fresh one in per-VU mode.
func (d *Driver) clientFor() *http.Client {
	if d.client != nil {
		return d.client
	}
	return NewHTTPClient(d.config.HTTP)
}

func (d *Driver) networkPolicy() NetworkErrorPolicy {
	if d.config.NetworkErrors == "" {
		return ConsumeOnNetworkError
	}
	return d.config.NetworkErrors
}

func (d *Driver) record(result metrics.RequestResult) {
	if err := d.aggregator.Record(result); err != nil {
		d.logger.WithError(err).Warn("dropping result")
	}
}

// Progress is a point-in-time view of a running Driver.
type Progress struct {
	ActiveVUs           int
	IterationsCompleted int64
	IterationsTotal     int64
	Retries             int64
	Requests            int64
	Failed              int64
	Elapsed             time.Duration
}

// Percent returns completion in [0, 100] for iteration-bound runs, or
// elapsed time over duration otherwise.
func (p Progress) Percent(duration time.Duration) float64 {
	var pct float64
	switch {
	case p.IterationsTotal > 0:
		pct = float64(p.IterationsCompleted) / float64(p.IterationsTotal) * 100
	case duration > 0:
		pct = float64(p.Elapsed) / float64(duration) * 100
	}
	if pct > 100 {
		pct = 100
	}
	return pct
}

// Progress returns the current progress. It is safe to call concurrently
// with Run.
func (d *Driver) Progress() Progress {
	counters := d.aggregator.Progress()
	p := Progress{
		ActiveVUs:           int(d.activeVUs.Load()),
		IterationsCompleted: d.budget.Completed(),
		IterationsTotal:     d.budget.Total(),
		Retries:             d.retries.Load(),
		Requests:            counters.TotalRequests,
		Failed:              counters.FailCount,
	}
	if start := d.startTime.Load(); start > 0 {
		p.Elapsed = time.Since(time.Unix(0, start))
	}
	return p
}

// Config returns the run configuration.
func (d *Driver) Config() *RunConfig { return d.config }

// Run builds a Driver for cfg and runs it.
func Run(ctx context.Context, cfg *RunConfig, opts ...Option) (*metrics.Summary, error) {
	d, err := NewDriver(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return d.Run(ctx)
}
