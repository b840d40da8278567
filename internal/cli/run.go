package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/runner/internal/logging"
	"github.com/wesleyorama2/runner/internal/performance"
	"github.com/wesleyorama2/runner/internal/performance/config"
	"github.com/wesleyorama2/runner/internal/performance/metrics"
	"github.com/wesleyorama2/runner/internal/performance/output"
	"github.com/wesleyorama2/runner/internal/performance/telemetry"
	"github.com/wesleyorama2/runner/internal/storage"
)

type runOptions struct {
	vus               int
	iterations        int64
	duration          string
	maxFailRate       float64
	out               string
	history           string
	metricsAddr       string
	logLevel          string
	quiet             bool
	noColor           bool
	networkErrors     string
	noConnectionReuse bool
	progressInterval  time.Duration
}

func (o *runOptions) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVar(&o.vus, "vus", 0, "Number of virtual users (overrides the config)")
	f.Int64Var(&o.iterations, "iterations", 0, "Total iterations shared by all VUs (overrides the config)")
	f.StringVar(&o.duration, "duration", "", "Maximum run duration, e.g. 30s or 5m (overrides the config)")
	f.Float64Var(&o.maxFailRate, "max-fail-rate", 0, "Fail the run when the failed request fraction exceeds this value")
	f.StringVarP(&o.out, "out", "o", "", "Write the summary to a file (.json, .yaml or .xml for JUnit)")
	f.StringVar(&o.history, "history", "", "Append the summary to a run history database")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running, e.g. :9090")
	f.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL or info)")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "Disable progress output, print only the verdict")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	f.StringVar(&o.networkErrors, "network-errors", "", "Network error policy: consume or retry (overrides the config)")
	f.BoolVar(&o.noConnectionReuse, "no-connection-reuse", false, "Disable keep-alives so every request opens a new connection")
	f.DurationVar(&o.progressInterval, "progress-interval", time.Second, "Interval between progress lines (0 disables them)")
}

// applyOverrides copies explicitly set flags over the file configuration.
func (o *runOptions) applyOverrides(cmd *cobra.Command, cfg *config.TestConfig) {
	flags := cmd.Flags()
	if flags.Changed("vus") {
		cfg.VUs = o.vus
	}
	if flags.Changed("iterations") {
		cfg.Iterations = o.iterations
	}
	if flags.Changed("duration") {
		cfg.Duration = o.duration
	}
	if flags.Changed("max-fail-rate") {
		if cfg.Thresholds == nil {
			cfg.Thresholds = &config.ThresholdsConfig{}
		}
		rate := o.maxFailRate
		cfg.Thresholds.MaxFailRate = &rate
	}
	if flags.Changed("network-errors") {
		cfg.Options.NetworkErrors = o.networkErrors
	}
	if o.noConnectionReuse {
		cfg.Options.NoConnectionReuse = true
	}
}

// loadRunConfig reads path, applies flag overrides and resolves the result.
// Every failure is a *performance.ConfigError carrying path.
func loadRunConfig(cmd *cobra.Command, path string, o *runOptions) (*performance.RunConfig, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, &performance.ConfigError{Path: path, Err: err}
	}
	if o != nil {
		o.applyOverrides(cmd, cfg)
	}

	rc, err := performance.FromConfig(cfg, nil)
	if err != nil {
		var ce *performance.ConfigError
		if errors.As(err, &ce) && ce.Path == "" {
			ce.Path = path
		}
		return nil, err
	}
	return rc, nil
}

func runLoad(cmd *cobra.Command, path string, o *runOptions) error {
	if err := logging.Configure(o.logLevel, cmd.ErrOrStderr()); err != nil {
		return &usageError{err}
	}
	logger := logging.For("cli")

	rc, err := loadRunConfig(cmd, path, o)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	driverOpts := []performance.Option{performance.WithRunID(runID)}

	var exporter *telemetry.Exporter
	if o.metricsAddr != "" {
		exporter = telemetry.NewExporter(runID)
		driverOpts = append(driverOpts, performance.WithSink(exporter))
	}

	driver, err := performance.NewDriver(rc, driverOpts...)
	if err != nil {
		return err
	}

	if exporter != nil {
		exporter.TrackGauge("active_vus", "Virtual users currently running", func() float64 {
			return float64(driver.Progress().ActiveVUs)
		})
		exporter.TrackGauge("iterations_completed", "Scenario iterations completed", func() float64 {
			return float64(driver.Progress().IterationsCompleted)
		})

		// The endpoint stays up until the report is written so a final
		// scrape sees complete counters.
		metricsCtx, cancelMetrics := context.WithCancel(context.WithoutCancel(ctx))
		defer cancelMetrics()
		addr, err := exporter.Serve(metricsCtx, o.metricsAddr)
		if err != nil {
			return fmt.Errorf("failed to serve metrics on %s: %w", o.metricsAddr, err)
		}
		logger.WithField("addr", addr.String()).Debug("metrics endpoint ready")
	}

	console := output.NewConsole(output.ConsoleConfig{
		Writer:  cmd.OutOrStdout(),
		NoColor: o.noColor,
		Quiet:   o.quiet,
	})
	console.PrintHeader(output.RunInfo{
		Name:       rc.Name,
		VUs:        rc.VUs,
		Iterations: rc.Iterations,
		Duration:   rc.Duration,
		Steps:      len(rc.Steps),
	})

	summary, err := runWithProgress(ctx, driver, console, o.progressInterval)
	if err != nil {
		return err
	}

	console.PrintSummary(summary)

	if o.out != "" {
		if err := output.WriteFile(o.out, summary); err != nil {
			return err
		}
		logger.WithField("path", o.out).Info("summary written")
	}

	if o.history != "" {
		if err := saveHistory(o.history, summary); err != nil {
			return err
		}
		logger.WithFields(logrus.Fields{"path": o.history, "run_id": summary.RunID}).Debug("run stored in history")
	}

	switch {
	case !summary.Passed:
		return errThresholdsFailed
	case summary.Interrupted:
		return errInterrupted
	}
	return nil
}

// runWithProgress runs driver while printing a progress line every interval.
func runWithProgress(ctx context.Context, driver *performance.Driver, console *output.Console, interval time.Duration) (*metrics.Summary, error) {
	type result struct {
		summary *metrics.Summary
		err     error
	}
	done := make(chan result, 1)
	go func() {
		s, err := driver.Run(ctx)
		done <- result{s, err}
	}()

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	duration := driver.Config().Duration
	for {
		select {
		case r := <-done:
			return r.summary, r.err
		case <-tick:
			p := driver.Progress()
			console.PrintProgress(output.ProgressLine{
				Elapsed:    p.Elapsed,
				Percent:    p.Percent(duration),
				ActiveVUs:  p.ActiveVUs,
				Iterations: p.IterationsCompleted,
				Requests:   p.Requests,
				Failed:     p.Failed,
			})
		}
	}
}

func saveHistory(path string, summary *metrics.Summary) error {
	store, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(summary)
}
