// Package telemetry exposes live run metrics in Prometheus format.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/wesleyorama2/runner/internal/logging"
	"github.com/wesleyorama2/runner/internal/performance/metrics"
)

const namespace = "runner"

// Exporter is a metrics.Sink that mirrors every result into Prometheus
// collectors on a private registry.
type Exporter struct {
	registry *prometheus.Registry
	labels   prometheus.Labels
	logger   *logrus.Entry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	statusCodes *prometheus.CounterVec
	bytes       prometheus.Counter
}

// NewExporter creates an exporter whose collectors carry a run_id constant
// label.
func NewExporter(runID string) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	labels := prometheus.Labels{"run_id": runID}
	factory := promauto.With(reg)

	return &Exporter{
		registry: reg,
		labels:   labels,
		logger:   logging.For("telemetry"),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "requests_total",
			Help:        "Requests executed, by scenario step and outcome",
			ConstLabels: labels,
		}, []string{"step", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "request_duration_seconds",
			Help:        "Request latency by scenario step",
			ConstLabels: labels,
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"step"}),
		statusCodes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "responses_total",
			Help:        "Responses received, by HTTP status code",
			ConstLabels: labels,
		}, []string{"code"}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "received_bytes_total",
			Help:        "Response body bytes received",
			ConstLabels: labels,
		}),
	}
}

// Observe implements metrics.Sink.
func (e *Exporter) Observe(r metrics.RequestResult) {
	e.requests.WithLabelValues(r.StepName, r.Outcome().String()).Inc()
	e.duration.WithLabelValues(r.StepName).Observe(r.Latency.Seconds())
	if r.StatusCode > 0 {
		e.statusCodes.WithLabelValues(strconv.Itoa(r.StatusCode)).Inc()
	}
	e.bytes.Add(float64(r.BytesReceived))
}

// TrackGauge registers a gauge sampled from fn at scrape time, e.g. the
// number of active VUs.
func (e *Exporter) TrackGauge(name, help string, fn func() float64) {
	promauto.With(e.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        name,
		Help:        help,
		ConstLabels: e.labels,
	}, fn)
}

// Registry returns the registry backing the exporter.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler serves the exporter's metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled. It returns once the
// listener is bound; serve errors are logged.
func (e *Exporter) Serve(ctx context.Context, addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		e.logger.WithField("addr", ln.Addr().String()).Info("serving metrics")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.WithError(err).Error("metrics server stopped")
		}
	}()

	return ln.Addr(), nil
}
