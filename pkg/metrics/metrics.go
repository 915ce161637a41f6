// Package metrics exposes build progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dtnitsch/sitemap2skill/models"
	"github.com/dtnitsch/sitemap2skill/pkg/pipeline"
)

const (
	MetricsNamespace = "sitemap2skill"
	MetricsSubsystem = "build"
)

// Metrics holds the collectors for one process.
type Metrics struct {
	FailuresTotal *prometheus.CounterVec
	RunsTotal     *prometheus.CounterVec
	RunDuration   prometheus.Histogram
	ArtifactBytes prometheus.Gauge
	registry      *prometheus.Registry
}

// New registers progress gauges that read progress on every scrape, plus
// per-run counters filled by ObserveRun.
func New(progress *pipeline.Progress) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	gauge := func(name, help string, read func(pipeline.Snapshot) int64) {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Subsystem: MetricsSubsystem,
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(read(progress.Snapshot()))
		})
	}
	gauge("urls_discovered", "URLs discovered from the sitemap tree", func(s pipeline.Snapshot) int64 { return s.Discovered })
	gauge("urls_completed", "URLs fetched and converted", func(s pipeline.Snapshot) int64 { return s.Completed })
	gauge("urls_failed", "URLs that reached a failure outcome, including cancelled ones", func(s pipeline.Snapshot) int64 { return s.Failed })
	gauge("urls_cancelled", "URLs never fetched because the run was cancelled", func(s pipeline.Snapshot) int64 { return s.Cancelled })

	m.FailuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "failures_total",
		Help:      "Per-URL failures by error kind",
	}, []string{"kind"})

	m.RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "runs_total",
		Help:      "Finished runs by outcome",
	}, []string{"outcome"})

	m.RunDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "run_duration_seconds",
		Help:      "Wall time of a run from resolution to packaging",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})

	m.ArtifactBytes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: MetricsSubsystem,
		Name:      "artifact_bytes",
		Help:      "Size of the last written bundle",
	})

	return m
}

// Outcome labels for RunsTotal.
const (
	OutcomeSuccess   = "success"
	OutcomePartial   = "partial"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// ObserveRun records a finished run. runErr is the error Run returned.
func (m *Metrics) ObserveRun(report models.RunReport, artifactBytes int64, runErr error) {
	for _, f := range report.Failed {
		m.FailuresTotal.WithLabelValues(string(f.Kind)).Inc()
	}
	m.RunDuration.Observe(report.Duration.Seconds())
	if artifactBytes > 0 {
		m.ArtifactBytes.Set(float64(artifactBytes))
	}
	m.RunsTotal.WithLabelValues(Outcome(report, runErr)).Inc()
}

// Outcome classifies a finished run.
func Outcome(report models.RunReport, runErr error) string {
	switch {
	case runErr != nil:
		return OutcomeFailed
	case report.Cancelled:
		return OutcomeCancelled
	case len(report.Failed) > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.serve(ctx, ln, logger)
}

func (m *Metrics) serve(ctx context.Context, ln net.Listener, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info("Serving metrics", "addr", ln.Addr().String())
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
