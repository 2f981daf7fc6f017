package telemetry

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for provisioning runs.
type Metrics struct {
	config MetricsConfig

	// CLI metrics
	cliInvocations *prometheus.CounterVec
	cliDuration    *prometheus.HistogramVec

	// Provisioning operation metrics
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// Run metrics
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	// State machine metrics
	transitions     *prometheus.CounterVec
	futuresResolved *prometheus.CounterVec

	// Error metrics
	errorsByCode *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		cliInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cli_invocations_total",
				Help:      "Total number of provisioning CLI invocations",
			},
			[]string{"command", "exit_code"},
		),
		cliDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cli_invocation_duration_seconds",
				Help:      "Duration of provisioning CLI invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"command"},
		),

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of provisioner operations",
			},
			[]string{"operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of provisioner operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),

		runsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of orchestration runs started",
			},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of orchestration runs completed",
			},
			[]string{"state"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of orchestration runs in seconds",
				Buckets:   buckets,
			},
			[]string{"state"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Current number of active orchestration runs",
			},
		),

		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Total number of published provisioning states",
			},
			[]string{"state"},
		),
		futuresResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "futures_resolved_total",
				Help:      "Total number of resolved endpoint and credential values",
			},
			[]string{"kind"},
		),

		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of provisioning errors by class and code",
			},
			[]string{"class", "code"},
		),
	}

	registry.MustRegister(
		m.cliInvocations,
		m.cliDuration,
		m.operations,
		m.operationDuration,
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.activeRuns,
		m.transitions,
		m.futuresResolved,
		m.errorsByCode,
	)

	return m, nil
}

// RecordCLIInvocation records one CLI invocation.
func (m *Metrics) RecordCLIInvocation(command string, exitCode int, duration time.Duration) {
	if m.cliInvocations == nil {
		return
	}
	m.cliInvocations.WithLabelValues(command, strconv.Itoa(exitCode)).Inc()
	m.cliDuration.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordOperation records a provisioner operation and its outcome.
func (m *Metrics) RecordOperation(operation string, err error, duration time.Duration) {
	if m.operations == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted() {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its terminal state and duration.
func (m *Metrics) RecordRunCompleted(state string, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(state).Inc()
	m.runDuration.WithLabelValues(state).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// RecordTransition records one published state.
func (m *Metrics) RecordTransition(state string) {
	if m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// RecordFutureResolved records a resolved endpoint or credential.
func (m *Metrics) RecordFutureResolved(kind string) {
	if m.futuresResolved == nil {
		return
	}
	m.futuresResolved.WithLabelValues(kind).Inc()
}

// RecordError records an error by class and code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByCode == nil {
		return
	}
	m.errorsByCode.WithLabelValues(errorClass, errorCode).Inc()
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing metrics. It returns nil when
// metrics are disabled or no listen address is configured.
func (m *Metrics) StartMetricsServer() *http.Server {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("address", m.config.ListenAddress).Msg("metrics server error")
		}
	}()

	return server
}

// StopMetricsServer shuts down a server returned by StartMetricsServer.
func StopMetricsServer(ctx context.Context, server *http.Server) error {
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
