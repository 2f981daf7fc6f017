package telemetry

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry combines logging, tracing, metrics and events for an orchestration run.
// It plugs into the orchestrator as its StatusPublisher, OperationObserver and one of
// its RunRecorders.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config

	mu       sync.Mutex
	runSpans map[string]trace.Span
	server   *http.Server
}

var (
	_ engine.StatusPublisher   = (*Telemetry)(nil)
	_ engine.OperationObserver = (*Telemetry)(nil)
	_ engine.RunRecorder       = (*Telemetry)(nil)
)

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	return newTelemetry(cfg, logger)
}

// NewTelemetryWithLogger creates a telemetry instance around an existing logger.
func NewTelemetryWithLogger(cfg *Config, logger *Logger) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newTelemetry(cfg, logger)
}

func newTelemetry(cfg *Config, logger *Logger) (*Telemetry, error) {
	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:   logger,
		Tracer:   tracer,
		Metrics:  metrics,
		Events:   events,
		Config:   cfg,
		runSpans: make(map[string]trace.Span),
	}, nil
}

// StartMetricsServer starts the metrics HTTP server if one is configured.
func (t *Telemetry) StartMetricsServer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.server == nil {
		t.server = t.Metrics.StartMetricsServer()
	}
}

// Shutdown stops the metrics server, drains events and flushes spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	server := t.server
	t.server = nil
	for id, span := range t.runSpans {
		span.End()
		delete(t.runSpans, id)
	}
	t.mu.Unlock()

	return errors.Join(
		StopMetricsServer(ctx, server),
		t.Events.Shutdown(ctx),
		t.Tracer.Shutdown(ctx),
	)
}

// RecordCLIInvocation implements the CLI client's invocation recorder.
func (t *Telemetry) RecordCLIInvocation(command string, exitCode int, duration time.Duration) {
	t.Metrics.RecordCLIInvocation(command, exitCode, duration)
}

// ObserveOperation wraps one provisioner call in a span and records its metrics.
func (t *Telemetry) ObserveOperation(ctx context.Context, operation, resource string, fn func(ctx context.Context) error) error {
	if span := t.runSpan(ctx); span != nil {
		ctx = trace.ContextWithSpan(ctx, span)
	}
	ctx, span := t.Tracer.StartOperationSpan(ctx, operation, resource)
	defer span.End()

	timer := NewTimer()
	err := fn(ctx)
	t.Metrics.RecordOperation(operation, err, timer.Duration())

	if err != nil {
		RecordError(span, err)
		code := engine.GetErrorCode(err)
		if code != "" {
			span.SetAttributes(AttrErrorCode.String(code))
		}
		t.Metrics.RecordError(errorClass(err), code)
		return err
	}

	RecordSuccess(span)
	switch operation {
	case "get-project":
		t.Metrics.RecordFutureResolved("http_endpoint")
		t.Metrics.RecordFutureResolved("grpc_endpoint")
	case "get-app":
		t.Metrics.RecordFutureResolved("app_details")
	}
	return nil
}

// PublishStatus records the transition and forwards it to event subscribers.
func (t *Telemetry) PublishStatus(ctx context.Context, update engine.StatusUpdate) error {
	t.Metrics.RecordTransition(string(update.State))

	t.mu.Lock()
	span := t.runSpans[update.RunID]
	t.mu.Unlock()
	if span != nil {
		AddStateEvent(span, string(update.State), update.Message)
	}

	return t.Events.PublishStatus(ctx, update)
}

// BeginRun starts the run span and counts the run.
func (t *Telemetry) BeginRun(ctx context.Context, runID string, snapshot *engine.GraphSnapshot) error {
	_, span := t.Tracer.StartRunSpan(ctx, runID, snapshot.Project.Name)

	t.mu.Lock()
	t.runSpans[runID] = span
	t.mu.Unlock()

	t.Metrics.RecordRunStarted()
	return nil
}

// RecordTransition is a no-op; transitions are recorded by PublishStatus.
func (t *Telemetry) RecordTransition(context.Context, engine.StatusUpdate) error {
	return nil
}

// RecordResource publishes a realized resource event.
func (t *Telemetry) RecordResource(_ context.Context, record engine.ResourceRecord) error {
	return t.Events.PublishResource(record)
}

// FinishRun ends the run span and records the run duration.
func (t *Telemetry) FinishRun(_ context.Context, result *engine.RunResult) error {
	t.mu.Lock()
	span := t.runSpans[result.RunID]
	delete(t.runSpans, result.RunID)
	t.mu.Unlock()

	if span != nil {
		if result.Err != nil {
			RecordError(span, result.Err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	t.Metrics.RecordRunCompleted(string(result.State), result.Duration())
	return nil
}

func (t *Telemetry) runSpan(ctx context.Context) trace.Span {
	if trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// Only an unambiguous run span is used as the parent.
	if len(t.runSpans) != 1 {
		return nil
	}
	for _, span := range t.runSpans {
		return span
	}
	return nil
}

func errorClass(err error) string {
	switch {
	case engine.IsTransient(err):
		return string(engine.ErrorClassTransient)
	case engine.IsPermanent(err):
		return string(engine.ErrorClassPermanent)
	default:
		return "unknown"
	}
}
