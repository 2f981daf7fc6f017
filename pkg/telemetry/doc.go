// Package telemetry provides observability for provisioning runs.
//
// The package combines structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and an in-process event publisher.
// A Telemetry value plugs into the orchestrator in three places:
//
//   - as its StatusPublisher, counting state transitions and forwarding them
//     to event subscribers
//   - as its OperationObserver, wrapping every provisioner call in a span and
//     recording call counts and durations
//   - as a RunRecorder, opening and closing the run span and run metrics
//
// The CLI client reports every invocation through RecordCLIInvocation.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	orch := engine.NewOrchestrator(provisioner, engine.OrchestratorOptions{
//	    Publisher: tel,
//	    Observer:  tel,
//	    Recorder:  engine.MultiRecorder{store, tel},
//	})
//
// # Metrics
//
// Metrics are registered on a private registry and served on
// MetricsConfig.ListenAddress when one is set:
//
//   - catalyst_cli_invocations_total{command, exit_code}
//   - catalyst_cli_invocation_duration_seconds{command}
//   - catalyst_operations_total{operation, status}
//   - catalyst_operation_duration_seconds{operation}
//   - catalyst_runs_started_total, catalyst_runs_completed_total{state}
//   - catalyst_run_duration_seconds{state}, catalyst_active_runs
//   - catalyst_state_transitions_total{state}
//   - catalyst_futures_resolved_total{kind}
//   - catalyst_errors_total{class, code}
//
// # Events
//
// EventPublisher delivers events to subscribers in publish order, either
// synchronously or from a single background goroutine when async delivery is
// enabled. Shutdown drains buffered events before returning.
package telemetry
