package telemetry_test

import (
	"context"
	"fmt"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/telemetry"
)

// Example_statusEvents shows status updates flowing to a subscriber.
func Example_statusEvents() {
	cfg := telemetry.DefaultConfig()
	cfg.Events.EnableAsync = false

	events, err := telemetry.NewEventPublisher(cfg.Events)
	if err != nil {
		panic(err)
	}
	defer events.Shutdown(context.Background())

	events.Subscribe(func(e telemetry.Event) {
		fmt.Printf("%s: %s\n", e.State, e.Message)
	}, telemetry.FilterByType(telemetry.EventTypeStatusChanged))

	for _, state := range []engine.ProvisioningState{engine.StateStarting, engine.StateEnsuringProject} {
		_ = events.PublishStatus(context.Background(), engine.StatusUpdate{
			RunID:   "run-1",
			Project: "demo",
			State:   state,
			Style:   state.Style(),
			Message: state.DisplayName(),
		})
	}

	// Output:
	// starting: Starting
	// ensuring_project: Ensuring project
}

// Example_logger shows a component logger with run fields.
func Example_logger() {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Output = "stderr"

	logger, err := telemetry.NewLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}

	logger.NewComponentLogger("orchestrator").
		WithRunID("run-1").
		WithProject("demo").
		Info("Provisioning started")
}
