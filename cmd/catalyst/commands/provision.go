package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/config"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/policy"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// provisionOutput is the JSON form of a finished provision run.
type provisionOutput struct {
	RunID       string                       `json:"run_id"`
	Project     string                       `json:"project"`
	State       engine.ProvisioningState     `json:"state"`
	Duration    string                       `json:"duration"`
	Error       string                       `json:"error,omitempty"`
	Environment map[string]map[string]string `json:"environment,omitempty"`
}

func newProvisionCommand() *cobra.Command {
	var (
		skipPolicy bool
		events     bool
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision the topology in Diagrid Catalyst",
		Long: `Provision every resource declared in the topology.

This command:
  - Loads and validates the topology
  - Checks it against the built-in and configured policies
  - Creates the project, app identities, pub/subs, KV stores and components,
    leaving resources that already exist alone
  - Records the run in the history database
  - Prints the Dapr environment of every app`,
		Example: `  # Provision catalyst.cue in the current directory
  catalyst provision

  # Provision a YAML topology and print the result as JSON
  catalyst provision -t topology.yaml --json

  # Stream status and resource events as JSON lines on stderr
  catalyst provision --events 2> events.jsonl`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			_, graph, err := loadGraph(ctx)
			if err != nil {
				return err
			}

			tel, err := newTelemetry(settings)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			if events {
				tel.Events.Subscribe(telemetry.JSONLinesSubscriber(cmd.ErrOrStderr()), nil)
			}

			if settings.Policy.Enabled && !skipPolicy {
				if err := checkPolicies(ctx, cmd, settings, tel, graph.Snapshot()); err != nil {
					return err
				}
			}

			orch, cleanup, err := prepareRun(ctx, settings, tel)
			if err != nil {
				return err
			}
			defer cleanup()

			log.Info().
				Str("project", graph.ProjectName()).
				Str("topology", topologyPath).
				Msg("Provisioning topology")

			result, err := orch.Provision(ctx, graph)
			if err != nil {
				return err
			}

			out := provisionOutput{
				RunID:    result.RunID,
				Project:  result.Project,
				State:    result.State,
				Duration: result.Duration().Round(time.Millisecond).String(),
			}
			if !result.Succeeded() {
				out.Error = errorText(result.Err)
				if jsonOutput {
					if err := printJSON(cmd.OutOrStdout(), out); err != nil {
						log.Warn().Err(err).Msg("Failed to print run result")
					}
				}
				return fmt.Errorf("provisioning %s failed: %w", result.Project, result.Err)
			}

			out.Environment = make(map[string]map[string]string)
			for _, app := range graph.AppNames() {
				env, err := engine.Environment(ctx, graph, app)
				if err != nil {
					return err
				}
				out.Environment[app] = env
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "\n✅ Project %s provisioned in %s (run %s)\n", out.Project, out.Duration, out.RunID)
			for _, app := range graph.AppNames() {
				fmt.Fprintf(w, "\n# %s\n%s", app, engine.FormatEnvironment(out.Environment[app]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPolicy, "skip-policy", false, "skip policy checks")
	cmd.Flags().BoolVar(&events, "events", false, "stream provisioning events as JSON lines on stderr")

	return cmd
}

// checkPolicies evaluates snap and refuses to continue on blocking violations.
// Warnings are logged.
func checkPolicies(ctx context.Context, cmd *cobra.Command, settings *config.Settings, tel *telemetry.Telemetry, snap *engine.GraphSnapshot) error {
	eng, err := newPolicyEngine(ctx, settings, tel)
	if err != nil {
		return err
	}
	defer eng.Close()

	result, err := eng.Check(ctx, snap)
	if result != nil {
		for _, w := range result.Warnings {
			log.Warn().
				Str("policy", w.Policy).
				Str("resource", w.Resource).
				Msg(w.Message)
		}
		if err != nil && !jsonOutput {
			printViolations(cmd.ErrOrStderr(), result.Violations)
		}
	}
	return err
}

// prepareRun opens run history and builds the orchestrator. cleanup closes the store.
func prepareRun(ctx context.Context, settings *config.Settings, tel *telemetry.Telemetry) (*engine.Orchestrator, func(), error) {
	store, err := openStore(ctx, settings)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if store != nil {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close history database")
			}
		}
	}

	provisioner, err := newProvisioner(settings, tel)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return newOrchestrator(provisioner, tel, store), cleanup, nil
}

func printViolations(w io.Writer, violations []policy.PolicyViolation) {
	rows := make([][]string, len(violations))
	for i, v := range violations {
		rows[i] = []string{v.Policy, string(v.Severity), v.Resource, v.Message}
	}
	printTable(w, []string{"Policy", "Severity", "Resource", "Message"}, rows)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
