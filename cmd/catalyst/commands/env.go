package commands

import (
	"context"
	"fmt"
	"sort"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newEnvCommand() *cobra.Command {
	var export bool

	cmd := &cobra.Command{
		Use:   "env <app>",
		Short: "Print the Dapr environment of one app",
		Long: `Provision the topology and print the Dapr environment of one app as soon as
its endpoints and credentials are known.

The wait is bounded by env_wait_timeout in the settings and ends early if
provisioning fails. The command exits once the whole run has finished.`,
		Example: `  # Print the environment of the worker app
  catalyst env worker

  # Load it into the current shell
  eval "$(catalyst env worker --export)"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app := args[0]

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			_, graph, err := loadGraph(ctx)
			if err != nil {
				return err
			}
			if _, ok := graph.AppDetails(app); !ok {
				return engine.NewValidationError(fmt.Sprintf("app %s is not declared in %s", app, topologyPath)).
					WithCode(engine.ErrCodeNotFound).WithResource(app)
			}

			tel, err := newTelemetry(settings)
			if err != nil {
				return err
			}
			defer shutdownTelemetry(tel)

			if settings.Policy.Enabled {
				if err := checkPolicies(ctx, cmd, settings, tel, graph.Snapshot()); err != nil {
					return err
				}
			}

			orch, cleanup, err := prepareRun(ctx, settings, tel)
			if err != nil {
				return err
			}
			defer cleanup()

			if _, err := orch.Start(graph); err != nil {
				return err
			}
			stop := context.AfterFunc(ctx, orch.Cancel)
			defer stop()

			waitCtx := ctx
			if settings.EnvWaitTimeout > 0 {
				var cancel context.CancelFunc
				waitCtx, cancel = context.WithTimeout(ctx, settings.EnvWaitTimeout)
				defer cancel()
			}

			env, err := engine.Environment(waitCtx, graph, app)
			if err != nil {
				orch.Cancel()
				<-orch.Done()
				return err
			}

			if jsonOutput {
				if err := printJSON(cmd.OutOrStdout(), env); err != nil {
					return err
				}
			} else {
				printEnvironment(cmd, env, export)
			}

			<-orch.Done()
			result := orch.Result()
			if !result.Succeeded() {
				return fmt.Errorf("provisioning %s failed: %w", result.Project, result.Err)
			}

			log.Debug().
				Str("run_id", result.RunID).
				Dur("duration", result.Duration()).
				Msg("Provisioning finished")
			return nil
		},
	}

	cmd.Flags().BoolVar(&export, "export", false, "prefix every line with export")

	return cmd
}

func printEnvironment(cmd *cobra.Command, env map[string]string, export bool) {
	if !export {
		fmt.Fprint(cmd.OutOrStdout(), engine.FormatEnvironment(env))
		return
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "export %s=%q\n", k, env[k])
	}
}
