package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath   string
	topologyPath string
	verbose      bool
	jsonOutput   bool

	// buildVersion is reported as the telemetry service version.
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version

	rootCmd := &cobra.Command{
		Use:   "catalyst",
		Short: "Catalyst - provision Diagrid Catalyst resources for your apps",
		Long: `Catalyst provisions a Diagrid Catalyst project and everything your apps need
from it, then hands each app the Dapr environment to connect with.

Features:
  - Topology declared in CUE or YAML
  - Idempotent provisioning through the diagrid CLI
  - Policy checks (OPA/rego) before anything is created
  - Run history in a local SQLite database
  - Prometheus metrics and OpenTelemetry traces`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path (default: ./catalyst.yaml if present)")
	rootCmd.PersistentFlags().StringVarP(&topologyPath, "topology", "t", defaultTopologyPath, "topology file or CUE package directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newProvisionCommand())
	rootCmd.AddCommand(newEnvCommand())
	rootCmd.AddCommand(newProxyCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newVersionCommand(version, commit, buildDate))

	return rootCmd
}
