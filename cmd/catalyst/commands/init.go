package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const sampleTopologyCUE = `package catalyst

topology: {
	version: "1.0.0"

	project: {
		name:              %q
		deploy_managed_kv: false
	}

	apps: [
		{name: "worker", port: 5001},
		{name: "api", port: 5002, protocol: "http"},
	]

	pubsubs: [
		{name: "events", scopes: ["worker", "api"]},
	]

	kv_stores: [
		{name: "kvstore"},
	]

	diagrid_pubsubs: [
		{name: "orders", pubsub: "events", scopes: ["api"]},
	]

	diagrid_state_stores: [
		{
			name:                  "statestore"
			state:                 "kvstore"
			scopes:                ["worker"]
			outbox_publish_pubsub: "events"
			outbox_publish_topic:  "orders"
		},
	]
}
`

const sampleTopologyYAML = `version: "1.0.0"
project:
  name: %q
apps:
  - name: worker
    port: 5001
  - name: api
    port: 5002
    protocol: http
pubsubs:
  - name: events
    scopes: [worker, api]
kv_stores:
  - name: kvstore
diagrid_pubsubs:
  - name: orders
    pubsub: events
    scopes: [api]
diagrid_state_stores:
  - name: statestore
    state: kvstore
    scopes: [worker]
    outbox_publish_pubsub: events
    outbox_publish_topic: orders
`

const sampleSettings = `# Catalyst provisioner settings

cli:
  binary: diagrid
  command_timeout: 5m
  already_exists_markers:
    - already exists

database:
  path: .catalyst/history.db

policy:
  enabled: true
  paths: []
  watch: false

env_wait_timeout: 10m

telemetry:
  service_name: catalyst-provisioner
  service_version: dev
  environment: development
  logging:
    level: info
    format: console
    output: stderr
  metrics:
    enabled: true
    listen_address: ""
    path: /metrics
    namespace: catalyst
  tracing:
    enabled: false
    exporter: none
  events:
    enabled: true
    buffer_size: 256
    async: true
    min_level: warning
`

func newInitCommand() *cobra.Command {
	var (
		project string
		useYAML bool
		force   bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a sample topology and settings file",
		Long: `Create a sample topology and a settings file in a directory.

The topology declares a project with two apps, a pub/sub, a KV store, a
Diagrid pub/sub component and a Diagrid state store with an outbox. Existing
files are left alone unless --force is given.`,
		Example: `  # Initialize the current directory
  catalyst init

  # Initialize ./infra with a YAML topology
  catalyst init ./infra --yaml --project shop`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			log.Debug().
				Str("dir", dir).
				Str("project", project).
				Bool("yaml", useYAML).
				Msg("Initializing workspace")

			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}

			topologyFile, topology := "catalyst.cue", sampleTopologyCUE
			if useYAML {
				topologyFile, topology = "topology.yaml", sampleTopologyYAML
			}

			files := []struct {
				name    string
				content string
			}{
				{topologyFile, fmt.Sprintf(topology, project)},
				{defaultSettingsPath, sampleSettings},
			}

			w := cmd.OutOrStdout()
			for _, f := range files {
				path := filepath.Join(dir, f.name)
				if _, err := os.Stat(path); err == nil && !force {
					fmt.Fprintf(w, "✓ %s already exists, leaving it alone\n", path)
					continue
				}
				if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
					return fmt.Errorf("failed to write %s: %w", path, err)
				}
				fmt.Fprintf(w, "✓ Created %s\n", path)
			}

			fmt.Fprintf(w, "\nNext steps:\n")
			fmt.Fprintf(w, "  1. Check the topology:\n")
			fmt.Fprintf(w, "     catalyst validate -t %s\n\n", filepath.Join(dir, topologyFile))
			fmt.Fprintf(w, "  2. Provision it:\n")
			fmt.Fprintf(w, "     catalyst provision -t %s\n\n", filepath.Join(dir, topologyFile))

			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "demo", "project name")
	cmd.Flags().BoolVar(&useYAML, "yaml", false, "write a YAML topology instead of CUE")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing files")

	return cmd
}
