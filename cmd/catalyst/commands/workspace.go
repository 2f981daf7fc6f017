package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/config"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/policy"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/stores"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/telemetry"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/transports/cli"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
)

const (
	defaultSettingsPath = "catalyst.yaml"
	defaultTopologyPath = "catalyst.cue"
)

// loadSettings loads the settings file named by --config, falling back to
// ./catalyst.yaml when it exists and the built-in defaults otherwise.
func loadSettings() (*config.Settings, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultSettingsPath); err == nil {
			path = defaultSettingsPath
		}
	}

	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}

	settings.Telemetry.ServiceVersion = buildVersion
	if verbose {
		settings.Telemetry.Logging.Level = "debug"
	}
	return settings, nil
}

// loadGraph loads the topology named by --topology and builds its resource graph.
func loadGraph(ctx context.Context) (*config.Topology, *engine.ResourceGraph, error) {
	topology, err := config.LoadTopology(ctx, topologyPath)
	if err != nil {
		return nil, nil, err
	}

	graph, err := topology.Graph()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build resource graph: %w", err)
	}
	return topology, graph, nil
}

// newTelemetry creates the telemetry stack, logs events at or above the configured
// level and starts the metrics endpoint if one is configured.
func newTelemetry(settings *config.Settings) (*telemetry.Telemetry, error) {
	tel, err := telemetry.NewTelemetry(settings.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	tel.Events.Subscribe(
		telemetry.LogSubscriber(tel.Logger.NewComponentLogger("events")),
		telemetry.FilterByLevel(settings.Telemetry.Events.MinLevel),
	)
	tel.StartMetricsServer()
	return tel, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Telemetry shutdown failed")
	}
}

// newPolicyEngine creates a policy engine with the configured policy files loaded.
// Violations are published as telemetry events when tel is set.
func newPolicyEngine(ctx context.Context, settings *config.Settings, tel *telemetry.Telemetry) (*policy.Engine, error) {
	logger := log.Logger
	if tel != nil {
		logger = *tel.Logger.Zerolog()
	}

	eng, err := policy.NewEngine(logger)
	if err != nil {
		return nil, err
	}

	if len(settings.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, settings.Policy.Paths); err != nil {
			return nil, err
		}
	}

	for _, name := range settings.Policy.Disabled {
		if err := eng.DisablePolicy(name); err != nil {
			eng.Close()
			return nil, fmt.Errorf("policy.disabled: %w", err)
		}
	}

	if tel != nil {
		eng.OnViolation(func(project string, v policy.PolicyViolation) {
			if err := tel.Events.PublishPolicyViolation(project, v.Resource, v.Policy, string(v.Severity), v.Message); err != nil {
				log.Debug().Err(err).Str("policy", v.Policy).Msg("Failed to publish policy violation")
			}
		})
	}

	return eng, nil
}

// openStore opens the run history database. It returns nil when history is disabled.
func openStore(ctx context.Context, settings *config.Settings) (*stores.SQLiteStore, error) {
	path := settings.Database.Path
	if path == "" {
		return nil, nil
	}

	if path != stores.MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// cliConfig maps the CLI settings onto the process runner configuration.
func cliConfig(settings *config.Settings) *cli.Config {
	cfg := cli.DefaultConfig()
	cfg.Binary = settings.CLI.Binary
	cfg.CommandTimeout = settings.CLI.CommandTimeout
	cfg.AlreadyExistsMarkers = settings.CLI.AlreadyExistsMarkers
	for k, v := range settings.CLI.Env {
		cfg.Env[k] = v
	}
	return cfg
}

// newProvisioner creates the CLI-backed provisioner. Invocations are reported to tel.
func newProvisioner(settings *config.Settings, tel *telemetry.Telemetry) (*cli.Provisioner, error) {
	cfg := cliConfig(settings)

	runner, err := cli.NewProcessRunner(cfg)
	if err != nil {
		return nil, err
	}

	client := cli.NewClient(runner,
		cli.WithAlreadyExistsMarkers(cfg.AlreadyExistsMarkers...),
		cli.WithInvocationRecorder(tel),
		cli.WithLogger(*tel.Logger.Zerolog()),
	)
	return cli.NewProvisioner(client), nil
}

// newOrchestrator wires the provisioner, telemetry and run history into an orchestrator.
func newOrchestrator(provisioner engine.Provisioner, tel *telemetry.Telemetry, store *stores.SQLiteStore) *engine.Orchestrator {
	recorders := engine.MultiRecorder{tel}
	if store != nil {
		recorders = append(recorders, store)
	}

	return engine.NewOrchestrator(provisioner, engine.OrchestratorOptions{
		Publisher: tel,
		Recorder:  recorders,
		Observer:  tel,
		Logger:    tel.Logger.Zerolog(),
		Quiet:     jsonOutput,
	})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}
