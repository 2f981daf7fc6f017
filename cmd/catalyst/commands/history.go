package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/stores"
	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		project string
		status  string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past provisioning runs",
		Long: `List provisioning runs recorded in the history database, newest first.

Use "catalyst history show <run-id>" for the states and resources of one run.`,
		Example: `  # List the last runs
  catalyst history

  # List failed runs of one project
  catalyst history --project demo --status failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := stores.RunFilter{
				Project: project,
				Status:  engine.RunStatus(status),
				Limit:   limit,
			}
			if status != "" {
				if err := filter.Status.Validate(); err != nil {
					return err
				}
			}

			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(ctx, filter)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}

			rows := make([][]string, len(runs))
			for i, run := range runs {
				rows[i] = []string{
					run.ID,
					run.Project,
					string(run.Status),
					run.State.DisplayName(),
					run.StartedAt.Local().Format(time.DateTime),
					formatDuration(run.Duration()),
				}
			}
			printTable(cmd.OutOrStdout(), []string{"Run", "Project", "Status", "State", "Started", "Duration"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "only runs of this project")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (running, succeeded, failed)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")

	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryDeleteCommand())

	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the states and resources of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			transitions, err := store.ListTransitions(ctx, run.ID)
			if err != nil {
				return err
			}
			resources, err := store.ListResources(ctx, run.ID)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"run":         run,
					"transitions": transitions,
					"resources":   resources,
				})
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Run %s of %s: %s (%s)\n", run.ID, run.Project, run.Status, formatDuration(run.Duration()))
			if run.Error != nil {
				fmt.Fprintf(w, "Error: %s\n", *run.Error)
			}

			fmt.Fprintln(w)
			rows := make([][]string, len(transitions))
			for i, t := range transitions {
				rows[i] = []string{
					t.Timestamp.Local().Format(time.TimeOnly),
					t.State.DisplayName(),
					string(t.Style),
					t.Message,
				}
			}
			printTable(w, []string{"Time", "State", "Style", "Message"}, rows)

			if len(resources) > 0 {
				fmt.Fprintln(w)
				rows = make([][]string, len(resources))
				for i, r := range resources {
					rows[i] = []string{string(r.Kind), r.Name, r.Project, string(r.Outcome)}
				}
				printTable(w, []string{"Kind", "Name", "Project", "Outcome"}, rows)
			}
			return nil
		},
	}
}

func newHistoryDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete runs from the history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			for _, id := range args {
				if err := store.DeleteRun(cmd.Context(), id); err != nil {
					return fmt.Errorf("failed to delete run %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted run %s\n", id)
			}
			return nil
		},
	}
}

// openHistory opens the configured history database or fails when history is disabled.
func openHistory(cmd *cobra.Command) (*stores.SQLiteStore, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}

	store, err := openStore(cmd.Context(), settings)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("run history is disabled (database.path is empty)")
	}
	return store, nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return d.Round(100 * time.Millisecond).String()
}
