package commands

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/policy"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// validateOutput is the JSON form of a validation.
type validateOutput struct {
	Project    string                   `json:"project"`
	Resources  int                      `json:"resources"`
	Allowed    bool                     `json:"allowed"`
	Violations []policy.PolicyViolation `json:"violations,omitempty"`
	Warnings   []policy.PolicyViolation `json:"warnings,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		watch        bool
		interval     time.Duration
		enable       []string
		disable      []string
		listPolicies bool
		showPolicy   string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the topology without provisioning it",
		Long: `Validate the topology against its schema and policies.

This command checks:
  - CUE or YAML syntax validity
  - Schema conformance (names, ports, protocols, required fields)
  - Duplicate resource names
  - Policy compliance (OPA/rego), including configured policy files

With --watch the command keeps running and reports again whenever the
policy files change. --enable and --disable switch individual policies for
this run; policy.disabled in the settings does the same permanently.`,
		Example: `  # Validate catalyst.cue in the current directory
  catalyst validate

  # Validate a YAML topology
  catalyst validate -t topology.yaml

  # Re-validate while editing policies
  catalyst validate --watch

  # Show the available policies, or one policy with its Rego source
  catalyst validate --list-policies
  catalyst validate --show-policy scope-references

  # Validate without the naming policy
  catalyst validate --disable resource-naming`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			if listPolicies || showPolicy != "" {
				eng, err := newPolicyEngine(ctx, settings, nil)
				if err != nil {
					return err
				}
				defer eng.Close()

				if showPolicy != "" {
					return printPolicy(cmd.OutOrStdout(), eng, showPolicy)
				}
				return printPolicies(cmd.OutOrStdout(), eng.ListPolicies())
			}

			_, graph, err := loadGraph(ctx)
			if err != nil {
				return err
			}
			snap := graph.Snapshot()

			log.Debug().
				Str("topology", topologyPath).
				Str("project", snap.Project.Name).
				Int("resources", snap.ResourceCount()).
				Msg("Topology loaded")

			if !settings.Policy.Enabled {
				return report(cmd.OutOrStdout(), snap, &policy.PolicyResult{Allowed: true})
			}

			eng, err := newPolicyEngine(ctx, settings, nil)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := togglePolicies(eng, enable, disable); err != nil {
				return err
			}

			result, err := eng.EvaluateGraph(ctx, snap, "validate")
			if err != nil {
				return err
			}
			if !watch && !(settings.Policy.Watch && len(settings.Policy.Paths) > 0) {
				return report(cmd.OutOrStdout(), snap, result)
			}

			_ = report(cmd.OutOrStdout(), snap, result)
			return watchPolicies(ctx, cmd.OutOrStdout(), eng, settings.Policy.Paths, snap, result, interval)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "re-validate when policy files change")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "how often to re-evaluate while watching")
	cmd.Flags().StringSliceVar(&enable, "enable", nil, "enable these policies for this run")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "disable these policies for this run")
	cmd.Flags().BoolVar(&listPolicies, "list-policies", false, "list the available policies and exit")
	cmd.Flags().StringVar(&showPolicy, "show-policy", "", "print one policy with its Rego source and exit")

	return cmd
}

// togglePolicies applies --enable and --disable. Unknown names are errors.
func togglePolicies(eng *policy.Engine, enable, disable []string) error {
	for _, name := range enable {
		if err := eng.EnablePolicy(name); err != nil {
			return engine.NewValidationError(err.Error()).WithCode(engine.ErrCodeNotFound).WithResource(name)
		}
	}
	for _, name := range disable {
		if err := eng.DisablePolicy(name); err != nil {
			return engine.NewValidationError(err.Error()).WithCode(engine.ErrCodeNotFound).WithResource(name)
		}
	}
	return nil
}

func printPolicies(w io.Writer, policies []policy.Policy) error {
	if jsonOutput {
		return printJSON(w, policies)
	}

	rows := make([][]string, len(policies))
	for i, p := range policies {
		source := "file"
		if p.Builtin {
			source = "builtin"
		}
		rows[i] = []string{p.Name, string(p.Severity), strconv.FormatBool(p.Enabled), source, p.Description}
	}
	printTable(w, []string{"Policy", "Severity", "Enabled", "Source", "Description"}, rows)
	return nil
}

func printPolicy(w io.Writer, eng *policy.Engine, name string) error {
	p, err := eng.GetPolicy(name)
	if err != nil {
		return engine.NewValidationError(err.Error()).WithCode(engine.ErrCodeNotFound).WithResource(name)
	}
	if jsonOutput {
		return printJSON(w, p)
	}

	fmt.Fprintf(w, "%s (%s, enabled: %t)\n%s\n\n%s", p.Name, p.Severity, p.Enabled, p.Description, p.Rego)
	return nil
}

// watchPolicies hot-reloads the policy files and reports whenever the outcome changes,
// until ctx ends.
func watchPolicies(ctx context.Context, w io.Writer, eng *policy.Engine, paths []string, snap *engine.GraphSnapshot, last *policy.PolicyResult, interval time.Duration) error {
	if len(paths) == 0 {
		return fmt.Errorf("no policy paths configured to watch")
	}
	if err := eng.Watch(ctx, paths); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result, err := eng.EvaluateGraph(ctx, snap, "validate")
			if err != nil {
				log.Error().Err(err).Msg("Policy evaluation failed")
				continue
			}
			if sameOutcome(last, result) {
				continue
			}
			last = result
			fmt.Fprintf(w, "\n--- %s ---\n", time.Now().Format(time.TimeOnly))
			_ = report(w, snap, result)
		}
	}
}

func sameOutcome(a, b *policy.PolicyResult) bool {
	return reflect.DeepEqual(a.EvaluatedPolicies, b.EvaluatedPolicies) &&
		reflect.DeepEqual(messages(a.All()), messages(b.All()))
}

func messages(violations []policy.PolicyViolation) []string {
	out := make([]string, len(violations))
	for i, v := range violations {
		out[i] = v.Policy + "|" + v.Resource + "|" + v.Message
	}
	return out
}

// report prints the validation result and returns an error when it is not allowed.
func report(w io.Writer, snap *engine.GraphSnapshot, result *policy.PolicyResult) error {
	if jsonOutput {
		if err := printJSON(w, validateOutput{
			Project:    snap.Project.Name,
			Resources:  snap.ResourceCount(),
			Allowed:    result.Allowed,
			Violations: result.Violations,
			Warnings:   result.Warnings,
		}); err != nil {
			return err
		}
	} else {
		if all := result.All(); len(all) > 0 {
			printViolations(w, all)
		}
		if result.Allowed {
			fmt.Fprintf(w, "✓ Topology %s is valid (%d resources, %d warnings)\n",
				snap.Project.Name, snap.ResourceCount(), len(result.Warnings))
		}
	}

	if !result.Allowed {
		return engine.NewValidationError(fmt.Sprintf("topology %s violates %d policies", snap.Project.Name, len(result.Violations))).
			WithCode(engine.ErrCodePolicyDenied).WithResource(snap.Project.Name)
	}
	return nil
}
