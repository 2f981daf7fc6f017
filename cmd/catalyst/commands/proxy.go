package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/config"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/transports/cli"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newProxyCommand() *cobra.Command {
	var apps []string

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run the local dev proxy for every app",
		Long: `Run "diagrid dev run" for every app in the topology that declares a port, so
that Catalyst can reach apps running on this machine.

The proxies run until interrupted. When one of them exits with an error the
others are stopped too.`,
		Example: `  # Proxy every app with a port
  catalyst proxy

  # Proxy a single app
  catalyst proxy --app worker`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings, err := loadSettings()
			if err != nil {
				return err
			}

			topology, _, err := loadGraph(ctx)
			if err != nil {
				return err
			}

			targets := proxyTargets(topology, apps)
			if len(targets) == 0 {
				return fmt.Errorf("no apps with a port to proxy")
			}

			runner, err := cli.NewProcessRunner(cliConfig(settings))
			if err != nil {
				return err
			}

			return runProxies(ctx, runner, targets, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringSliceVar(&apps, "app", nil, "only proxy these apps")

	return cmd
}

// proxyTargets returns the dev run options of every app with a port, optionally
// restricted to only.
func proxyTargets(topology *config.Topology, only []string) []cli.DevRunOptions {
	var targets []cli.DevRunOptions
	for _, app := range topology.Apps {
		if app.Port == 0 {
			continue
		}
		if len(only) > 0 && !slices.Contains(only, app.Name) {
			continue
		}
		targets = append(targets, cli.DevRunOptions{
			Project: topology.Project.Name,
			AppID:   app.Name,
			AppPort: app.Port,
			Approve: true,
		})
	}
	return targets
}

// runProxies streams one dev proxy per target and stops all of them when any fails.
// The first failure is returned.
func runProxies(ctx context.Context, streamer cli.Streamer, targets []cli.DevRunOptions, stdout, stderr io.Writer) error {
	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)

	for _, target := range targets {
		group.Go(func() error {
			log.Info().
				Str("app", target.AppID).
				Int("port", target.AppPort).
				Msg("Starting dev proxy")

			out := &prefixWriter{mu: &mu, w: stdout, prefix: target.AppID}
			errOut := &prefixWriter{mu: &mu, w: stderr, prefix: target.AppID}
			defer errOut.Flush()
			defer out.Flush()

			if err := cli.DevRun(groupCtx, streamer, target, out, errOut); err != nil {
				return fmt.Errorf("proxy %s: %w", target.AppID, err)
			}
			return nil
		})
	}

	return group.Wait()
}

// prefixWriter prefixes every complete line with the app name. Writers sharing mu
// never interleave within a line.
type prefixWriter struct {
	mu     *sync.Mutex
	w      io.Writer
	prefix string
	buf    []byte
}

func (p *prefixWriter) Write(data []byte) (int, error) {
	p.buf = append(p.buf, data...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			return len(data), nil
		}
		if err := p.writeLine(p.buf[:i+1]); err != nil {
			return len(data), err
		}
		p.buf = p.buf[i+1:]
	}
}

// Flush writes a trailing partial line.
func (p *prefixWriter) Flush() {
	if len(p.buf) > 0 {
		_ = p.writeLine(append(p.buf, '\n'))
		p.buf = nil
	}
}

func (p *prefixWriter) writeLine(line []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "[%s] %s", p.prefix, line)
	return err
}
