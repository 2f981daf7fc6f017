package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/config"
	"github.com/diagrid-labs/catalyst-provisioner/pkg/transports/cli"
)

// mockStreamer records dev proxy invocations. The app named in fail exits with an
// error; every other proxy runs until its context ends.
type mockStreamer struct {
	mu    sync.Mutex
	calls [][]string
	fail  string
}

func (m *mockStreamer) Stream(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	m.mu.Lock()
	m.calls = append(m.calls, args)
	m.mu.Unlock()

	app := args[len(args)-3]
	io.WriteString(stdout, "proxy ready for "+app+"\npartial")
	if app == m.fail {
		return errors.New("tunnel closed")
	}
	<-ctx.Done()
	return nil
}

func TestProxyTargets(t *testing.T) {
	topology := &config.Topology{
		Project: config.ProjectConfig{Name: "demo"},
		Apps: []config.AppConfig{
			{Name: "worker", Port: 5001},
			{Name: "batch"},
			{Name: "api", Port: 5002},
		},
	}

	targets := proxyTargets(topology, nil)
	if len(targets) != 2 || targets[0].AppID != "worker" || targets[1].AppID != "api" {
		t.Fatalf("expected apps with a port in declaration order, got %+v", targets)
	}
	if targets[0].Project != "demo" || !targets[0].Approve || targets[0].AppPort != 5001 {
		t.Errorf("unexpected target: %+v", targets[0])
	}

	targets = proxyTargets(topology, []string{"api", "batch"})
	if len(targets) != 1 || targets[0].AppID != "api" {
		t.Errorf("expected only api, got %+v", targets)
	}
}

func TestRunProxiesStopsAllOnFailure(t *testing.T) {
	streamer := &mockStreamer{fail: "api"}
	targets := []cli.DevRunOptions{
		{Project: "demo", AppID: "worker", AppPort: 5001, Approve: true},
		{Project: "demo", AppID: "api", AppPort: 5002, Approve: true},
	}

	var stdout, stderr bytes.Buffer
	err := runProxies(context.Background(), streamer, targets, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "proxy api: tunnel closed") {
		t.Fatalf("expected the api proxy failure, got %v", err)
	}

	if len(streamer.calls) != 2 {
		t.Fatalf("expected 2 proxies, got %d", len(streamer.calls))
	}

	out := stdout.String()
	for _, want := range []string{"[worker] proxy ready for worker\n", "[api] proxy ready for api\n", "[api] partial\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestPrefixWriter(t *testing.T) {
	var mu sync.Mutex
	var buf bytes.Buffer
	w := &prefixWriter{mu: &mu, w: &buf, prefix: "worker"}

	io.WriteString(w, "hel")
	io.WriteString(w, "lo\nwor")
	if buf.String() != "[worker] hello\n" {
		t.Errorf("expected only complete lines, got %q", buf.String())
	}

	w.Flush()
	if buf.String() != "[worker] hello\n[worker] wor\n" {
		t.Errorf("expected the partial line on flush, got %q", buf.String())
	}
}
