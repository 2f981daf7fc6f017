package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
)

const yamlTopology = `
project:
  name: demo
  deploy_managed_kv: true
apps:
  - name: worker
    port: 5001
  - name: api
    port: 5002
pubsubs:
  - name: events
    scopes: [worker, api]
kv_stores:
  - name: kvstore
components:
  - name: cron
    type: bindings.cron
    metadata:
      schedule: "@every 1m"
diagrid_state_stores:
  - name: statestore
    state: kvstore
    outbox_publish_pubsub: events
    outbox_publish_topic: orders
`

func TestParseYAML(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   bool
		checkFunc func(*testing.T, *Topology)
	}{
		{
			name:    "root level topology",
			content: yamlTopology,
			checkFunc: func(t *testing.T, topo *Topology) {
				if topo.Project.Name != "demo" || !topo.Project.DeployManagedKv {
					t.Errorf("unexpected project: %+v", topo.Project)
				}
				if len(topo.Apps) != 2 || len(topo.PubSubs) != 1 || len(topo.KvStores) != 1 {
					t.Errorf("unexpected topology: %+v", topo)
				}
			},
		},
		{
			name: "nested under topology key",
			content: `
topology:
  project:
    name: nested
  apps:
    - name: worker
`,
			checkFunc: func(t *testing.T, topo *Topology) {
				if topo.Project.Name != "nested" || len(topo.Apps) != 1 {
					t.Errorf("unexpected topology: %+v", topo)
				}
			},
		},
		{
			name: "default project name",
			content: `
apps:
  - name: worker
`,
			checkFunc: func(t *testing.T, topo *Topology) {
				if topo.Project.Name != engine.DefaultProjectName {
					t.Errorf("expected default project name, got %q", topo.Project.Name)
				}
			},
		},
		{
			name:    "compatible version",
			content: "version: 1.2.0\napps:\n  - name: worker\n",
			checkFunc: func(t *testing.T, topo *Topology) {
				if topo.Version != "1.2.0" {
					t.Errorf("expected version 1.2.0, got %q", topo.Version)
				}
			},
		},
		{
			name:    "unsupported version",
			content: "version: 2.0.0\napps:\n  - name: worker\n",
			wantErr: true,
		},
		{
			name:    "malformed version",
			content: "version: latest\n",
			wantErr: true,
		},
		{
			name:    "empty document",
			content: "",
			wantErr: true,
		},
		{
			name:    "unknown field",
			content: "project:\n  name: demo\n  colour: blue\n",
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			content: "project: [unterminated",
			wantErr: true,
		},
		{
			name:    "duplicate kv store",
			content: "kv_stores:\n  - name: kv\n  - name: kv\n",
			wantErr: true,
		},
		{
			name:    "invalid port",
			content: "apps:\n  - name: worker\n    port: -1\n",
			wantErr: true,
		},
		{
			name:    "component without type",
			content: "components:\n  - name: cron\n    metadata:\n      schedule: x\n",
			wantErr: true,
		},
		{
			name: "component name reused by diagrid component",
			content: `
components:
  - name: orders
    type: bindings.cron
    metadata: {schedule: x}
diagrid_pubsubs:
  - name: orders
    pubsub: events
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed := ParseYAML([]byte(tt.content))

			if tt.wantErr {
				if len(parsed.Errors) == 0 {
					t.Fatal("expected validation errors, got none")
				}
				if parsed.Topology != nil {
					t.Error("expected no topology when errors are reported")
				}
				return
			}

			if err := parsed.Err(); err != nil {
				t.Fatalf("unexpected errors: %v", err)
			}
			tt.checkFunc(t, parsed.Topology)
		})
	}
}

func TestTopologyGraph(t *testing.T) {
	parsed := ParseYAML([]byte(yamlTopology))
	if err := parsed.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}

	graph, err := parsed.Topology.Graph()
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}

	if graph.ProjectName() != "demo" {
		t.Errorf("expected project demo, got %s", graph.ProjectName())
	}
	if _, ok := graph.AppDetails("worker"); !ok {
		t.Error("expected a future for app worker")
	}

	snap := graph.Snapshot()
	if !snap.Project.DeployManagedKv {
		t.Error("expected deploy_managed_kv to carry over")
	}
	if len(snap.Apps) != 2 || snap.Apps[0].Name != "worker" || snap.Apps[1].Name != "api" {
		t.Errorf("expected apps in declaration order, got %+v", snap.Apps)
	}
	if len(snap.PubSubs) != 1 || snap.PubSubs[0].Project != "demo" || len(snap.PubSubs[0].Scopes) != 2 {
		t.Errorf("unexpected pubsubs: %+v", snap.PubSubs)
	}
	if len(snap.KvStores) != 1 || snap.KvStores[0].Project != "demo" {
		t.Errorf("unexpected kv stores: %+v", snap.KvStores)
	}

	if len(snap.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(snap.Components))
	}
	if snap.Components[0].Name != "cron" {
		t.Errorf("expected generic components first, got %s", snap.Components[0].Name)
	}

	state := snap.Components[1]
	if state.Type != engine.ComponentTypeDiagridState {
		t.Errorf("expected %s, got %s", engine.ComponentTypeDiagridState, state.Type)
	}
	if state.Metadata["outboxPublishPubsub"] != "events" || state.Metadata["state"] != "kvstore" {
		t.Errorf("unexpected state store metadata: %v", state.Metadata)
	}
	if state.Metadata["keyPrefix"] != nil {
		t.Errorf("expected unset key prefix to be nil, got %v", state.Metadata["keyPrefix"])
	}
}

func TestLoadTopology(t *testing.T) {
	tmpDir := t.TempDir()
	ctx := context.Background()

	yamlPath := filepath.Join(tmpDir, "catalyst.yaml")
	if err := os.WriteFile(yamlPath, []byte(yamlTopology), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	cuePath := filepath.Join(tmpDir, "catalyst.cue")
	if err := os.WriteFile(cuePath, []byte(`topology: project: name: "demo"`+"\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	badPath := filepath.Join(tmpDir, "catalyst.toml")
	if err := os.WriteFile(badPath, []byte(""), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	topo, err := LoadTopology(ctx, yamlPath)
	if err != nil {
		t.Fatalf("failed to load YAML topology: %v", err)
	}
	if len(topo.Apps) != 2 {
		t.Errorf("expected 2 apps, got %d", len(topo.Apps))
	}

	topo, err = LoadTopology(ctx, cuePath)
	if err != nil {
		t.Fatalf("failed to load CUE topology: %v", err)
	}
	if topo.Project.Name != "demo" {
		t.Errorf("expected project demo, got %s", topo.Project.Name)
	}

	if _, err := LoadTopology(ctx, badPath); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := LoadTopology(ctx, filepath.Join(tmpDir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExportJSON(t *testing.T) {
	topo := &Topology{Project: ProjectConfig{Name: "demo"}, Apps: []AppConfig{{Name: "worker"}}}

	data, err := ExportJSON(topo)
	if err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}

	parsed, err := NewCUEParser().ParseInline(context.Background(), "topology: "+string(data))
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	if err := parsed.Err(); err != nil {
		t.Fatalf("exported JSON is not a valid topology: %v", err)
	}
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		version string
		wantErr bool
	}{
		{TopologyVersion, false},
		{"1.0", false},
		{"1.9.3", false},
		{"0.9.0", true},
		{"2.0.0", true},
		{"not-a-version", true},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			err := checkVersion(tt.version)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkVersion(%q) error = %v, wantErr %v", tt.version, err, tt.wantErr)
			}
		})
	}
}
