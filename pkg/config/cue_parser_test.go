package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCUEParser_ParseInline(t *testing.T) {
	parser := NewCUEParser()
	ctx := context.Background()

	tests := []struct {
		name      string
		content   string
		wantErr   bool
		checkFunc func(*testing.T, *Topology)
	}{
		{
			name: "valid topology",
			content: `
topology: {
	project: {name: "demo", deploy_managed_pubsub: true}
	apps: [
		{name: "worker", port: 5001},
		{name: "api", port: 5002, protocol: "grpc"},
	]
	pubsubs: [{name: "events", scopes: ["worker"]}]
	kv_stores: [{name: "kvstore"}]
}
`,
			checkFunc: func(t *testing.T, topo *Topology) {
				if topo.Project.Name != "demo" || !topo.Project.DeployManagedPubSub {
					t.Errorf("unexpected project: %+v", topo.Project)
				}
				if len(topo.Apps) != 2 || topo.Apps[0].Name != "worker" || topo.Apps[1].Protocol != "grpc" {
					t.Errorf("unexpected apps: %+v", topo.Apps)
				}
				if len(topo.PubSubs) != 1 || topo.PubSubs[0].Scopes[0] != "worker" {
					t.Errorf("unexpected pubsubs: %+v", topo.PubSubs)
				}
				if len(topo.KvStores) != 1 {
					t.Errorf("expected 1 kv store, got %d", len(topo.KvStores))
				}
			},
		},
		{
			name: "project name defaults to aspire",
			content: `
topology: apps: [{name: "worker"}]
`,
			checkFunc: func(t *testing.T, topo *Topology) {
				if topo.Project.Name != "aspire" {
					t.Errorf("expected default project name, got %q", topo.Project.Name)
				}
			},
		},
		{
			name: "components and diagrid components",
			content: `
topology: {
	project: name: "demo"
	components: [{name: "cron", type: "bindings.cron", metadata: {schedule: "@every 1m"}}]
	diagrid_pubsubs: [{name: "orders", pubsub: "events", consumer_id: "worker"}]
	diagrid_state_stores: [{name: "statestore", state: "kvstore", outbox_publish_pubsub: "events"}]
}
`,
			checkFunc: func(t *testing.T, topo *Topology) {
				if len(topo.Components) != 1 || topo.Components[0].Metadata["schedule"] != "@every 1m" {
					t.Errorf("unexpected components: %+v", topo.Components)
				}
				if len(topo.DiagridPubSubs) != 1 || topo.DiagridPubSubs[0].ConsumerID != "worker" {
					t.Errorf("unexpected diagrid pubsubs: %+v", topo.DiagridPubSubs)
				}
				if len(topo.DiagridStateStores) != 1 || topo.DiagridStateStores[0].OutboxPublishPubSub != "events" {
					t.Errorf("unexpected diagrid state stores: %+v", topo.DiagridStateStores)
				}
			},
		},
		{
			name:    "invalid CUE syntax",
			content: `topology: { project: {name: "demo"`,
			wantErr: true,
		},
		{
			name:    "missing topology field",
			content: `project: name: "demo"`,
			wantErr: true,
		},
		{
			name:    "invalid name",
			content: `topology: apps: [{name: "Bad_Name"}]`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			content: `topology: apps: [{name: "worker", colour: "blue"}]`,
			wantErr: true,
		},
		{
			name:    "port out of range",
			content: `topology: apps: [{name: "worker", port: 70000}]`,
			wantErr: true,
		},
		{
			name:    "invalid protocol",
			content: `topology: apps: [{name: "worker", protocol: "tcp"}]`,
			wantErr: true,
		},
		{
			name:    "duplicate app",
			content: `topology: apps: [{name: "worker"}, {name: "worker"}]`,
			wantErr: true,
		},
		{
			name:    "component without metadata entries",
			content: `topology: components: [{name: "cron", type: "bindings.cron", metadata: {}}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := parser.ParseInline(ctx, tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.wantErr {
				if len(parsed.Errors) == 0 {
					t.Fatal("expected validation errors, got none")
				}
				if parsed.Topology != nil {
					t.Error("expected no topology when errors are reported")
				}
				return
			}

			if len(parsed.Errors) > 0 {
				t.Fatalf("unexpected errors: %v", parsed.Err())
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, parsed.Topology)
			}
		})
	}
}

func TestCUEParser_ParseFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "topology.cue")

	content := `package catalyst

topology: {
	project: name: "demo"
	apps: [{name: "worker", port: 5001}]
}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	parsed, err := NewCUEParser().Parse(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if err := parsed.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if len(parsed.SourceFiles) != 1 || parsed.SourceFiles[0] != path {
		t.Errorf("unexpected source files: %v", parsed.SourceFiles)
	}
	if parsed.Topology.Apps[0].Port != 5001 {
		t.Errorf("expected port 5001, got %d", parsed.Topology.Apps[0].Port)
	}
}

func TestCUEParser_ParseDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]string{
		"project.cue": `package catalyst

topology: project: name: "demo"
`,
		"apps.cue": `package catalyst

topology: apps: [{name: "worker"}]
`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(tmpDir, name), []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	parsed, err := NewCUEParser().Parse(context.Background(), []string{tmpDir})
	if err != nil {
		t.Fatalf("failed to parse directory: %v", err)
	}
	if err := parsed.Err(); err != nil {
		t.Fatalf("unexpected errors: %v", err)
	}
	if parsed.Topology.Project.Name != "demo" || len(parsed.Topology.Apps) != 1 {
		t.Errorf("unexpected topology: %+v", parsed.Topology)
	}
	if len(parsed.SourceFiles) != 2 {
		t.Errorf("expected 2 source files, got %d", len(parsed.SourceFiles))
	}
}

func TestCUEParser_ErrorLocation(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "topology.cue")
	if err := os.WriteFile(path, []byte("topology: apps: [{name: 42}]\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	parsed, err := NewCUEParser().Parse(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.Errors) == 0 {
		t.Fatal("expected validation errors")
	}
	if !strings.Contains(parsed.Err().Error(), "invalid topology") {
		t.Errorf("unexpected error text: %v", parsed.Err())
	}
}

func TestCUEParser_NoSources(t *testing.T) {
	if _, err := NewCUEParser().Parse(context.Background(), nil); err == nil {
		t.Fatal("expected error for no sources")
	}
	if _, err := NewCUEParser().Parse(context.Background(), []string{"/does/not/exist.cue"}); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestSchemaRegistry(t *testing.T) {
	sr := NewSchemaRegistry()

	if names := sr.ListSchemas(); len(names) != 1 || names[0] != TopologySchema {
		t.Errorf("expected only the topology schema, got %v", names)
	}

	if err := sr.RegisterSchema("custom", "#Custom", "#Custom: {field1: string, field2: int}"); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}
	if _, ok := sr.GetSchema("custom"); !ok {
		t.Fatal("expected to find custom schema")
	}

	if err := sr.RegisterSchema("broken", "#Missing", "#Other: string"); err == nil {
		t.Error("expected error for missing entry definition")
	}
	if err := sr.RegisterSchema("invalid", "#X", "#X: {"); err == nil {
		t.Error("expected error for invalid schema")
	}

	ctx := context.Background()
	valid := Topology{Project: ProjectConfig{Name: "demo"}, Apps: []AppConfig{{Name: "worker", Port: 5001}}}
	if err := sr.ValidateAgainstSchema(ctx, TopologySchema, valid); err != nil {
		t.Errorf("expected valid topology, got %v", err)
	}

	invalid := Topology{Project: ProjectConfig{Name: "Demo Project"}}
	if err := sr.ValidateAgainstSchema(ctx, TopologySchema, invalid); err == nil {
		t.Error("expected invalid project name to fail")
	}

	if err := sr.ValidateAgainstSchema(ctx, "unknown", valid); err == nil {
		t.Error("expected error for unknown schema")
	}
}
