package stores

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: MemoryPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSnapshot(project string) *engine.GraphSnapshot {
	return &engine.GraphSnapshot{
		Project: engine.ProjectDescriptor{Name: project},
		Apps:    []engine.AppDescriptor{{Name: "worker", Port: 5001}},
		PubSubs: []engine.NamedPubSub{{Name: "events", PubSubDescriptor: engine.PubSubDescriptor{Project: project}}},
	}
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{Path: MemoryPath})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}

	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"runs", "transitions", "resources"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	// Running migrations again is a no-op
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second migration failed: %v", err)
	}
}

func TestRunHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", testSnapshot("demo")); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	run, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != engine.RunStatusRunning || run.State != engine.StateNotStarted {
		t.Errorf("unexpected initial run: status=%s state=%s", run.Status, run.State)
	}
	if run.CompletedAt != nil {
		t.Error("expected no completion time for a running run")
	}

	var snap engine.GraphSnapshot
	if err := json.Unmarshal([]byte(run.Snapshot), &snap); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	if len(snap.Apps) != 1 || snap.Apps[0].Name != "worker" {
		t.Errorf("unexpected snapshot apps: %+v", snap.Apps)
	}

	states := []engine.ProvisioningState{
		engine.StateStarting,
		engine.StateEnsuringProject,
		engine.StateFailedToStart,
	}
	for _, state := range states {
		update := engine.StatusUpdate{
			RunID:     "run-1",
			Project:   "demo",
			State:     state,
			Style:     state.Style(),
			Message:   state.DisplayName(),
			Timestamp: time.Now(),
		}
		if state == engine.StateFailedToStart {
			update.Error = "project create failed"
		}
		if err := store.RecordTransition(ctx, update); err != nil {
			t.Fatalf("RecordTransition(%s) failed: %v", state, err)
		}
	}

	transitions, err := store.ListTransitions(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListTransitions failed: %v", err)
	}
	if len(transitions) != len(states) {
		t.Fatalf("expected %d transitions, got %d", len(states), len(transitions))
	}
	for i, tr := range transitions {
		if tr.State != states[i] {
			t.Errorf("transition %d: expected %s, got %s", i, states[i], tr.State)
		}
	}
	if last := transitions[2]; last.Error == nil || *last.Error != "project create failed" {
		t.Errorf("expected error on the last transition, got %v", last.Error)
	}
	if transitions[0].Error != nil {
		t.Errorf("expected no error on the first transition, got %v", *transitions[0].Error)
	}

	started := time.Now().Add(-2 * time.Second)
	result := &engine.RunResult{
		RunID:      "run-1",
		Project:    "demo",
		State:      engine.StateFailedToStart,
		Err:        errors.New("project create failed"),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := store.FinishRun(ctx, result); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err = store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Status != engine.RunStatusFailed {
		t.Errorf("expected failed status, got %s", run.Status)
	}
	if run.Error == nil || *run.Error != "project create failed" {
		t.Errorf("unexpected run error: %v", run.Error)
	}
	if run.CompletedAt == nil {
		t.Fatal("expected completion time")
	}
}

func TestRecordResources(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", testSnapshot("demo")); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	records := []engine.ResourceRecord{
		{RunID: "run-1", Kind: engine.ResourceKindProject, Name: "demo", Project: "demo", Outcome: engine.OutcomeExisting},
		{RunID: "run-1", Kind: engine.ResourceKindApp, Name: "worker", Project: "demo", Outcome: engine.OutcomeCreated},
		{RunID: "run-1", Kind: engine.ResourceKindPubSub, Name: "events", Project: "demo", Outcome: engine.OutcomeCreated},
	}
	for _, r := range records {
		if err := store.RecordResource(ctx, r); err != nil {
			t.Fatalf("RecordResource(%s) failed: %v", r.Name, err)
		}
	}

	resources, err := store.ListResources(ctx, "run-1")
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(resources) != len(records) {
		t.Fatalf("expected %d resources, got %d", len(records), len(resources))
	}
	for i, r := range resources {
		if r.Name != records[i].Name || r.Kind != records[i].Kind || r.Outcome != records[i].Outcome {
			t.Errorf("resource %d: expected %+v, got %+v", i, records[i], r)
		}
	}

	// Resources of unknown runs violate the foreign key
	err = store.RecordResource(ctx, engine.ResourceRecord{
		RunID: "missing", Kind: engine.ResourceKindApp, Name: "x", Project: "demo", Outcome: engine.OutcomeCreated,
	})
	if err == nil {
		t.Error("expected error for resource of unknown run")
	}
}

func TestListRunsFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	runs := []struct {
		id      string
		project string
		state   engine.ProvisioningState
	}{
		{"run-1", "demo", engine.StateFinished},
		{"run-2", "demo", engine.StateFailedToStart},
		{"run-3", "other", engine.StateFinished},
	}
	for _, r := range runs {
		if err := store.BeginRun(ctx, r.id, testSnapshot(r.project)); err != nil {
			t.Fatalf("BeginRun(%s) failed: %v", r.id, err)
		}
		if err := store.FinishRun(ctx, &engine.RunResult{RunID: r.id, Project: r.project, State: r.state, FinishedAt: time.Now()}); err != nil {
			t.Fatalf("FinishRun(%s) failed: %v", r.id, err)
		}
	}

	tests := []struct {
		name     string
		filter   RunFilter
		expected []string
	}{
		{"all runs newest first", RunFilter{}, []string{"run-3", "run-2", "run-1"}},
		{"by project", RunFilter{Project: "demo"}, []string{"run-2", "run-1"}},
		{"by status", RunFilter{Status: engine.RunStatusSucceeded}, []string{"run-3", "run-1"}},
		{"with limit", RunFilter{Limit: 1}, []string{"run-3"}},
		{"with offset", RunFilter{Limit: 1, Offset: 1}, []string{"run-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListRuns(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRuns failed: %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d runs, got %d", len(tt.expected), len(got))
			}
			for i, run := range got {
				if run.ID != tt.expected[i] {
					t.Errorf("run %d: expected %s, got %s", i, tt.expected[i], run.ID)
				}
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from GetRun, got %v", err)
	}
	if err := store.FinishRun(ctx, &engine.RunResult{RunID: "missing", State: engine.StateFinished}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from FinishRun, got %v", err)
	}
	if err := store.DeleteRun(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound from DeleteRun, got %v", err)
	}
}

func TestDeleteRunCascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.BeginRun(ctx, "run-1", testSnapshot("demo")); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := store.RecordTransition(ctx, engine.StatusUpdate{RunID: "run-1", State: engine.StateStarting, Style: engine.StyleInfo, Message: "Starting"}); err != nil {
		t.Fatalf("RecordTransition failed: %v", err)
	}
	if err := store.RecordResource(ctx, engine.ResourceRecord{RunID: "run-1", Kind: engine.ResourceKindProject, Name: "demo", Project: "demo", Outcome: engine.OutcomeCreated}); err != nil {
		t.Fatalf("RecordResource failed: %v", err)
	}

	if err := store.DeleteRun(ctx, "run-1"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	transitions, _ := store.ListTransitions(ctx, "run-1")
	resources, _ := store.ListResources(ctx, "run-1")
	if len(transitions) != 0 || len(resources) != 0 {
		t.Errorf("expected cascade delete, got %d transitions and %d resources", len(transitions), len(resources))
	}
}

func TestFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	open := func() *SQLiteStore {
		store, err := NewSQLiteStore(Config{Path: path})
		if err != nil {
			t.Fatalf("failed to create store: %v", err)
		}
		if err := store.Init(ctx); err != nil {
			t.Fatalf("failed to initialize store: %v", err)
		}
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to migrate store: %v", err)
		}
		return store
	}

	store := open()
	if err := store.BeginRun(ctx, "run-1", testSnapshot("demo")); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	_ = store.Close()

	reopened := open()
	defer reopened.Close()

	if _, err := reopened.GetRun(ctx, "run-1"); err != nil {
		t.Errorf("expected run to survive reopen: %v", err)
	}
}
