package engine

import (
	"context"
	"fmt"
	"sync"
)

// call is one recorded provisioner invocation.
type call struct {
	op      string
	name    string
	project string
}

func (c call) String() string {
	if c.project != "" {
		return fmt.Sprintf("%s:%s@%s", c.op, c.name, c.project)
	}
	if c.name != "" {
		return c.op + ":" + c.name
	}
	return c.op
}

// mockProvisioner records every call and returns canned results.
type mockProvisioner struct {
	mu    sync.Mutex
	calls []call

	// failOn maps "op:name" to the error returned for that call.
	failOn map[string]error

	// existingKv lists KV stores reported as already present.
	existingKv map[string]bool

	project *ProjectDetails

	// block, when set, makes Init wait until the channel is closed or ctx ends.
	block chan struct{}
}

func newMockProvisioner() *mockProvisioner {
	return &mockProvisioner{
		failOn:     make(map[string]error),
		existingKv: make(map[string]bool),
		project: &ProjectDetails{
			HTTPEndpoint: "https://http-demo.cloud.example",
			GRPCEndpoint: "https://grpc-demo.cloud.example:443",
		},
	}
}

func (m *mockProvisioner) record(c call) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, c)
	key := c.op
	if c.name != "" {
		key += ":" + c.name
	}
	return m.failOn[key]
}

func (m *mockProvisioner) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.String()
	}
	return out
}

func (m *mockProvisioner) Init(ctx context.Context) error {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.record(call{op: "init"})
}

func (m *mockProvisioner) CreateProject(ctx context.Context, project ProjectDescriptor) (ResourceOutcome, error) {
	return OutcomeCreated, m.record(call{op: "create-project", name: project.Name})
}

func (m *mockProvisioner) UseProject(ctx context.Context, name string) error {
	return m.record(call{op: "use-project", name: name})
}

func (m *mockProvisioner) GetProjectDetails(ctx context.Context, name string) (*ProjectDetails, error) {
	if err := m.record(call{op: "get-project", name: name}); err != nil {
		return nil, err
	}
	return m.project, nil
}

func (m *mockProvisioner) CreateApp(ctx context.Context, app AppDescriptor, project string) (ResourceOutcome, error) {
	return OutcomeCreated, m.record(call{op: "create-app", name: app.Name, project: project})
}

func (m *mockProvisioner) GetAppDetails(ctx context.Context, name string) (*AppDetails, error) {
	if err := m.record(call{op: "get-app", name: name}); err != nil {
		return nil, err
	}
	return &AppDetails{APIToken: "token-" + name, Status: "ready"}, nil
}

func (m *mockProvisioner) CreateComponent(ctx context.Context, component ComponentDescriptor, project string) (ResourceOutcome, error) {
	if err := component.Validate(); err != nil {
		return "", err
	}
	return OutcomeCreated, m.record(call{op: "create-component", name: component.Name, project: project})
}

func (m *mockProvisioner) CreatePubSub(ctx context.Context, name string, desc PubSubDescriptor) (ResourceOutcome, error) {
	return OutcomeCreated, m.record(call{op: "create-pubsub", name: name, project: desc.Project})
}

func (m *mockProvisioner) CreateKvStore(ctx context.Context, name string, desc KvStoreDescriptor) (ResourceOutcome, error) {
	return OutcomeCreated, m.record(call{op: "create-kvstore", name: name, project: desc.Project})
}

func (m *mockProvisioner) CheckKvStoreExists(ctx context.Context, name, project string) (bool, error) {
	if err := m.record(call{op: "check-kvstore", name: name, project: project}); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existingKv[name], nil
}

// mockPublisher records published states.
type mockPublisher struct {
	mu      sync.Mutex
	updates []StatusUpdate
}

func (m *mockPublisher) PublishStatus(ctx context.Context, update StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, update)
	return nil
}

func (m *mockPublisher) getStates() []ProvisioningState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]ProvisioningState, len(m.updates))
	for i, u := range m.updates {
		out[i] = u.State
	}
	return out
}

// mockRecorder records history calls.
type mockRecorder struct {
	mu          sync.Mutex
	begun       []string
	transitions []StatusUpdate
	resources   []ResourceRecord
	results     []*RunResult
}

func (m *mockRecorder) BeginRun(ctx context.Context, runID string, snapshot *GraphSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begun = append(m.begun, runID)
	return nil
}

func (m *mockRecorder) RecordTransition(ctx context.Context, update StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions = append(m.transitions, update)
	return nil
}

func (m *mockRecorder) RecordResource(ctx context.Context, record ResourceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resources = append(m.resources, record)
	return nil
}

func (m *mockRecorder) FinishRun(ctx context.Context, result *RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
	return nil
}

// mockObserver counts wrapped operations.
type mockObserver struct {
	mu  sync.Mutex
	ops []string
}

func (m *mockObserver) ObserveOperation(ctx context.Context, operation, resource string, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.ops = append(m.ops, operation)
	m.mu.Unlock()
	return fn(ctx)
}
