package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ResourceGraph is the in-memory record of a Catalyst project: the descriptors declared
// at configuration time and the futures the orchestrator resolves while provisioning.
//
// Descriptors may only be added until the graph is snapshotted. The orchestrator is the
// sole writer of the futures and of the status.
type ResourceGraph struct {
	mu sync.RWMutex

	project      ProjectDescriptor
	httpEndpoint *Future[string]
	grpcEndpoint *Future[string]

	apps       orderedMap[AppDescriptor]
	appDetails map[string]*Future[AppDetails]
	pubSubs    orderedMap[PubSubDescriptor]
	kvStores   orderedMap[KvStoreDescriptor]
	components orderedMap[ComponentDescriptor]

	sealed   bool
	claimed  bool
	status   StatusUpdate
	err      error
	failed   chan struct{}
	finished chan struct{}
}

// NewResourceGraph creates an empty graph for the given project.
// A blank project name falls back to DefaultProjectName.
func NewResourceGraph(project ProjectDescriptor) *ResourceGraph {
	if strings.TrimSpace(project.Name) == "" {
		project.Name = DefaultProjectName
	}

	return &ResourceGraph{
		project:      project,
		httpEndpoint: NewFuture[string](project.Name + " http endpoint"),
		grpcEndpoint: NewFuture[string](project.Name + " grpc endpoint"),
		apps:         newOrderedMap[AppDescriptor](),
		appDetails:   make(map[string]*Future[AppDetails]),
		pubSubs:      newOrderedMap[PubSubDescriptor](),
		kvStores:     newOrderedMap[KvStoreDescriptor](),
		components:   newOrderedMap[ComponentDescriptor](),
		status: StatusUpdate{
			Project:   project.Name,
			State:     StateNotStarted,
			Style:     StyleInfo,
			Message:   StateNotStarted.DisplayName(),
			Timestamp: time.Now(),
		},
		failed:   make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// ProjectName returns the project name. It never changes after creation.
func (g *ResourceGraph) ProjectName() string {
	return g.project.Name
}

// Project returns the project descriptor.
func (g *ResourceGraph) Project() ProjectDescriptor {
	return g.project
}

// HTTPEndpoint returns the future resolved with the project's HTTP endpoint.
func (g *ResourceGraph) HTTPEndpoint() *Future[string] {
	return g.httpEndpoint
}

// GRPCEndpoint returns the future resolved with the project's gRPC endpoint.
func (g *ResourceGraph) GRPCEndpoint() *Future[string] {
	return g.grpcEndpoint
}

// AddApp declares an app identity and returns the future of its credentials.
func (g *ResourceGraph) AddApp(app AppDescriptor) (*Future[AppDetails], error) {
	if strings.TrimSpace(app.Name) == "" {
		return nil, NewValidationError("app name required").WithOperation("add-app")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable(app.Name); err != nil {
		return nil, err
	}
	if !g.apps.add(app.Name, app) {
		return nil, duplicateError(ResourceKindApp, app.Name)
	}

	future := NewFuture[AppDetails](app.Name + " app details")
	g.appDetails[app.Name] = future
	return future, nil
}

// AddPubSub declares a pub/sub broker. A blank project defaults to the graph's project.
func (g *ResourceGraph) AddPubSub(name string, desc PubSubDescriptor) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("pub/sub broker name required").WithOperation("add-pubsub")
	}
	if desc.Project == "" {
		desc.Project = g.project.Name
	}
	desc.Scopes = cloneStrings(desc.Scopes)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable(name); err != nil {
		return err
	}
	if !g.pubSubs.add(name, desc) {
		return duplicateError(ResourceKindPubSub, name)
	}
	return nil
}

// AddKvStore declares a key-value store. A blank project defaults to the graph's project.
func (g *ResourceGraph) AddKvStore(name string, desc KvStoreDescriptor) error {
	if strings.TrimSpace(name) == "" {
		return NewValidationError("kv store name required").WithOperation("add-kvstore")
	}
	if desc.Project == "" {
		desc.Project = g.project.Name
	}
	desc.Scopes = cloneStrings(desc.Scopes)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable(name); err != nil {
		return err
	}
	if !g.kvStores.add(name, desc) {
		return duplicateError(ResourceKindKvStore, name)
	}
	return nil
}

// AddComponent declares a generic component. Field validation is deferred to
// provisioning so that a bad descriptor surfaces as a FailedToStart transition.
func (g *ResourceGraph) AddComponent(desc ComponentDescriptor) error {
	if strings.TrimSpace(desc.Name) == "" {
		return NewValidationError("component name required").WithOperation("add-component")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkMutable(desc.Name); err != nil {
		return err
	}
	if !g.components.add(desc.Name, desc.Clone()) {
		return duplicateError(ResourceKindComponent, desc.Name)
	}
	return nil
}

// AppDetails returns the credentials future of a declared app.
func (g *ResourceGraph) AppDetails(name string) (*Future[AppDetails], bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	f, ok := g.appDetails[name]
	return f, ok
}

// AppNames returns the declared app names in declaration order.
func (g *ResourceGraph) AppNames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return cloneStrings(g.apps.keys)
}

// Snapshot seals the graph and returns a deep copy of its descriptors in declaration order.
func (g *ResourceGraph) Snapshot() *GraphSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.sealed = true

	snap := &GraphSnapshot{
		Project: g.project,
	}
	for _, name := range g.apps.keys {
		snap.Apps = append(snap.Apps, g.apps.items[name])
	}
	for _, name := range g.pubSubs.keys {
		desc := g.pubSubs.items[name]
		desc.Scopes = cloneStrings(desc.Scopes)
		snap.PubSubs = append(snap.PubSubs, NamedPubSub{Name: name, PubSubDescriptor: desc})
	}
	for _, name := range g.kvStores.keys {
		desc := g.kvStores.items[name]
		desc.Scopes = cloneStrings(desc.Scopes)
		snap.KvStores = append(snap.KvStores, NamedKvStore{Name: name, KvStoreDescriptor: desc})
	}
	for _, name := range g.components.keys {
		snap.Components = append(snap.Components, g.components.items[name].Clone())
	}
	return snap
}

// Sealed reports whether the graph has been snapshotted.
func (g *ResourceGraph) Sealed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sealed
}

// Status returns the last published status.
func (g *ResourceGraph) Status() StatusUpdate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Err returns the failure that moved the graph to FailedToStart, if any.
func (g *ResourceGraph) Err() error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.err
}

// Failed returns a channel closed when the graph reaches FailedToStart.
func (g *ResourceGraph) Failed() <-chan struct{} {
	return g.failed
}

// Finished returns a channel closed when the graph reaches any terminal state.
func (g *ResourceGraph) Finished() <-chan struct{} {
	return g.finished
}

// claim reserves the graph for a single orchestration run.
func (g *ResourceGraph) claim() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.claimed || g.status.State != StateNotStarted {
		return NewPermanentError(
			fmt.Sprintf("resource graph already provisioned (state %s)", g.status.State), nil,
		).WithCode(ErrCodeAlreadyStarted).WithResource(g.project.Name)
	}
	g.claimed = true
	return nil
}

// transition records a new status. Illegal transitions are rejected.
func (g *ResourceGraph) transition(update StatusUpdate, cause error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := g.status.State
	if !current.CanTransitionTo(update.State) {
		return NewPermanentError(
			fmt.Sprintf("illegal transition %s -> %s", current, update.State), nil,
		).WithCode(ErrCodeInternal).WithResource(g.project.Name)
	}

	g.status = update
	switch update.State {
	case StateFailedToStart:
		g.err = cause
		close(g.failed)
		close(g.finished)
	case StateFinished:
		close(g.finished)
	}
	return nil
}

func (g *ResourceGraph) checkMutable(name string) error {
	if g.sealed {
		return fmt.Errorf("cannot declare %s: %w", name, ErrGraphSealed)
	}
	return nil
}

func duplicateError(kind ResourceKind, name string) error {
	return NewValidationError(fmt.Sprintf("%s %s already declared", kind, name)).
		WithCode(ErrCodeAlreadyExists).WithResource(name)
}

// GraphSnapshot is an immutable copy of a graph's descriptors handed to the orchestrator.
type GraphSnapshot struct {
	Project    ProjectDescriptor     `json:"project"`
	Apps       []AppDescriptor       `json:"apps,omitempty"`
	PubSubs    []NamedPubSub         `json:"pubsubs,omitempty"`
	KvStores   []NamedKvStore        `json:"kv_stores,omitempty"`
	Components []ComponentDescriptor `json:"components,omitempty"`
}

// NamedPubSub pairs a pub/sub descriptor with its name.
type NamedPubSub struct {
	Name string `json:"name"`
	PubSubDescriptor
}

// NamedKvStore pairs a KV store descriptor with its name.
type NamedKvStore struct {
	Name string `json:"name"`
	KvStoreDescriptor
}

// ResourceCount returns the number of create calls a successful run issues after the
// project steps: one per app, pub/sub, KV store and component.
func (s *GraphSnapshot) ResourceCount() int {
	return len(s.Apps) + len(s.PubSubs) + len(s.KvStores) + len(s.Components)
}

// orderedMap keeps insertion order for descriptor dictionaries.
type orderedMap[T any] struct {
	keys  []string
	items map[string]T
}

func newOrderedMap[T any]() orderedMap[T] {
	return orderedMap[T]{items: make(map[string]T)}
}

func (m *orderedMap[T]) add(key string, value T) bool {
	if _, exists := m.items[key]; exists {
		return false
	}
	m.keys = append(m.keys, key)
	m.items[key] = value
	return true
}
