package engine

import (
	"context"
)

// Provisioner creates and inspects Catalyst cloud resources.
// Every call is cancellable through ctx. Create calls are idempotent: a resource that
// already exists is reported as OutcomeExisting rather than as an error.
type Provisioner interface {
	// Init performs one-time setup such as selecting the cloud product context.
	Init(ctx context.Context) error

	// CreateProject creates the project, or leaves an existing one alone.
	CreateProject(ctx context.Context, project ProjectDescriptor) (ResourceOutcome, error)

	// UseProject makes the project the active context for subsequent calls.
	UseProject(ctx context.Context, name string) error

	// GetProjectDetails returns the project's endpoints.
	GetProjectDetails(ctx context.Context, name string) (*ProjectDetails, error)

	// CreateApp creates an app identity in the project.
	CreateApp(ctx context.Context, app AppDescriptor, project string) (ResourceOutcome, error)

	// GetAppDetails returns the credentials of an app identity.
	GetAppDetails(ctx context.Context, name string) (*AppDetails, error)

	// CreateComponent creates a generic component. Invalid descriptors fail before
	// anything is sent to the backend.
	CreateComponent(ctx context.Context, component ComponentDescriptor, project string) (ResourceOutcome, error)

	// CreatePubSub creates a pub/sub broker.
	CreatePubSub(ctx context.Context, name string, desc PubSubDescriptor) (ResourceOutcome, error)

	// CreateKvStore creates a key-value store.
	CreateKvStore(ctx context.Context, name string, desc KvStoreDescriptor) (ResourceOutcome, error)

	// CheckKvStoreExists reports whether a KV store with exactly this name exists.
	CheckKvStoreExists(ctx context.Context, name, project string) (bool, error)
}

// StatusPublisher receives every state transition of an orchestration run.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, update StatusUpdate) error
}

// RunRecorder persists run history. Recording failures are logged, never fatal.
type RunRecorder interface {
	// BeginRun records the start of a run.
	BeginRun(ctx context.Context, runID string, snapshot *GraphSnapshot) error

	// RecordTransition records one published state.
	RecordTransition(ctx context.Context, update StatusUpdate) error

	// RecordResource records a realized resource.
	RecordResource(ctx context.Context, record ResourceRecord) error

	// FinishRun records the terminal result.
	FinishRun(ctx context.Context, result *RunResult) error
}

// OperationObserver wraps each provisioner call, e.g. for metrics and tracing.
type OperationObserver interface {
	ObserveOperation(ctx context.Context, operation, resource string, fn func(ctx context.Context) error) error
}
