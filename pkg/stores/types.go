package stores

import (
	"context"
	"time"

	"github.com/diagrid-labs/catalyst-provisioner/pkg/engine"
)

// Run is one orchestration run.
type Run struct {
	ID          string                   `json:"id"`
	Project     string                   `json:"project"`
	Status      engine.RunStatus         `json:"status"`
	State       engine.ProvisioningState `json:"state"`
	Snapshot    string                   `json:"snapshot"` // JSON blob of the graph snapshot
	Error       *string                  `json:"error,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Transition is one recorded state of a run.
type Transition struct {
	ID        int64                    `json:"id"`
	RunID     string                   `json:"run_id"`
	State     engine.ProvisioningState `json:"state"`
	Style     engine.StateStyle        `json:"style"`
	Message   string                   `json:"message"`
	Error     *string                  `json:"error,omitempty"`
	Timestamp time.Time                `json:"timestamp"`
}

// Resource is one realized cloud resource of a run.
type Resource struct {
	ID        int64                  `json:"id"`
	RunID     string                 `json:"run_id"`
	Kind      engine.ResourceKind    `json:"kind"`
	Name      string                 `json:"name"`
	Project   string                 `json:"project"`
	Outcome   engine.ResourceOutcome `json:"outcome"`
	Timestamp time.Time              `json:"timestamp"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	// Project restricts runs to one project. Empty means all projects.
	Project string

	// Status restricts runs to one status. Empty means all statuses.
	Status engine.RunStatus

	Limit  int
	Offset int
}

// Store defines the interface for the persistence layer.
type Store interface {
	engine.RunRecorder

	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Queries
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	ListTransitions(ctx context.Context, runID string) ([]*Transition, error)
	ListResources(ctx context.Context, runID string) ([]*Resource, error)
	DeleteRun(ctx context.Context, id string) error

	// Utility
	HealthCheck(ctx context.Context) error
}
