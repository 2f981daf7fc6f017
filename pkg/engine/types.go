package engine

import (
	"sort"
	"strings"
	"time"
)

// DefaultProjectName is used when a topology does not name its project.
const DefaultProjectName = "aspire"

// ProjectDescriptor identifies the target cloud project and how it is created.
type ProjectDescriptor struct {
	// Name is the project name.
	Name string `json:"name"`

	// Region is the optional cloud region.
	Region string `json:"region,omitempty"`

	// DeployManagedPubSub requests the project's managed pub/sub broker.
	DeployManagedPubSub bool `json:"deploy_managed_pubsub"`

	// DeployManagedKv requests the project's managed key-value store.
	DeployManagedKv bool `json:"deploy_managed_kv"`

	// EnableManagedWorkflow enables the managed workflow store.
	EnableManagedWorkflow bool `json:"enable_managed_workflow"`

	// DisableAppTunnels turns off app tunnels for the project.
	DisableAppTunnels bool `json:"disable_app_tunnels"`
}

// AppDescriptor describes an application identity requested by a downstream service.
type AppDescriptor struct {
	// Name is the app identity name.
	Name string `json:"name"`

	// Port is the local port the service listens on, used by the dev proxy.
	Port int `json:"port,omitempty"`

	// Protocol is the app protocol (http or grpc).
	Protocol string `json:"protocol,omitempty"`
}

// PubSubDescriptor describes a pub/sub broker to create in a project.
type PubSubDescriptor struct {
	Project string   `json:"project"`
	Scopes  []string `json:"scopes,omitempty"`
}

// KvStoreDescriptor describes a key-value store to create in a project.
type KvStoreDescriptor struct {
	Project string   `json:"project"`
	Scopes  []string `json:"scopes,omitempty"`
}

// ComponentDescriptor is a generic Dapr component declaration.
type ComponentDescriptor struct {
	// Name is the component name. Required.
	Name string `json:"name"`

	// Type is the component type, e.g. pubsub.diagrid. Required.
	Type string `json:"type"`

	// Scopes restricts the component to the named apps. Empty means no restriction.
	Scopes []string `json:"scopes,omitempty"`

	// Metadata holds the component configuration. Nil values are ignored.
	Metadata map[string]any `json:"metadata"`
}

// Validate checks the descriptor before any provisioning call is made.
func (c ComponentDescriptor) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewValidationError("component name required").WithOperation("create-component")
	}
	if strings.TrimSpace(c.Type) == "" {
		return NewValidationError("component type required").
			WithResource(c.Name).WithOperation("create-component")
	}
	if len(c.MetadataKeys()) == 0 {
		return NewValidationError("component metadata required").
			WithResource(c.Name).WithOperation("create-component")
	}
	return nil
}

// MetadataKeys returns the keys with non-nil values, sorted.
func (c ComponentDescriptor) MetadataKeys() []string {
	keys := make([]string, 0, len(c.Metadata))
	for k, v := range c.Metadata {
		if v == nil {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the descriptor.
func (c ComponentDescriptor) Clone() ComponentDescriptor {
	out := c
	out.Scopes = cloneStrings(c.Scopes)
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ProjectDetails are the resolved project endpoints.
type ProjectDetails struct {
	HTTPEndpoint string `json:"http_endpoint"`
	GRPCEndpoint string `json:"grpc_endpoint"`
}

// AppDetails are the resolved credentials of an app identity.
type AppDetails struct {
	APIToken string `json:"-"`
	SpiffeID string `json:"spiffe_id,omitempty"`
	Status   string `json:"status,omitempty"`
}

// StatusUpdate is one published transition of the state machine.
type StatusUpdate struct {
	// RunID identifies the orchestration run.
	RunID string `json:"run_id"`

	// Project is the project name the graph represents.
	Project string `json:"project"`

	// State is the new state.
	State ProvisioningState `json:"state"`

	// Style is the severity of the state.
	Style StateStyle `json:"style"`

	// Message is the display text.
	Message string `json:"message"`

	// Error is the failure text for FailedToStart.
	Error string `json:"error,omitempty"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// ResourceRecord describes one realized resource for run history.
type ResourceRecord struct {
	RunID     string          `json:"run_id"`
	Kind      ResourceKind    `json:"kind"`
	Name      string          `json:"name"`
	Project   string          `json:"project"`
	Outcome   ResourceOutcome `json:"outcome"`
	Timestamp time.Time       `json:"timestamp"`
}

// RunResult is the terminal outcome of an orchestration run.
type RunResult struct {
	RunID      string            `json:"run_id"`
	Project    string            `json:"project"`
	State      ProvisioningState `json:"state"`
	Err        error             `json:"-"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Succeeded reports whether the run reached Finished.
func (r *RunResult) Succeeded() bool {
	return r != nil && r.State == StateFinished
}

// Duration returns how long the run took.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
