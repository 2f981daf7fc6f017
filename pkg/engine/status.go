package engine

import (
	"encoding/json"
	"fmt"
)

// ProvisioningState is a step of the provisioning state machine.
type ProvisioningState string

const (
	// StateNotStarted is the state of a graph no orchestrator has picked up yet.
	StateNotStarted ProvisioningState = "not_started"

	// StateStarting indicates the provisioner is being initialized.
	StateStarting ProvisioningState = "starting"

	// StateEnsuringProject indicates the project is being created (or found).
	StateEnsuringProject ProvisioningState = "ensuring_project"

	// StateSelectingProject indicates the project is being made the active context.
	StateSelectingProject ProvisioningState = "selecting_project"

	// StateLoadingProjectDetails indicates the project endpoints are being resolved.
	StateLoadingProjectDetails ProvisioningState = "loading_project_details"

	// StateEnsuringApplications indicates app identities are being created.
	StateEnsuringApplications ProvisioningState = "ensuring_applications"

	// StateEnsuringServices indicates pub/sub brokers are being created.
	StateEnsuringServices ProvisioningState = "ensuring_services"

	// StateEnsuringKvStores indicates key-value stores are being created.
	StateEnsuringKvStores ProvisioningState = "ensuring_kv_stores"

	// StateEnsuringComponents indicates generic components are being created.
	StateEnsuringComponents ProvisioningState = "ensuring_components"

	// StateFinished indicates every declared resource was provisioned.
	StateFinished ProvisioningState = "finished"

	// StateFailedToStart is the absorbing failure state.
	StateFailedToStart ProvisioningState = "failed_to_start"
)

// provisioningSequence is the fixed order of non-terminal states.
var provisioningSequence = []ProvisioningState{
	StateStarting,
	StateEnsuringProject,
	StateSelectingProject,
	StateLoadingProjectDetails,
	StateEnsuringApplications,
	StateEnsuringServices,
	StateEnsuringKvStores,
	StateEnsuringComponents,
}

var stateDisplayNames = map[ProvisioningState]string{
	StateNotStarted:            "Not started",
	StateStarting:              "Starting",
	StateEnsuringProject:       "Ensuring project",
	StateSelectingProject:      "Selecting project",
	StateLoadingProjectDetails: "Loading project details",
	StateEnsuringApplications:  "Ensuring applications",
	StateEnsuringServices:      "Ensuring services",
	StateEnsuringKvStores:      "Ensuring kv stores",
	StateEnsuringComponents:    "Ensuring components",
	StateFinished:              "Finished",
	StateFailedToStart:         "FailedToStart",
}

// DisplayName returns the human-readable status text shown to dashboards.
func (s ProvisioningState) DisplayName() string {
	if name, ok := stateDisplayNames[s]; ok {
		return name
	}
	return string(s)
}

// Style returns the severity style associated with the state.
func (s ProvisioningState) Style() StateStyle {
	switch s {
	case StateFinished:
		return StyleSuccess
	case StateFailedToStart:
		return StyleError
	default:
		return StyleInfo
	}
}

// IsTerminal returns true if no further transition can happen from this state.
func (s ProvisioningState) IsTerminal() bool {
	return s == StateFinished || s == StateFailedToStart
}

// IsActive returns true while the orchestrator is working through the sequence.
func (s ProvisioningState) IsActive() bool {
	return s != StateNotStarted && !s.IsTerminal()
}

// Validate checks if the state is valid.
func (s ProvisioningState) Validate() error {
	if _, ok := stateDisplayNames[s]; ok {
		return nil
	}
	return fmt.Errorf("invalid provisioning state: %s", s)
}

// CanTransitionTo reports whether next is a legal successor of s.
// Any active state may fail; otherwise states only move forward through the sequence.
func (s ProvisioningState) CanTransitionTo(next ProvisioningState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailedToStart {
		return true
	}
	if s == StateNotStarted {
		return next == StateStarting
	}
	if next == StateFinished {
		return s == StateEnsuringComponents
	}
	return sequenceIndex(next) == sequenceIndex(s)+1
}

func sequenceIndex(s ProvisioningState) int {
	for i, step := range provisioningSequence {
		if step == s {
			return i
		}
	}
	return -1
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s ProvisioningState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *ProvisioningState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ProvisioningState(str)
	return s.Validate()
}

// StateStyle is the severity attached to a published state.
type StateStyle string

const (
	// StyleInfo marks progress updates.
	StyleInfo StateStyle = "info"

	// StyleSuccess marks successful completion.
	StyleSuccess StateStyle = "success"

	// StyleError marks failure.
	StyleError StateStyle = "error"
)

// RunStatus represents the overall status of one orchestration run.
type RunStatus string

const (
	// RunStatusRunning indicates the run is executing.
	RunStatusRunning RunStatus = "running"

	// RunStatusSucceeded indicates the run reached Finished.
	RunStatusSucceeded RunStatus = "succeeded"

	// RunStatusFailed indicates the run reached FailedToStart.
	RunStatusFailed RunStatus = "failed"
)

// IsTerminal returns true if the run status represents a final state.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed
}

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// RunStatusFor maps a terminal provisioning state to a run status.
func RunStatusFor(state ProvisioningState) RunStatus {
	switch state {
	case StateFinished:
		return RunStatusSucceeded
	case StateFailedToStart:
		return RunStatusFailed
	default:
		return RunStatusRunning
	}
}

// ResourceKind identifies the kind of cloud resource handled by a step.
type ResourceKind string

const (
	ResourceKindProject   ResourceKind = "project"
	ResourceKindApp       ResourceKind = "app"
	ResourceKindPubSub    ResourceKind = "pubsub"
	ResourceKindKvStore   ResourceKind = "kvstore"
	ResourceKindComponent ResourceKind = "component"
)

// Validate checks if the resource kind is valid.
func (k ResourceKind) Validate() error {
	switch k {
	case ResourceKindProject, ResourceKindApp, ResourceKindPubSub,
		ResourceKindKvStore, ResourceKindComponent:
		return nil
	default:
		return fmt.Errorf("invalid resource kind: %s", k)
	}
}

// ResourceOutcome describes what a provisioning call did to a resource.
type ResourceOutcome string

const (
	// OutcomeCreated means the CLI created the resource.
	OutcomeCreated ResourceOutcome = "created"

	// OutcomeExisting means the resource was already present and left alone.
	OutcomeExisting ResourceOutcome = "existing"
)
