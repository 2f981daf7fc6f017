package engine

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestProvisioningState_Transitions(t *testing.T) {
	tests := []struct {
		from, to ProvisioningState
		allowed  bool
	}{
		{StateNotStarted, StateStarting, true},
		{StateNotStarted, StateEnsuringProject, false},
		{StateStarting, StateEnsuringProject, true},
		{StateEnsuringProject, StateLoadingProjectDetails, false},
		{StateEnsuringServices, StateEnsuringKvStores, true},
		{StateEnsuringComponents, StateFinished, true},
		{StateEnsuringApplications, StateFinished, false},
		{StateLoadingProjectDetails, StateFailedToStart, true},
		{StateFailedToStart, StateStarting, false},
		{StateFinished, StateFailedToStart, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.allowed)
			}
		})
	}
}

func TestProvisioningState_Style(t *testing.T) {
	if StateFinished.Style() != StyleSuccess {
		t.Error("Finished must be a success state")
	}
	if StateFailedToStart.Style() != StyleError {
		t.Error("FailedToStart must be an error state")
	}
	if StateEnsuringComponents.Style() != StyleInfo {
		t.Error("Intermediate states must be info")
	}
	if StateEnsuringProject.DisplayName() != "Ensuring project" {
		t.Errorf("Unexpected display name %q", StateEnsuringProject.DisplayName())
	}
	if !StateEnsuringKvStores.IsActive() || StateFinished.IsActive() || StateNotStarted.IsActive() {
		t.Error("IsActive mismatch")
	}
}

func TestProvisioningState_JSON(t *testing.T) {
	data, err := json.Marshal(StateEnsuringServices)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"ensuring_services"` {
		t.Errorf("Unexpected JSON %s", data)
	}

	var s ProvisioningState
	if err := json.Unmarshal([]byte(`"bogus"`), &s); err == nil {
		t.Error("Expected invalid state to fail unmarshaling")
	}
}

func TestRunStatusFor(t *testing.T) {
	if RunStatusFor(StateFinished) != RunStatusSucceeded {
		t.Error("Finished must map to succeeded")
	}
	if RunStatusFor(StateFailedToStart) != RunStatusFailed {
		t.Error("FailedToStart must map to failed")
	}
	if RunStatusFor(StateEnsuringProject) != RunStatusRunning {
		t.Error("Active states must map to running")
	}
}

func TestEngineError(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewPermanentError("project create failed", cause).
		WithCode(ErrCodeCLIFailed).
		WithResource("demo").
		WithOperation("create-project").
		WithDetail("stderr", "boom")

	msg := err.Error()
	for _, part := range []string{"[permanent]", "project create failed", "resource=demo", "operation=create-project", "exit status 1"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Expected %q in %q", part, msg)
		}
	}
	if !errors.Is(err, cause) {
		t.Error("Expected cause to be unwrappable")
	}
	if !errors.Is(err, &EngineError{Class: ErrorClassPermanent, Code: ErrCodeCLIFailed}) {
		t.Error("Expected template match on class and code")
	}
	if IsRetryable(err) {
		t.Error("Permanent errors are not retryable")
	}
	if GetErrorCode(errors.Join(errors.New("outer"), err)) != ErrCodeCLIFailed {
		t.Error("Expected code to be found through the chain")
	}

	v := NewValidationError("component type required")
	if v.Error() != "[permanent] component type required" {
		t.Errorf("Unexpected message %q", v.Error())
	}
}

func TestComponentDescriptor_Validate(t *testing.T) {
	tests := []struct {
		name    string
		desc    ComponentDescriptor
		wantErr string
	}{
		{"missing name", ComponentDescriptor{Type: "t", Metadata: map[string]any{"k": "v"}}, "component name required"},
		{"missing type", ComponentDescriptor{Name: "c", Metadata: map[string]any{"k": "v"}}, "component type required"},
		{"no metadata", ComponentDescriptor{Name: "c", Type: "t"}, "component metadata required"},
		{"only nil metadata", ComponentDescriptor{Name: "c", Type: "t", Metadata: map[string]any{"k": nil}}, "component metadata required"},
		{"valid", ComponentDescriptor{Name: "c", Type: "t", Metadata: map[string]any{"k": "v", "n": nil}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected %q, got %v", tt.wantErr, err)
			}
			if !HasCode(err, ErrCodeValidation) {
				t.Errorf("Expected validation code, got %q", GetErrorCode(err))
			}
		})
	}
}

func TestTypedComponents(t *testing.T) {
	ps := DiagridPubSub{Name: "pubsub", PubSub: "shop-activity"}.Descriptor()
	if ps.Type != ComponentTypeDiagridPubSub {
		t.Errorf("Unexpected type %s", ps.Type)
	}
	if keys := ps.MetadataKeys(); len(keys) != 1 || keys[0] != "pubsub" {
		t.Errorf("Expected only pubsub metadata, got %v", keys)
	}

	st := DiagridStateStore{
		Name:               "statestore",
		State:              "inventory-store",
		OutboxPublishTopic: "orders",
		OutboxPubSub:       "shop-activity",
	}.Descriptor()
	if st.Type != ComponentTypeDiagridState {
		t.Errorf("Unexpected type %s", st.Type)
	}
	keys := st.MetadataKeys()
	expected := []string{"outboxPublishTopic", "outboxPubsub", "state"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, keys)
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("Key %d: expected %s, got %s", i, expected[i], keys[i])
		}
	}
	if err := st.Validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}
}
