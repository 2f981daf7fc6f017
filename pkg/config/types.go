package config

import (
	"fmt"
	"strings"
	"time"
)

// Topology declares the Catalyst resources of one project. It is the decoded form of
// both CUE and YAML topology files.
type Topology struct {
	// Version is the topology format version the file was written for. Empty means
	// the current version.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Project is the Catalyst project every other resource belongs to.
	Project ProjectConfig `json:"project" yaml:"project"`

	// Apps are the application identities, in declaration order.
	Apps []AppConfig `json:"apps,omitempty" yaml:"apps,omitempty" validate:"unique=Name,dive"`

	// PubSubs are the managed pub/sub brokers.
	PubSubs []PubSubConfig `json:"pubsubs,omitempty" yaml:"pubsubs,omitempty" validate:"unique=Name,dive"`

	// KvStores are the managed key-value stores.
	KvStores []KvStoreConfig `json:"kv_stores,omitempty" yaml:"kv_stores,omitempty" validate:"unique=Name,dive"`

	// Components are generic Dapr components.
	Components []ComponentConfig `json:"components,omitempty" yaml:"components,omitempty" validate:"dive"`

	// DiagridPubSubs are pub/sub components bound to a Catalyst broker.
	DiagridPubSubs []DiagridPubSubConfig `json:"diagrid_pubsubs,omitempty" yaml:"diagrid_pubsubs,omitempty" validate:"dive"`

	// DiagridStateStores are state store components bound to a Catalyst KV store.
	DiagridStateStores []DiagridStateStoreConfig `json:"diagrid_state_stores,omitempty" yaml:"diagrid_state_stores,omitempty" validate:"dive"`
}

// ProjectConfig describes the Catalyst project.
type ProjectConfig struct {
	// Name is the project name (default: aspire).
	Name string `json:"name" yaml:"name" validate:"required,max=63"`

	// Region is the optional hosting region.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	DeployManagedPubSub   bool `json:"deploy_managed_pubsub,omitempty" yaml:"deploy_managed_pubsub,omitempty"`
	DeployManagedKv       bool `json:"deploy_managed_kv,omitempty" yaml:"deploy_managed_kv,omitempty"`
	EnableManagedWorkflow bool `json:"enable_managed_workflow,omitempty" yaml:"enable_managed_workflow,omitempty"`
	DisableAppTunnels     bool `json:"disable_app_tunnels,omitempty" yaml:"disable_app_tunnels,omitempty"`
}

// AppConfig describes an application identity.
type AppConfig struct {
	// Name is the app id.
	Name string `json:"name" yaml:"name" validate:"required,max=63"`

	// Port is the local port the app listens on.
	Port int `json:"port,omitempty" yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`

	// Protocol is the app channel protocol (http, grpc).
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty" validate:"omitempty,oneof=http grpc"`
}

// PubSubConfig describes a managed pub/sub broker.
type PubSubConfig struct {
	Name   string   `json:"name" yaml:"name" validate:"required,max=63"`
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// KvStoreConfig describes a managed key-value store.
type KvStoreConfig struct {
	Name   string   `json:"name" yaml:"name" validate:"required,max=63"`
	Scopes []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
}

// ComponentConfig describes a generic Dapr component.
type ComponentConfig struct {
	Name     string         `json:"name" yaml:"name" validate:"required,max=63"`
	Type     string         `json:"type" yaml:"type" validate:"required"`
	Scopes   []string       `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	Metadata map[string]any `json:"metadata" yaml:"metadata" validate:"required,min=1"`
}

// DiagridPubSubConfig describes a pubsub.diagrid component.
type DiagridPubSubConfig struct {
	Name       string   `json:"name" yaml:"name" validate:"required,max=63"`
	Scopes     []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	PubSub     string   `json:"pubsub" yaml:"pubsub" validate:"required"`
	ConsumerID string   `json:"consumer_id,omitempty" yaml:"consumer_id,omitempty"`
}

// DiagridStateStoreConfig describes a state.diagrid component.
type DiagridStateStoreConfig struct {
	Name                          string   `json:"name" yaml:"name" validate:"required,max=63"`
	Scopes                        []string `json:"scopes,omitempty" yaml:"scopes,omitempty"`
	State                         string   `json:"state" yaml:"state" validate:"required"`
	KeyPrefix                     string   `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
	OutboxDiscardWhenMissingState string   `json:"outbox_discard_when_missing_state,omitempty" yaml:"outbox_discard_when_missing_state,omitempty"`
	OutboxPublishPubSub           string   `json:"outbox_publish_pubsub,omitempty" yaml:"outbox_publish_pubsub,omitempty"`
	OutboxPublishTopic            string   `json:"outbox_publish_topic,omitempty" yaml:"outbox_publish_topic,omitempty"`
	OutboxPubSub                  string   `json:"outbox_pubsub,omitempty" yaml:"outbox_pubsub,omitempty"`
}

// ParsedTopology is the result of loading topology sources.
type ParsedTopology struct {
	// Topology is the decoded topology. It is nil when Errors is non-empty.
	Topology *Topology `json:"topology,omitempty"`

	// SourceFiles are the files that were parsed.
	SourceFiles []string `json:"source_files"`

	// ParsedAt is when the topology was parsed.
	ParsedAt time.Time `json:"parsed_at"`

	// Errors contains any parse or validation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Err returns the collected errors as a single error, or nil.
func (p *ParsedTopology) Err() error {
	if len(p.Errors) == 0 {
		return nil
	}
	return ValidationErrors(p.Errors)
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the path to the offending value (e.g., "topology.apps.0.port").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning).
	Severity string `json:"severity"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", e.Line, e.Column)
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors is a list of validation errors reported together.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("invalid topology: %s", strings.Join(msgs, "; "))
}
