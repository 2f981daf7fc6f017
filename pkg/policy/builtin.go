package policy

import (
	"time"
)

// Names of the built-in policies.
const (
	PolicyResourceNaming     = "resource-naming"
	PolicyScopeReferences    = "scope-references"
	PolicyComponentMetadata  = "component-metadata"
	PolicyComponentReference = "component-references"
	PolicyAppPorts           = "app-ports"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		resourceNamingPolicy(),
		scopeReferencesPolicy(),
		componentMetadataPolicy(),
		componentReferencesPolicy(),
		appPortsPolicy(),
	}
}

func builtin(name, description string, severity Severity, tags []string, rego string) Policy {
	now := time.Now()
	return Policy{
		Name:        name,
		Description: description,
		Severity:    severity,
		Enabled:     true,
		Builtin:     true,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
		Rego:        rego,
	}
}

// resourceNamingPolicy enforces Catalyst naming rules on every declared resource.
func resourceNamingPolicy() Policy {
	return builtin(PolicyResourceNaming,
		"Resource names must be lowercase DNS labels of at most 63 characters",
		SeverityError, []string{"naming", "conventions"}, `package catalyst.policies.naming

import rego.v1

resources contains {"kind": "project", "name": input.graph.project.name}

resources contains {"kind": "app", "name": app.name} if {
	some app in input.graph.apps
}

resources contains {"kind": "pubsub", "name": ps.name} if {
	some ps in input.graph.pubsubs
}

resources contains {"kind": "kvstore", "name": kv.name} if {
	some kv in input.graph.kv_stores
}

resources contains {"kind": "component", "name": c.name} if {
	some c in input.graph.components
}

deny contains violation if {
	some r in resources
	not regex.match("^[a-z0-9]([-a-z0-9]*[a-z0-9])?$", r.name)
	violation := {
		"message": sprintf("%s name '%s' must contain only lowercase letters, numbers and hyphens, and start and end with an alphanumeric character", [r.kind, r.name]),
		"severity": "error",
		"resource": r.name,
	}
}

deny contains violation if {
	some r in resources
	count(r.name) > 63
	violation := {
		"message": sprintf("%s name '%s' exceeds 63 characters", [r.kind, r.name]),
		"severity": "error",
		"resource": r.name,
	}
}
`)
}

// scopeReferencesPolicy requires every scope to name a declared app.
func scopeReferencesPolicy() Policy {
	return builtin(PolicyScopeReferences,
		"Scopes of pub/subs, KV stores and components must reference declared apps",
		SeverityError, []string{"references"}, `package catalyst.policies.scopes

import rego.v1

app_names := {app.name | some app in input.graph.apps}

scoped contains {"kind": "pubsub", "name": ps.name, "scope": scope} if {
	some ps in input.graph.pubsubs
	some scope in ps.scopes
}

scoped contains {"kind": "kvstore", "name": kv.name, "scope": scope} if {
	some kv in input.graph.kv_stores
	some scope in kv.scopes
}

scoped contains {"kind": "component", "name": c.name, "scope": scope} if {
	some c in input.graph.components
	some scope in c.scopes
}

deny contains violation if {
	some s in scoped
	not app_names[s.scope]
	violation := {
		"message": sprintf("%s '%s' is scoped to undeclared app '%s'", [s.kind, s.name, s.scope]),
		"severity": "error",
		"resource": s.name,
	}
}
`)
}

// componentMetadataPolicy requires components to carry at least one metadata value.
func componentMetadataPolicy() Policy {
	return builtin(PolicyComponentMetadata,
		"Components must declare a type and at least one metadata value",
		SeverityError, []string{"components"}, `package catalyst.policies.metadata

import rego.v1

deny contains violation if {
	some c in input.graph.components
	values := [v | some v in c.metadata; v != null]
	count(values) == 0
	violation := {
		"message": sprintf("component '%s' declares no metadata", [c.name]),
		"severity": "error",
		"resource": c.name,
	}
}

deny contains violation if {
	some c in input.graph.components
	trim_space(c.type) == ""
	violation := {
		"message": sprintf("component '%s' declares no type", [c.name]),
		"severity": "error",
		"resource": c.name,
	}
}
`)
}

// componentReferencesPolicy checks that Diagrid components point at declared brokers
// and stores. References to pub/subs are not checked when the project deploys a
// managed pub/sub, since its name is chosen by Catalyst.
func componentReferencesPolicy() Policy {
	return builtin(PolicyComponentReference,
		"Diagrid components and state store outboxes must reference declared pub/subs and KV stores",
		SeverityError, []string{"references", "components"}, `package catalyst.policies.references

import rego.v1

managed_pubsubs := {ps.name | some ps in input.graph.pubsubs}

pubsub_components := {c.name | some c in input.graph.components; startswith(c.type, "pubsub.")}

kv_names := {kv.name | some kv in input.graph.kv_stores}

check_pubsubs if not input.graph.project.deploy_managed_pubsub

check_kv if not input.graph.project.deploy_managed_kv

deny contains violation if {
	check_pubsubs
	some c in input.graph.components
	c.type == "pubsub.diagrid"
	ref := c.metadata.pubsub
	ref != null
	not managed_pubsubs[ref]
	violation := {
		"message": sprintf("component '%s' references undeclared pub/sub '%s'", [c.name, ref]),
		"severity": "error",
		"resource": c.name,
	}
}

deny contains violation if {
	check_kv
	some c in input.graph.components
	c.type == "state.diagrid"
	ref := c.metadata.state
	ref != null
	not kv_names[ref]
	violation := {
		"message": sprintf("component '%s' references undeclared KV store '%s'", [c.name, ref]),
		"severity": "error",
		"resource": c.name,
	}
}

deny contains violation if {
	some c in input.graph.components
	c.type == "state.diagrid"
	some key in ["outboxPublishPubsub", "outboxPubsub"]
	ref := c.metadata[key]
	ref != null
	not managed_pubsubs[ref]
	not pubsub_components[ref]
	violation := {
		"message": sprintf("state store '%s' outbox %s references undeclared pub/sub '%s'", [c.name, key, ref]),
		"severity": "error",
		"resource": c.name,
	}
}
`)
}

// appPortsPolicy warns about apps the local dev proxy cannot route to.
func appPortsPolicy() Policy {
	return builtin(PolicyAppPorts,
		"Apps should declare distinct local ports",
		SeverityWarning, []string{"apps", "dev"}, `package catalyst.policies.ports

import rego.v1

deny contains violation if {
	some app in input.graph.apps
	not app.port
	violation := {
		"message": sprintf("app '%s' declares no port; the dev proxy cannot route to it", [app.name]),
		"severity": "warning",
		"resource": app.name,
	}
}

deny contains violation if {
	some i, a in input.graph.apps
	some j, b in input.graph.apps
	i < j
	a.port
	a.port == b.port
	violation := {
		"message": sprintf("apps '%s' and '%s' share port %d", [a.name, b.name, a.port]),
		"severity": "warning",
		"resource": b.name,
	}
}
`)
}
