// Package policy checks a resource graph against Rego policies before it is
// provisioned.
//
// Policies are evaluated with OPA against a PolicyInput whose graph field is the
// engine.GraphSnapshot about to be provisioned. Every policy exposes its violations as
// a deny set; an element is either a message string or an object with message,
// severity and resource fields:
//
//	package custom.region
//
//	import rego.v1
//
//	deny contains violation if {
//	    not input.graph.project.region
//	    violation := {"message": "project must declare a region", "severity": "error"}
//	}
//
// Built-in policies cover naming, scopes that reference declared apps, component
// metadata, and references from Diagrid components and state store outboxes to
// declared pub/subs and KV stores. Extra policies are loaded from .rego files, JSON
// policy definitions and JSON bundles, and can be hot reloaded with Engine.Watch.
//
// Violations with severity error or critical block provisioning: Engine.Check returns
// an engine error with code POLICY_DENIED.
package policy
