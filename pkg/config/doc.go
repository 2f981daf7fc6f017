// Package config loads the provisioner's settings and the topology of the Catalyst
// project to provision.
//
// # Topology
//
// A topology declares one project and the apps, pub/subs, KV stores and components
// inside it. It can be written in CUE or YAML. CUE sources are unified with a built-in
// #Topology schema, so defaults (the project name falls back to "aspire") and naming
// rules are applied before decoding:
//
//	package catalyst
//
//	topology: {
//	    project: {name: "orders", deploy_managed_pubsub: true}
//	    apps: [
//	        {name: "order-processor", port: 5001},
//	        {name: "notifications", port: 5002, protocol: "grpc"},
//	    ]
//	    pubsubs: [{name: "pubsub", scopes: ["order-processor", "notifications"]}]
//	    kv_stores: [{name: "kvstore", scopes: ["order-processor"]}]
//	    diagrid_state_stores: [{
//	        name:                  "statestore"
//	        state:                 "kvstore"
//	        outbox_publish_pubsub: "pubsub"
//	        outbox_publish_topic:  "orders"
//	    }]
//	}
//
// An optional version field names the topology format the file was written for; it
// must be a semantic version compatible with TopologyVersion.
//
// Both loaders validate the decoded Topology with struct tags and report every problem
// as a ValidationError with its file and path. Topology.Graph turns a topology into an
// engine.ResourceGraph in declaration order.
//
// # Settings
//
// Settings are read from YAML over DefaultSettings and can be overridden with the
// CATALYST_CLI, CATALYST_DB and CATALYST_LOG_LEVEL environment variables.
package config
