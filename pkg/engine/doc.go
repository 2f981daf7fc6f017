// Package engine provides the core types of the Catalyst provisioning orchestrator.
//
// # Overview
//
// Before services start, the orchestrator drives a Provisioner through a fixed,
// strictly sequential list of idempotent steps:
//
//  1. Starting - one-time provisioner setup
//  2. Ensuring project - create the cloud project (or find it)
//  3. Selecting project - make it the active context
//  4. Loading project details - resolve the HTTP and gRPC endpoint futures
//  5. Ensuring applications - create each app identity and resolve its credentials
//  6. Ensuring services - create each pub/sub broker
//  7. Ensuring kv stores - probe each KV store and create the missing ones
//  8. Ensuring components - create each generic component
//
// The run ends in Finished, or in the absorbing FailedToStart state as soon as a step
// fails. Nothing is retried and nothing already created is rolled back.
//
// # Resource Graph
//
// ResourceGraph holds the descriptors declared at configuration time and the
// single-assignment futures (Future) that dependent services block on. The graph is
// handed to the orchestrator explicitly; Start seals it and works from an immutable
// GraphSnapshot so late declarations cannot race with provisioning.
//
//	graph := engine.NewResourceGraph(engine.ProjectDescriptor{Name: "demo"})
//	token, _ := graph.AddApp(engine.AppDescriptor{Name: "worker"})
//	_ = graph.AddPubSub("events", engine.PubSubDescriptor{})
//
//	orch := engine.NewOrchestrator(provisioner, engine.OrchestratorOptions{})
//	runID, _ := orch.Start(graph) // returns immediately
//
//	env, err := engine.Environment(ctx, graph, "worker") // blocks until resolved
//
// # Error Classification
//
// EngineError carries a class (transient or permanent) and a code. Validation,
// CLI rejections and malformed CLI output are permanent; cancellation is transient.
package engine
