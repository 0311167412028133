// Package workflow implements a dependency-graph workflow engine: a registry
// that validates and stores DAG workflow definitions, a scheduler that runs
// steps concurrently once their dependencies have succeeded, a step executor
// with per-step timeouts, a rollback coordinator that compensates completed
// steps in reverse order when a later step fails, and a bounded in-memory
// execution history store.
//
// The engine has no global state: create independent Registry instances with
// NewRegistry and wire an EventSink to observe lifecycle events.
package workflow
