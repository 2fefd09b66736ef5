// Package core provides the foundational domain types and interfaces used by
// AgentGraph. It defines the core abstractions for:
//
//   - Chat lifecycle events (immutable notifications flowing through the bus)
//   - Agent definitions (node/edge graphs plus a trigger configuration)
//   - Trigger contexts (the initial input handed to a workflow run)
//   - Workflow execution state (live run status observable per agent)
//   - Pluggable collaborators for chat data access and notifications
//
// The package intentionally keeps implementation concerns (the event bus,
// trigger matching, graph scheduling, node execution) out of scope, exposing
// small interfaces so the surrounding application can supply its own backends.
// All exported identifiers include concise documentation to aid
// discoverability and external consumption.
package core
