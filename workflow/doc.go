// Package workflow implements the execution engine for agent definitions:
// the executor that orders and runs a definition's nodes, the per-node-type
// handler set, cooperative per-agent cancellation, and the process-wide
// execution state store observers read live run status from.
//
// Scheduling is single-flight per agent and strictly sequential within one
// run: nodes execute one at a time in deterministic topological order, with
// values threaded along edges. Distinct agents' runs interleave freely.
package workflow
