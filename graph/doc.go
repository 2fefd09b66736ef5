// Package graph validates agent definitions and computes deterministic
// execution orders over their node/edge graphs. Validation and ordering run
// before any node executes: a definition whose edges reference unknown nodes
// or whose graph contains a cycle never partially runs. The reserved
// initial-input key is a legal edge source; such edges carry the run's seed
// and impose no ordering dependency.
package graph
