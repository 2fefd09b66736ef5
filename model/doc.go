// Package model defines the inference collaborator consumed by workflow
// nodes: a normalized request shape, the Runner interface with per-request
// cancellation, and a MockRunner for tests. Provider adapters live in the
// openai and anthropic subpackages.
package model
