package graph

import (
	"errors"
	"fmt"
)

// Errors.
var (
	// ErrEmptyDefinition is returned when a definition has no nodes at all.
	ErrEmptyDefinition = errors.New("definition has no nodes")
	// ErrReservedNodeID is returned when a node id collides with the
	// reserved initial-input key.
	ErrReservedNodeID = errors.New("node id collides with the reserved input key")
)

// CycleError reports that the definition's graph contains a cycle. Node is
// the node that was revisited while still being visited.
type CycleError struct {
	Node string
}

// Error implements error.
func (e *CycleError) Error() string {
	return fmt.Sprintf("definition contains a cycle through node %q", e.Node)
}

// UnknownNodeError reports an edge endpoint that references no node in the
// same definition.
type UnknownNodeError struct {
	Edge string // "source" or "target"
	Node string
}

// Error implements error.
func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("edge %s references unknown node %q", e.Edge, e.Node)
}
