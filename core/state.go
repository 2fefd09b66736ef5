package core

// WorkflowExecutionState is the live run status of one agent. A single
// instance exists per agent id; only the workflow executor (and the
// cancellation path) mutates it, any observer may read it.
type WorkflowExecutionState struct {
	IsRunning     bool     `json:"is_running"`
	CurrentNodeID string   `json:"current_node_id,omitempty"`
	ExecutedNodes []string `json:"executed_nodes"`
	Error         string   `json:"error,omitempty"`
}

// IdleExecutionState returns the zero-value state reported for agents with
// no tracked run.
func IdleExecutionState() WorkflowExecutionState {
	return WorkflowExecutionState{ExecutedNodes: []string{}}
}

// Clone returns a deep copy so observers never alias the store's slice.
func (s WorkflowExecutionState) Clone() WorkflowExecutionState {
	c := s
	c.ExecutedNodes = append([]string(nil), s.ExecutedNodes...)
	return c
}
