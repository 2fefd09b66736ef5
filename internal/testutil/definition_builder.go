package testutil

import (
	"github.com/hupe1980/agentgraph/core"
)

// DefinitionBuilder provides a fluent helper for constructing agent
// definitions in tests.
// Example:
//
//	def := NewDefinitionBuilder("agent-1").
//		Input("in").Inference("llm", "{{input}}").Output("out").
//		Edge("in", "llm", "input").Edge("llm", "out", "input").
//		Build()
//
// Chain only the parts you need; sensible defaults are applied.
type DefinitionBuilder struct {
	def core.AgentDefinition
}

// NewDefinitionBuilder creates a builder for an agent with the given id.
func NewDefinitionBuilder(agentID string) *DefinitionBuilder {
	return &DefinitionBuilder{def: core.AgentDefinition{
		ID:      agentID,
		Name:    agentID,
		Trigger: core.TriggerConfig{Type: core.TriggerManual},
	}}
}

// Trigger sets the trigger configuration (chainable).
func (b *DefinitionBuilder) Trigger(triggerType core.TriggerType, messageCount int) *DefinitionBuilder {
	b.def.Trigger = core.TriggerConfig{Type: triggerType, MessageCount: messageCount}
	return b
}

// Node appends a node of an arbitrary type and config (chainable).
func (b *DefinitionBuilder) Node(id string, nodeType core.NodeType, config core.NodeConfig) *DefinitionBuilder {
	b.def.Nodes = append(b.def.Nodes, core.Node{ID: id, Type: nodeType, Config: config})
	return b
}

// Input appends an input node (chainable).
func (b *DefinitionBuilder) Input(id string) *DefinitionBuilder {
	return b.Node(id, core.NodeTypeInput, core.NodeConfig{})
}

// History appends a history node with a message limit (chainable).
func (b *DefinitionBuilder) History(id string, limit int) *DefinitionBuilder {
	return b.Node(id, core.NodeTypeHistory, core.NodeConfig{MessageLimit: limit})
}

// Inference appends an inference node with a prompt template (chainable).
func (b *DefinitionBuilder) Inference(id, template string) *DefinitionBuilder {
	return b.Node(id, core.NodeTypeInference, core.NodeConfig{PromptTemplate: template})
}

// Output appends an output node (chainable).
func (b *DefinitionBuilder) Output(id string) *DefinitionBuilder {
	return b.Node(id, core.NodeTypeOutput, core.NodeConfig{})
}

// Edge appends an edge wiring source into target under the given handle
// (chainable).
func (b *DefinitionBuilder) Edge(source, target, handle string) *DefinitionBuilder {
	b.def.Edges = append(b.def.Edges, core.Edge{Source: source, Target: target, TargetHandle: handle})
	return b
}

// Build returns the assembled definition.
func (b *DefinitionBuilder) Build() *core.AgentDefinition {
	def := b.def
	return &def
}
