package core

// NodeType enumerates the fixed node vocabulary understood by the workflow
// executor. Dispatch is by lookup table, not inheritance, so adding a type
// means registering a handler for it.
type NodeType string

const (
	// NodeTypeInput returns the run's seeded initial input verbatim. An
	// input node is always an entry point, even with no incoming edges.
	NodeTypeInput NodeType = "input"
	// NodeTypeHistory fetches prior chat messages from the chat-data
	// collaborator, filtered per node config.
	NodeTypeHistory NodeType = "history"
	// NodeTypeInference builds a prompt from config and inputs and invokes
	// the inference collaborator.
	NodeTypeInference NodeType = "inference"
	// NodeTypeOutput passes through its sole input; it marks the workflow
	// result.
	NodeTypeOutput NodeType = "output"
)

// InitialInputKey is the reserved pseudo-node id the run's initial input is
// seeded under. Edges may name it as their source to wire the seed into any
// node; real node ids must not collide with it.
const InitialInputKey = "__input__"

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NodeConfig carries the type-specific configuration of a node. Only the
// fields relevant to the node's type are consulted.
type NodeConfig struct {
	// PromptTemplate is the inference prompt with {{handle}} placeholders
	// substituted from the node's wired inputs.
	PromptTemplate string `json:"prompt_template,omitempty"`
	// SystemPrompt optionally prepends instructions to an inference call.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// ModelSpec names the model an inference node should run against.
	ModelSpec string `json:"model_spec,omitempty"`
	// Parameters holds provider-specific sampling parameters.
	Parameters map[string]any `json:"parameters,omitempty"`
	// Tools declares the functions an inference node exposes to the model.
	Tools []ToolDefinition `json:"tools,omitempty"`
	// MessageLimit caps how many recent messages a history node returns.
	// Zero means the collaborator's default.
	MessageLimit int `json:"message_limit,omitempty"`
	// ChapterID restricts a history node to one chapter's messages.
	ChapterID string `json:"chapter_id,omitempty"`
	// CharacterID restricts a history node to one participant's messages.
	CharacterID string `json:"character_id,omitempty"`
	// IncludeSystem includes system messages in history results.
	IncludeSystem bool `json:"include_system,omitempty"`
}

// Node is a unit of computation within an agent definition. IDs are unique
// within one definition.
type Node struct {
	ID     string     `json:"id"`
	Type   NodeType   `json:"type"`
	Config NodeConfig `json:"config"`
}

// Edge is a data dependency between two nodes: the target consumes the
// source's output under the semantic input name in TargetHandle (for example
// "input", "history" or "systemPrompt").
type Edge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"source_handle,omitempty"`
	TargetHandle string `json:"target_handle"`
}

// AgentDefinition is the static description of an agent: its computation
// graph and the trigger configuration deciding when it runs. Definitions are
// authored externally; the engine treats them as read-only input per run.
type AgentDefinition struct {
	ID      string        `json:"id"`
	Name    string        `json:"name"`
	Nodes   []Node        `json:"nodes"`
	Edges   []Edge        `json:"edges"`
	Trigger TriggerConfig `json:"trigger"`
}

// NodeByID returns the node with the given id, or false when absent.
func (d *AgentDefinition) NodeByID(id string) (Node, bool) {
	for _, n := range d.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// IncomingEdges returns the edges targeting the given node, in definition
// order.
func (d *AgentDefinition) IncomingEdges(nodeID string) []Edge {
	var edges []Edge
	for _, e := range d.Edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}
