package graph

import (
	"testing"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chainDefinition() *core.AgentDefinition {
	return testutil.NewDefinitionBuilder("agent-1").
		Input("in").
		Inference("llm", "{{input}}").
		Output("out").
		Edge("in", "llm", "input").
		Edge("llm", "out", "input").
		Build()
}

func TestValidate_Chain(t *testing.T) {
	assert.NoError(t, Validate(chainDefinition()))
}

func TestValidate_EmptyDefinition(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").Build()

	assert.ErrorIs(t, Validate(def), ErrEmptyDefinition)
}

func TestValidate_UnknownEdgeTarget(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").
		Input("in").
		Edge("in", "ghost", "input").
		Build()

	var unknownErr *UnknownNodeError
	require.ErrorAs(t, Validate(def), &unknownErr)
	assert.Equal(t, "target", unknownErr.Edge)
	assert.Equal(t, "ghost", unknownErr.Node)
}

func TestValidate_Cycle(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").
		Inference("a", "").
		Inference("b", "").
		Edge("a", "b", "input").
		Edge("b", "a", "input").
		Build()

	var cycleErr *CycleError
	require.ErrorAs(t, Validate(def), &cycleErr)
	assert.Equal(t, "a", cycleErr.Node)
}

func TestValidate_SelfLoop(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").
		Inference("a", "").
		Edge("a", "a", "input").
		Build()

	var cycleErr *CycleError
	require.ErrorAs(t, Validate(def), &cycleErr)
	assert.Equal(t, "a", cycleErr.Node)
}

func TestValidate_ReservedSeedKeyIsLegalSource(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").
		Inference("llm", "{{input}}").
		Output("out").
		Edge(core.InitialInputKey, "llm", "input").
		Edge("llm", "out", "input").
		Build()

	assert.NoError(t, Validate(def))
	// The seed edge is not a dependency; llm stays an entry node.
	assert.Equal(t, []string{"llm"}, EntryNodes(def))

	order, err := TopologicalOrder(def)
	require.NoError(t, err)
	assert.Equal(t, []string{"llm", "out"}, order)
}

func TestValidate_ReservedNodeID(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").
		Input(core.InitialInputKey).
		Build()

	assert.ErrorIs(t, Validate(def), ErrReservedNodeID)
}

func TestEntryNodes(t *testing.T) {
	// An input node stays an entry point even with an incoming edge.
	def := testutil.NewDefinitionBuilder("agent-1").
		Inference("pre", "").
		Input("in").
		Output("out").
		Edge("pre", "in", "input").
		Edge("in", "out", "input").
		Build()

	assert.Equal(t, []string{"pre", "in"}, EntryNodes(def))
}

func TestTopologicalOrder_Chain(t *testing.T) {
	order, err := TopologicalOrder(chainDefinition())

	require.NoError(t, err)
	assert.Equal(t, []string{"in", "llm", "out"}, order)
}

func TestTopologicalOrder_TieBreakFollowsNodeArray(t *testing.T) {
	// Diamond: in feeds both branches; branch order must follow the node
	// array, not edge insertion order.
	def := testutil.NewDefinitionBuilder("agent-1").
		Input("in").
		Inference("left", "").
		Inference("right", "").
		Output("out").
		Edge("in", "right", "input").
		Edge("in", "left", "input").
		Edge("left", "out", "input").
		Edge("right", "out", "input").
		Build()

	order, err := TopologicalOrder(def)

	require.NoError(t, err)
	assert.Equal(t, []string{"in", "left", "right", "out"}, order)
}

func TestTopologicalOrder_DependenciesPrecedeDependents(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").
		Output("out").
		Inference("llm", "").
		Input("in").
		Edge("in", "llm", "input").
		Edge("llm", "out", "input").
		Build()

	order, err := TopologicalOrder(def)

	require.NoError(t, err)
	position := map[string]int{}
	for i, id := range order {
		position[id] = i
	}
	for _, e := range def.Edges {
		assert.Less(t, position[e.Source], position[e.Target])
	}
}

func TestTopologicalOrder_Cycle(t *testing.T) {
	def := testutil.NewDefinitionBuilder("agent-1").
		Inference("a", "").
		Inference("b", "").
		Inference("c", "").
		Edge("a", "b", "input").
		Edge("b", "c", "input").
		Edge("c", "b", "input").
		Build()

	_, err := TopologicalOrder(def)

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, "b", cycleErr.Node)
}
