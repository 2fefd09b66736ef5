package agentgraph

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentgraph/chat"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/testutil"
	"github.com/hupe1980/agentgraph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func replyAgent(id string, triggerType core.TriggerType) *core.AgentDefinition {
	return testutil.NewDefinitionBuilder(id).
		Trigger(triggerType, 0).
		Input("in").
		Inference("llm", "{{input}}").
		Output("out").
		Edge("in", "llm", "input").
		Edge("llm", "out", "input").
		Build()
}

func TestAgentGraph_EventDrivenRun(t *testing.T) {
	store := chat.NewInMemoryStore()
	runner := model.NewMockRunner()
	runner.AddResponse("hello", "<hello>")

	g := New(func(o *Options) {
		o.ChatStore = store
		o.Runner = runner
	})
	defer g.Close()

	g.SetActiveChat("chat-1")
	g.SetAgents([]*core.AgentDefinition{replyAgent("agent-1", core.TriggerAfterUserMessage)})

	var states []core.WorkflowExecutionState
	unsub := g.SubscribeExecutionState(func(agentID string, state core.WorkflowExecutionState) {
		if agentID == "agent-1" {
			states = append(states, state)
		}
	})
	defer unsub()

	msg := store.AddMessage("chat-1", core.Message{Type: core.MessageTypeUser, Content: "hello"})
	g.Publish(core.NewEvent(core.EventUserMessageAfter, "chat-1").WithMessage(&msg))

	require.Eventually(t, func() bool {
		if len(states) == 0 {
			return false
		}
		last := states[len(states)-1]
		return !last.IsRunning && len(last.ExecutedNodes) == 3
	}, time.Second, time.Millisecond)

	last := states[len(states)-1]
	assert.Equal(t, []string{"in", "llm", "out"}, last.ExecutedNodes)
	assert.Empty(t, last.Error)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "hello", calls[0].Prompt)
}

func TestAgentGraph_SystemEventsDoNotCascade(t *testing.T) {
	runner := model.NewMockRunner()
	g := New(func(o *Options) { o.Runner = runner })
	defer g.Close()

	g.SetActiveChat("chat-1")
	g.SetAgents([]*core.AgentDefinition{replyAgent("agent-1", core.TriggerAfterAnyMessage)})

	// The event a finished agent generation would raise.
	g.Publish(core.NewEvent(core.EventCharacterMessageAfter, "chat-1").WithSource(core.SourceSystem))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, runner.Calls())
	assert.False(t, g.IsWorkflowRunning("agent-1"))
}

func TestAgentGraph_RunAgentManually(t *testing.T) {
	store := chat.NewInMemoryStore()
	store.SetUserCharacter("chat-1", "char-9")
	runner := model.NewMockRunner()
	runner.SetTransform(func(prompt string) string { return "manual:" + prompt })

	g := New(func(o *Options) {
		o.ChatStore = store
		o.Runner = runner
	})
	defer g.Close()

	def := testutil.NewDefinitionBuilder("agent-1").
		Input("in").
		History("hist", 10).
		Inference("llm", "{{history}}").
		Output("out").
		Edge("hist", "llm", "history").
		Edge("llm", "out", "input").
		Build()

	store.AddMessage("chat-1", core.Message{Type: core.MessageTypeUser, Content: "only line"})

	result, err := g.RunAgent(context.Background(), def, "chat-1")

	require.NoError(t, err)
	assert.Equal(t, "manual:user: only line", result)
}

func TestAgentGraph_CancelWorkflow(t *testing.T) {
	runner := model.NewMockRunner()
	runner.Block(true)

	g := New(func(o *Options) { o.Runner = runner })
	defer g.Close()

	g.SetActiveChat("chat-1")
	g.SetAgents([]*core.AgentDefinition{replyAgent("agent-1", core.TriggerAfterUserMessage)})

	g.Publish(core.NewEvent(core.EventUserMessageAfter, "chat-1"))

	require.Eventually(t, func() bool { return g.IsWorkflowRunning("agent-1") }, time.Second, time.Millisecond)

	require.True(t, g.CancelWorkflow("agent-1"))
	assert.False(t, g.IsWorkflowRunning("agent-1"))
	assert.Empty(t, g.ExecutionState("agent-1").Error)
}
