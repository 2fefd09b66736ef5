package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/agentgraph/chat"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/testutil"
	"github.com/hupe1980/agentgraph/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeInvoker records workflow dispatches without running anything.
type fakeInvoker struct {
	mu          sync.Mutex
	running     map[string]bool
	panicOnScan map[string]bool
	runs        []core.TriggerContext
	runAgents   []string
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{running: map[string]bool{}, panicOnScan: map[string]bool{}}
}

func (f *fakeInvoker) ExecuteWorkflow(_ context.Context, def *core.AgentDefinition, initialInput any, _ workflow.ProgressFunc) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runAgents = append(f.runAgents, def.ID)
	if tc, ok := initialInput.(core.TriggerContext); ok {
		f.runs = append(f.runs, tc)
	}
	return nil, nil
}

func (f *fakeInvoker) IsRunning(agentID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOnScan[agentID] {
		panic("broken agent state")
	}
	return f.running[agentID]
}

func (f *fakeInvoker) firedAgents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runAgents...)
}

func (f *fakeInvoker) contexts() []core.TriggerContext {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.TriggerContext(nil), f.runs...)
}

func waitForFires(t *testing.T, f *fakeInvoker, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.firedAgents()) == n
	}, time.Second, time.Millisecond)
}

func afterUserEvent(chatID string) core.Event {
	return core.NewEvent(core.EventUserMessageAfter, chatID)
}

func newTestManager(invoker Invoker, defs ...*core.AgentDefinition) *Manager {
	m := NewManager(invoker, chat.NewInMemoryStore())
	m.SetActiveChat("chat-1")
	m.SetAgents(defs)
	return m
}

func agentWithTrigger(id string, triggerType core.TriggerType, messageCount int) *core.AgentDefinition {
	return testutil.NewDefinitionBuilder(id).
		Trigger(triggerType, messageCount).
		Input("in").Output("out").
		Edge("in", "out", "input").
		Build()
}

func TestHandleEvent_MatchingTriggerFires(t *testing.T) {
	invoker := newFakeInvoker()
	m := newTestManager(invoker, agentWithTrigger("agent-1", core.TriggerAfterUserMessage, 0))

	m.HandleEvent(afterUserEvent("chat-1"))

	waitForFires(t, invoker, 1)
	assert.Equal(t, []string{"agent-1"}, invoker.firedAgents())
}

func TestHandleEvent_SatisfiedTriggerTable(t *testing.T) {
	// One agent per event-driven trigger type; each event type must fire
	// exactly its matching rows and nothing else.
	tests := []struct {
		eventType core.EventType
		fired     []string
	}{
		{core.EventUserMessageBefore, []string{"before_user", "before_any"}},
		{core.EventUserMessageAfter, []string{"after_user", "after_any"}},
		{core.EventCharacterMessageBefore, []string{"before_char", "before_any"}},
		{core.EventCharacterMessageAfter, []string{"after_char", "after_any"}},
		{core.EventAllParticipantsAfter, []string{"all_participants"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			invoker := newFakeInvoker()
			m := newTestManager(invoker,
				agentWithTrigger("before_user", core.TriggerBeforeUserMessage, 0),
				agentWithTrigger("after_user", core.TriggerAfterUserMessage, 0),
				agentWithTrigger("before_char", core.TriggerBeforeCharacterMessage, 0),
				agentWithTrigger("after_char", core.TriggerAfterCharacterMessage, 0),
				agentWithTrigger("before_any", core.TriggerBeforeAnyMessage, 0),
				agentWithTrigger("after_any", core.TriggerAfterAnyMessage, 0),
				agentWithTrigger("all_participants", core.TriggerAfterAllParticipants, 0),
			)

			m.HandleEvent(core.NewEvent(tt.eventType, "chat-1"))

			waitForFires(t, invoker, len(tt.fired))
			assert.ElementsMatch(t, tt.fired, invoker.firedAgents())

			// No further agent fires late.
			time.Sleep(20 * time.Millisecond)
			assert.Len(t, invoker.firedAgents(), len(tt.fired))
		})
	}
}

func TestHandleEvent_SystemSourceNeverFires(t *testing.T) {
	invoker := newFakeInvoker()
	m := newTestManager(invoker,
		agentWithTrigger("agent-1", core.TriggerAfterUserMessage, 0),
		agentWithTrigger("agent-2", core.TriggerAfterAnyMessage, 0),
	)

	m.HandleEvent(afterUserEvent("chat-1").WithSource(core.SourceSystem))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, invoker.firedAgents())
}

func TestHandleEvent_ManualNeverFiresFromEvents(t *testing.T) {
	invoker := newFakeInvoker()
	m := newTestManager(invoker, agentWithTrigger("agent-1", core.TriggerManual, 0))

	m.HandleEvent(afterUserEvent("chat-1"))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, invoker.firedAgents())
}

func TestHandleEvent_InactiveChatIgnored(t *testing.T) {
	invoker := newFakeInvoker()
	m := newTestManager(invoker, agentWithTrigger("agent-1", core.TriggerAfterUserMessage, 0))

	m.HandleEvent(afterUserEvent("chat-2"))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, invoker.firedAgents())
}

func TestHandleEvent_SingleFlightSkipsRunningAgent(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.running["agent-1"] = true
	m := newTestManager(invoker, agentWithTrigger("agent-1", core.TriggerAfterUserMessage, 0))

	m.HandleEvent(afterUserEvent("chat-1"))

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, invoker.firedAgents())
}

func TestHandleEvent_EveryXMessagesCounter(t *testing.T) {
	invoker := newFakeInvoker()
	m := newTestManager(invoker, agentWithTrigger("agent-1", core.TriggerEveryXMessages, 3))

	m.HandleEvent(afterUserEvent("chat-1"))
	m.HandleEvent(afterUserEvent("chat-1"))
	assert.Equal(t, 2, m.MessageCount("agent-1"))

	// A non-counter-eligible event does not consume a count.
	m.HandleEvent(core.NewEvent(core.EventUserMessageBefore, "chat-1"))
	assert.Equal(t, 2, m.MessageCount("agent-1"))

	m.HandleEvent(afterUserEvent("chat-1"))

	waitForFires(t, invoker, 1)
	assert.Equal(t, []string{"agent-1"}, invoker.firedAgents())
	assert.Equal(t, 0, m.MessageCount("agent-1"))
}

func TestHandleEvent_MixedTriggers(t *testing.T) {
	// Agent A fires on every after_user_message; agent B needs two
	// counter-eligible events. Two events: A twice, B once.
	invoker := newFakeInvoker()
	m := newTestManager(invoker,
		agentWithTrigger("a", core.TriggerAfterUserMessage, 0),
		agentWithTrigger("b", core.TriggerEveryXMessages, 2),
	)

	m.HandleEvent(afterUserEvent("chat-1"))
	m.HandleEvent(afterUserEvent("chat-1"))

	waitForFires(t, invoker, 3)
	fired := invoker.firedAgents()
	counts := map[string]int{}
	for _, id := range fired {
		counts[id]++
	}
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, counts)
}

func TestHandleEvent_AgentFailureIsolated(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.panicOnScan["bad"] = true
	m := newTestManager(invoker,
		agentWithTrigger("bad", core.TriggerAfterUserMessage, 0),
		agentWithTrigger("good", core.TriggerAfterUserMessage, 0),
	)

	m.HandleEvent(afterUserEvent("chat-1"))

	waitForFires(t, invoker, 1)
	assert.Equal(t, []string{"good"}, invoker.firedAgents())
}

func TestSetActiveChat_ResetsCounters(t *testing.T) {
	invoker := newFakeInvoker()
	m := newTestManager(invoker, agentWithTrigger("agent-1", core.TriggerEveryXMessages, 3))

	m.HandleEvent(afterUserEvent("chat-1"))
	m.HandleEvent(afterUserEvent("chat-1"))
	require.Equal(t, 2, m.MessageCount("agent-1"))

	m.SetActiveChat("chat-2")
	assert.Equal(t, 0, m.MessageCount("agent-1"))

	// Re-selecting the same chat keeps the (now empty) counters.
	m.SetActiveChat("chat-2")
	assert.Equal(t, 0, m.MessageCount("agent-1"))
}

func TestBuildContext_ParticipantFallback(t *testing.T) {
	store := chat.NewInMemoryStore()
	store.SetUserCharacter("chat-1", "char-9")

	invoker := newFakeInvoker()
	m := NewManager(invoker, store)
	m.SetActiveChat("chat-1")
	m.SetAgents([]*core.AgentDefinition{agentWithTrigger("agent-1", core.TriggerAfterUserMessage, 0)})

	msg := &core.Message{Content: "hi"}
	m.HandleEvent(afterUserEvent("chat-1").WithParticipant("char-2").WithMessage(msg))
	waitForFires(t, invoker, 1)

	contexts := invoker.contexts()
	require.Len(t, contexts, 1)
	assert.Equal(t, "char-2", contexts[0].ParticipantID)
	assert.Equal(t, "char-9", contexts[0].UserCharacterID)
	assert.Equal(t, msg, contexts[0].Message)
	assert.Equal(t, core.TriggerAfterUserMessage, contexts[0].Type)

	// Without an event participant the agent's own id is used.
	m.HandleEvent(afterUserEvent("chat-1"))
	waitForFires(t, invoker, 2)
	assert.Equal(t, "agent-1", invoker.contexts()[1].ParticipantID)
}
