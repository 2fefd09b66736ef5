package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgraph/bus"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/workflow"
)

// satisfiedTriggers is the fixed table mapping an event type onto the set of
// trigger types it satisfies.
var satisfiedTriggers = map[core.EventType][]core.TriggerType{
	core.EventUserMessageBefore:      {core.TriggerBeforeUserMessage, core.TriggerBeforeAnyMessage},
	core.EventUserMessageAfter:       {core.TriggerAfterUserMessage, core.TriggerAfterAnyMessage},
	core.EventCharacterMessageBefore: {core.TriggerBeforeCharacterMessage, core.TriggerBeforeAnyMessage},
	core.EventCharacterMessageAfter:  {core.TriggerAfterCharacterMessage, core.TriggerAfterAnyMessage},
	core.EventAllParticipantsAfter:   {core.TriggerAfterAllParticipants},
}

// counterEligible is the fixed subset of event types that drive
// every_x_messages counters: message completions, user or character.
var counterEligible = map[core.EventType]bool{
	core.EventUserMessageAfter:      true,
	core.EventCharacterMessageAfter: true,
}

// Invoker is the slice of the workflow executor the manager depends on.
type Invoker interface {
	ExecuteWorkflow(ctx context.Context, def *core.AgentDefinition, initialInput any, onNodeExecuted workflow.ProgressFunc) (any, error)
	IsRunning(agentID string) bool
}

// Options holds dependency + configuration overrides passed to NewManager().
type Options struct {
	// Logger receives per-evaluation debug lines and dispatch failures.
	Logger logging.Logger
}

// Manager evaluates chat lifecycle events against the enabled agents of the
// active chat and starts matching workflows. One counter map exists per chat
// session; switching the active chat resets it. Safe for concurrent use.
type Manager struct {
	executor Invoker
	chats    core.ChatStore
	logger   logging.Logger

	mu           sync.Mutex
	activeChatID string
	agents       []*core.AgentDefinition
	counters     map[string]int
}

// NewManager constructs a Manager with optional overrides.
func NewManager(executor Invoker, chats core.ChatStore, optFns ...func(o *Options)) *Manager {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{
		executor: executor,
		chats:    chats,
		logger:   opts.Logger,
		counters: make(map[string]int),
	}
}

// Attach subscribes the manager to a bus, unscoped so chat switches do not
// require resubscription. The returned function detaches it.
func (m *Manager) Attach(b *bus.Bus) bus.UnsubscribeFunc {
	return b.Subscribe(m.HandleEvent, "")
}

// SetActiveChat switches the chat whose agents are matched. Changing the
// active chat id clears every agent's message counter.
func (m *Manager) SetActiveChat(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.activeChatID != chatID {
		m.activeChatID = chatID
		m.counters = make(map[string]int)
	}
}

// SetAgents replaces the enabled agent definitions for the active chat. The
// authoring subsystem hands these over whenever the enabled participant set
// changes. Counters of agents no longer present are dropped.
func (m *Manager) SetAgents(defs []*core.AgentDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = append([]*core.AgentDefinition(nil), defs...)

	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		known[def.ID] = true
	}
	for agentID := range m.counters {
		if !known[agentID] {
			delete(m.counters, agentID)
		}
	}
}

// MessageCount returns the current every_x_messages counter for an agent.
func (m *Manager) MessageCount(agentID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[agentID]
}

// HandleEvent matches one event against every enabled agent and fires the
// matching, non-running ones. A failure while matching one agent never
// prevents evaluation of the remaining agents.
func (m *Manager) HandleEvent(ev core.Event) {
	if ev.IsSystemSourced() {
		return
	}

	m.mu.Lock()
	activeChatID := m.activeChatID
	agents := m.agents
	m.mu.Unlock()

	if activeChatID == "" || ev.ChatID != activeChatID {
		m.logger.Debug("trigger manager ignored event for inactive chat event_chat=%s active_chat=%s", ev.ChatID, activeChatID)
		return
	}

	satisfied := make(map[core.TriggerType]bool)
	for _, t := range satisfiedTriggers[ev.Type] {
		satisfied[t] = true
	}

	for _, def := range agents {
		if err := m.evaluateAgent(def, ev, satisfied); err != nil {
			m.logger.Error("trigger evaluation failed agent_id=%s event_type=%s error=%v", def.ID, ev.Type, err)
		}
	}
}

// evaluateAgent applies the matching algorithm to a single agent. A panic in
// matching surfaces as an error so sibling agents still get evaluated.
func (m *Manager) evaluateAgent(def *core.AgentDefinition, ev core.Event, satisfied map[core.TriggerType]bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating agent %s: %v", def.ID, r)
		}
	}()

	triggerType := def.Trigger.Type
	switch {
	case triggerType == core.TriggerManual:
		return nil
	case triggerType == core.TriggerEveryXMessages:
		if !counterEligible[ev.Type] {
			return nil
		}
		if !m.bumpCounter(def) {
			return nil
		}
	default:
		if !satisfied[triggerType] {
			return nil
		}
	}

	// Single-flight: an agent with a live run never gets a second one.
	if m.executor.IsRunning(def.ID) {
		m.logger.Debug("trigger skipped running agent agent_id=%s event_type=%s", def.ID, ev.Type)
		return nil
	}

	m.fire(def, m.buildContext(def, ev))
	return nil
}

// bumpCounter increments the agent's counter and reports whether the
// threshold was reached, resetting it to zero when so.
func (m *Manager) bumpCounter(def *core.AgentDefinition) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[def.ID]++
	if m.counters[def.ID] < def.Trigger.Threshold() {
		return false
	}
	m.counters[def.ID] = 0
	return true
}

// buildContext assembles the TriggerContext handed to the executor as the
// run's initial input. ParticipantID prefers the event's participant and
// falls back to the agent's own id.
func (m *Manager) buildContext(def *core.AgentDefinition, ev core.Event) core.TriggerContext {
	participantID := ev.ParticipantID
	if participantID == "" {
		participantID = def.ID
	}

	var userCharacterID string
	if m.chats != nil {
		if id, err := m.chats.UserCharacterID(context.Background(), ev.ChatID); err == nil {
			userCharacterID = id
		}
	}

	return core.TriggerContext{
		Type:            def.Trigger.Type,
		ChatID:          ev.ChatID,
		Message:         ev.Message,
		ParticipantID:   participantID,
		UserCharacterID: userCharacterID,
		MessageCount:    ev.MessageCount,
	}
}

// fire starts the workflow as a detached task so the bus never blocks on
// agent execution. Failures are caught here; the executor has already routed
// them through the notification collaborator.
func (m *Manager) fire(def *core.AgentDefinition, triggerCtx core.TriggerContext) {
	m.logger.Info("trigger fired agent_id=%s trigger_type=%s chat_id=%s", def.ID, def.Trigger.Type, triggerCtx.ChatID)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("workflow dispatch panicked agent_id=%s panic=%v", def.ID, r)
			}
		}()

		if _, err := m.executor.ExecuteWorkflow(context.Background(), def, triggerCtx, nil); err != nil {
			m.logger.Error("workflow execution failed agent_id=%s error=%v", def.ID, err)
		}
	}()
}
