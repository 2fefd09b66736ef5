// Package agentgraph provides a high-level façade over the trigger/dispatch
// and workflow-execution engine for chat-embedded agents. Most applications
// interact with this package by:
//  1. Creating an AgentGraph via New() (injecting the chat store and the
//     inference runner, optionally a notifier and logger)
//  2. Selecting the active chat and handing over the enabled agent
//     definitions whenever the participant set changes
//  3. Publishing chat lifecycle events; matching agents run automatically
//
// The façade delegates trigger matching to trigger.Manager and execution to
// workflow.Executor while keeping setup and usage ergonomics concise. All
// defaults are safe for local development and testing; production embedders
// typically supply a durable ChatStore and a structured logger.
package agentgraph

import (
	"context"

	"github.com/hupe1980/agentgraph/bus"
	"github.com/hupe1980/agentgraph/chat"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
	"github.com/hupe1980/agentgraph/trigger"
	"github.com/hupe1980/agentgraph/workflow"
)

// Options configures the AgentGraph instance.
type Options struct {
	// ChatStore supplies chat data to history nodes and trigger contexts
	// (defaults to an in-memory implementation if not provided).
	ChatStore core.ChatStore

	// Runner executes inference calls for inference nodes (defaults to a
	// MockRunner echoing prompts; supply model/openai or model/anthropic
	// for real generation).
	Runner model.Runner

	// Notifier receives node start/finish and failure callbacks.
	Notifier core.Notifier

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Executor configuration (inference timeout, state grace delay).
	ExecutorOptions []func(o *workflow.Options)
}

// AgentGraph is the high-level façade aggregating the event bus, the trigger
// manager and the workflow executor.
type AgentGraph struct {
	opts     Options
	bus      *bus.Bus
	executor *workflow.Executor
	manager  *trigger.Manager
	detach   bus.UnsubscribeFunc
}

// New creates a new AgentGraph instance with optional overrides. Any unset
// collaborator is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *AgentGraph {
	opts := Options{
		ChatStore: chat.NewInMemoryStore(),
		Runner:    model.NewMockRunner(),
		Notifier:  core.NoOpNotifier{},
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	executorOpts := append([]func(o *workflow.Options){func(o *workflow.Options) {
		o.Notifier = opts.Notifier
		o.Logger = opts.Logger
	}}, opts.ExecutorOptions...)

	executor := workflow.New(opts.ChatStore, opts.Runner, executorOpts...)

	manager := trigger.NewManager(executor, opts.ChatStore, func(o *trigger.Options) {
		o.Logger = opts.Logger
	})

	b := bus.New(func(o *bus.Options) {
		o.Logger = opts.Logger
	})

	g := &AgentGraph{opts: opts, bus: b, executor: executor, manager: manager}
	g.detach = manager.Attach(b)
	return g
}

// Close detaches the trigger manager from the bus. Runs already in flight
// finish (or get cancelled) independently.
func (g *AgentGraph) Close() { g.detach() }

// Publish delivers a chat lifecycle event to every matching subscriber.
func (g *AgentGraph) Publish(event core.Event) { g.bus.Publish(event) }

// Subscribe registers an additional event handler, optionally scoped to one
// chat (empty chatID receives every chat's events).
func (g *AgentGraph) Subscribe(handler bus.Handler, chatID string) bus.UnsubscribeFunc {
	return g.bus.Subscribe(handler, chatID)
}

// SetActiveChat switches the chat whose agents react to events, resetting
// message counters when the chat actually changes.
func (g *AgentGraph) SetActiveChat(chatID string) { g.manager.SetActiveChat(chatID) }

// SetAgents replaces the enabled agent definitions for the active chat.
func (g *AgentGraph) SetAgents(defs []*core.AgentDefinition) { g.manager.SetAgents(defs) }

// ExecuteWorkflow runs a definition directly with the given initial input
// (a core.TriggerContext or a plain string), bypassing trigger matching.
func (g *AgentGraph) ExecuteWorkflow(ctx context.Context, def *core.AgentDefinition, initialInput any, onNodeExecuted workflow.ProgressFunc) (any, error) {
	return g.executor.ExecuteWorkflow(ctx, def, initialInput, onNodeExecuted)
}

// RunAgent fires a manually triggered agent, building the trigger context a
// bus match would have produced.
func (g *AgentGraph) RunAgent(ctx context.Context, def *core.AgentDefinition, chatID string) (any, error) {
	var userCharacterID string
	if id, err := g.opts.ChatStore.UserCharacterID(ctx, chatID); err == nil {
		userCharacterID = id
	}

	return g.executor.ExecuteWorkflow(ctx, def, core.TriggerContext{
		Type:            core.TriggerManual,
		ChatID:          chatID,
		ParticipantID:   def.ID,
		UserCharacterID: userCharacterID,
	}, nil)
}

// CancelWorkflow requests cooperative cancellation of an agent's live run.
func (g *AgentGraph) CancelWorkflow(agentID string) bool {
	return g.executor.CancelWorkflow(agentID)
}

// IsWorkflowRunning reports whether the agent has a live run.
func (g *AgentGraph) IsWorkflowRunning(agentID string) bool {
	return g.executor.IsRunning(agentID)
}

// ExecutionState returns the live run status of an agent, idle when absent.
func (g *AgentGraph) ExecutionState(agentID string) core.WorkflowExecutionState {
	return g.executor.States().Get(agentID)
}

// SubscribeExecutionState registers an observer for per-agent run state
// changes, for any presentation layer to render progress.
func (g *AgentGraph) SubscribeExecutionState(obs workflow.StateObserver) func() {
	return g.executor.States().Subscribe(obs)
}
