package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/graph"
	"github.com/hupe1980/agentgraph/logging"
	"github.com/hupe1980/agentgraph/model"
)

// Defaults applied when Options leave the corresponding field zero.
const (
	// DefaultInferenceTimeout bounds a single inference call.
	DefaultInferenceTimeout = 120 * time.Second
	// DefaultClearDelay is the grace window a terminal state stays readable
	// before the store resets it to idle.
	DefaultClearDelay = 500 * time.Millisecond
)

// AlreadyRunningError reports a refused second run for an agent that still
// has one in flight.
type AlreadyRunningError struct {
	AgentID string
}

// Error implements error.
func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("agent %s already has a running workflow", e.AgentID)
}

// ProgressFunc observes incremental progress: it is invoked after every
// successfully executed node.
type ProgressFunc func(nodeID string, result any)

// Options holds dependency + configuration overrides passed to New().
type Options struct {
	// StateStore shares run state with other components; a private store is
	// created when nil.
	StateStore *StateStore
	// Notifier receives node start/finish and failure callbacks.
	Notifier core.Notifier
	// Logger receives structured execution logs.
	Logger logging.Logger
	// InferenceTimeout bounds each inference call.
	InferenceTimeout time.Duration
	// ClearDelay is the grace window before terminal state is cleared.
	ClearDelay time.Duration
}

// Executor runs agent definitions: it validates and orders the graph,
// executes nodes sequentially in topological order threading values along
// edges, tracks progress in the state store, and supports cooperative
// per-agent cancellation. Public methods are safe for concurrent use;
// distinct agents' runs interleave freely, the same agent is single-flight.
type Executor struct {
	chats    core.ChatStore
	runner   model.Runner
	states   *StateStore
	handlers map[core.NodeType]Handler
	notifier core.Notifier
	logger   logging.Logger

	inferenceTimeout time.Duration
	clearDelay       time.Duration

	mu   sync.Mutex
	runs map[string]*runState
}

// runState is the mutable per-run bookkeeping shared with the cancellation
// path.
type runState struct {
	mu        sync.Mutex
	cancelled bool
	run       *RunContext
}

func (rs *runState) cancel() {
	rs.mu.Lock()
	rs.cancelled = true
	rs.mu.Unlock()
}

func (rs *runState) isCancelled() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.cancelled
}

// New constructs an Executor with the given collaborators and optional
// overrides.
func New(chats core.ChatStore, runner model.Runner, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Notifier:         core.NoOpNotifier{},
		Logger:           logging.NoOpLogger{},
		InferenceTimeout: DefaultInferenceTimeout,
		ClearDelay:       DefaultClearDelay,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.StateStore == nil {
		opts.StateStore = NewStateStore()
	}

	return &Executor{
		chats:            chats,
		runner:           runner,
		states:           opts.StateStore,
		handlers:         defaultHandlers(),
		notifier:         opts.Notifier,
		logger:           opts.Logger,
		inferenceTimeout: opts.InferenceTimeout,
		clearDelay:       opts.ClearDelay,
		runs:             make(map[string]*runState),
	}
}

// RegisterHandler installs (or replaces) the handler for a node type.
func (e *Executor) RegisterHandler(nodeType core.NodeType, handler Handler) {
	e.handlers[nodeType] = handler
}

// States exposes the execution state store for observers.
func (e *Executor) States() *StateStore { return e.states }

// IsRunning reports whether the agent has a live run.
func (e *Executor) IsRunning(agentID string) bool { return e.states.IsRunning(agentID) }

// ExecuteWorkflow validates and runs a definition with the given initial
// input, which is seeded under the reserved input key and is typically a
// core.TriggerContext or a plain string. The optional onNodeExecuted is
// invoked after each node. It returns the value of the first output node in
// topological order, or nil when the definition has none.
//
// Definition errors (cycle, unknown edge endpoint, reserved node id) surface
// before the run transitions to running. A node failure aborts the run,
// lands in the state store's Error field and is returned. Cancellation is
// not a failure: remaining nodes are skipped and nil is returned.
func (e *Executor) ExecuteWorkflow(ctx context.Context, def *core.AgentDefinition, initialInput any, onNodeExecuted ProgressFunc) (any, error) {
	if err := graph.Validate(def); err != nil {
		return nil, fmt.Errorf("invalid definition %s: %w", def.ID, err)
	}

	order, err := graph.TopologicalOrder(def)
	if err != nil {
		return nil, fmt.Errorf("invalid definition %s: %w", def.ID, err)
	}

	rs, err := e.beginRun(def, initialInput)
	if err != nil {
		return nil, err
	}
	defer e.endRun(def.ID)

	return e.executeOrdered(ctx, def, order, rs, onNodeExecuted)
}

// CancelWorkflow requests cooperative cancellation of the agent's live run.
// The checked flag stops further node dispatch; an in-flight inference call
// is additionally resolved early through the runner's cancel signal. The
// state store reports isRunning false immediately, regardless of whether
// the in-flight call has unwound yet. Returns false when no run is live.
func (e *Executor) CancelWorkflow(agentID string) bool {
	e.mu.Lock()
	rs, ok := e.runs[agentID]
	e.mu.Unlock()
	if !ok {
		return false
	}

	rs.cancel()

	if requestID := rs.run.requestID(); requestID != "" && e.runner != nil {
		e.runner.Cancel(requestID)
	}

	state := e.states.Get(agentID)
	state.IsRunning = false
	state.CurrentNodeID = ""
	e.states.Set(agentID, state)
	e.states.ClearAfter(agentID, e.clearDelay)

	e.logger.Info("workflow cancelled agent_id=%s", agentID)
	return true
}

func (e *Executor) beginRun(def *core.AgentDefinition, initialInput any) (*runState, error) {
	e.mu.Lock()
	if _, live := e.runs[def.ID]; live || e.states.IsRunning(def.ID) {
		e.mu.Unlock()
		return nil, &AlreadyRunningError{AgentID: def.ID}
	}

	rs := &runState{run: &RunContext{
		AgentID:          def.ID,
		ChatID:           chatIDOf(initialInput),
		Initial:          initialInput,
		Chats:            e.chats,
		Runner:           e.runner,
		InferenceTimeout: e.inferenceTimeout,
	}}
	e.runs[def.ID] = rs
	e.mu.Unlock()

	// Outside the lock: Set notifies observers synchronously and observers
	// may call back into the executor.
	e.states.Set(def.ID, core.WorkflowExecutionState{IsRunning: true, ExecutedNodes: []string{}})
	return rs, nil
}

func (e *Executor) endRun(agentID string) {
	e.mu.Lock()
	delete(e.runs, agentID)
	e.mu.Unlock()
}

func (e *Executor) executeOrdered(ctx context.Context, def *core.AgentDefinition, order []string, rs *runState, onNodeExecuted ProgressFunc) (any, error) {
	values := map[string]any{InitialInputKey: rs.run.Initial}
	executed := make([]string, 0, len(order))
	cancelled := false

	for _, nodeID := range order {
		if rs.isCancelled() || ctx.Err() != nil {
			cancelled = true
			break
		}

		node, ok := def.NodeByID(nodeID)
		if !ok {
			// Unreachable: order only contains definition node ids.
			return nil, e.failRun(def.ID, executed, fmt.Errorf("node %s not in definition", nodeID))
		}

		e.states.Set(def.ID, core.WorkflowExecutionState{
			IsRunning:     true,
			CurrentNodeID: node.ID,
			ExecutedNodes: executed,
		})
		e.notify(func(n core.Notifier) { n.NodeStarted(def.ID, node.ID) })

		handler, ok := e.handlers[node.Type]
		if !ok {
			return nil, e.failRun(def.ID, executed, fmt.Errorf("no handler for node type %q", node.Type))
		}

		inputs := gatherInputs(def, node.ID, values)

		start := time.Now()
		value, err := handler(ctx, node, inputs, rs.run)
		if err != nil {
			// A pending inference resolved through CancelWorkflow unwinds as
			// ErrCancelled; that is a clean stop, not a failure.
			if rs.isCancelled() && errors.Is(err, model.ErrCancelled) {
				cancelled = true
				break
			}
			e.logger.Error("node execution failed agent_id=%s node_id=%s duration=%s error=%v", def.ID, node.ID, time.Since(start), err)
			return nil, e.failRun(def.ID, executed, err)
		}
		e.logger.Debug("node executed agent_id=%s node_id=%s node_type=%s duration=%s", def.ID, node.ID, node.Type, time.Since(start))

		values[node.ID] = value
		executed = append(executed, node.ID)

		e.states.Set(def.ID, core.WorkflowExecutionState{
			IsRunning:     true,
			ExecutedNodes: executed,
		})
		e.notify(func(n core.Notifier) { n.NodeFinished(def.ID, node.ID, value) })
		if onNodeExecuted != nil {
			onNodeExecuted(node.ID, value)
		}
	}

	e.states.Set(def.ID, core.WorkflowExecutionState{
		IsRunning:     false,
		ExecutedNodes: executed,
	})
	e.states.ClearAfter(def.ID, e.clearDelay)

	if cancelled {
		return nil, nil
	}
	return outputValue(def, order, values), nil
}

// failRun records the terminal error, schedules the grace-window clear and
// notifies the failure sink. Partial node outputs are discarded by returning
// only the error.
func (e *Executor) failRun(agentID string, executed []string, err error) error {
	e.states.Set(agentID, core.WorkflowExecutionState{
		IsRunning:     false,
		ExecutedNodes: executed,
		Error:         err.Error(),
	})
	e.states.ClearAfter(agentID, e.clearDelay)
	e.notify(func(n core.Notifier) { n.WorkflowFailed(agentID, err) })
	return err
}

// notify shields execution from a misbehaving Notifier.
func (e *Executor) notify(fn func(core.Notifier)) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("notifier panicked panic=%v", r)
		}
	}()
	fn(e.notifier)
}

// gatherInputs reads each incoming edge's source value, already computed by
// topological order, and maps it under the handle's input key. The seed
// value backs edges from the reserved input key.
func gatherInputs(def *core.AgentDefinition, nodeID string, values map[string]any) map[string]any {
	inputs := make(map[string]any)
	for _, edge := range def.IncomingEdges(nodeID) {
		if v, ok := values[edge.Source]; ok {
			inputs[InputKeyForHandle(edge.TargetHandle)] = v
		}
	}
	return inputs
}

// outputValue locates the first output-type node in topological order and
// returns its recorded value. No output node is not an error; the result is
// simply nil.
func outputValue(def *core.AgentDefinition, order []string, values map[string]any) any {
	for _, nodeID := range order {
		if node, ok := def.NodeByID(nodeID); ok && node.Type == core.NodeTypeOutput {
			return values[nodeID]
		}
	}
	return nil
}

// chatIDOf extracts the chat scope from the initial input when it is a
// trigger context.
func chatIDOf(initialInput any) string {
	switch v := initialInput.(type) {
	case core.TriggerContext:
		return v.ChatID
	case *core.TriggerContext:
		if v != nil {
			return v.ChatID
		}
	}
	return ""
}
