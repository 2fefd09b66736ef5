package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/agentgraph/core"
)

// Errors.
var (
	// ErrCancelled resolves a pending inference request that was cancelled
	// through Runner.Cancel. Cancellation is not a timeout: the pending call
	// unwinds immediately instead of waiting out its deadline.
	ErrCancelled = errors.New("inference request cancelled")
	// ErrTimeout resolves a pending inference request whose own deadline
	// elapsed before the provider responded.
	ErrTimeout = errors.New("inference request timed out")
)

// ToolDefinition declaratively exposes a callable function to the model. It
// aliases the core type so node configs and requests share one declaration.
type ToolDefinition = core.ToolDefinition

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object (minimal subset expected).
type FunctionDefinition = core.FunctionDefinition

// Request captures the normalized inference input produced by workflow nodes.
type Request struct {
	// RequestID correlates this call with Cancel / Resolved. The caller
	// assigns it; adapters must honor it.
	RequestID    string           `json:"request_id"`
	ModelSpec    string           `json:"model_spec,omitempty"`
	SystemPrompt string           `json:"system_prompt,omitempty"`
	Prompt       string           `json:"prompt"`
	Messages     []core.Message   `json:"messages,omitempty"`
	Parameters   map[string]any   `json:"parameters,omitempty"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
}

// Runner is the minimal interface workflow nodes need to drive generation.
// Run blocks until the provider responds, the context expires, or the
// request is cancelled; in the latter cases it returns ErrTimeout or
// ErrCancelled respectively (possibly wrapped).
type Runner interface {
	Run(ctx context.Context, req Request) (string, error)

	// Cancel resolves a pending request as cancelled. It reports whether a
	// request with that id was in flight.
	Cancel(requestID string) bool

	// Resolved returns a channel closed once the request with the given id
	// has resolved (completed or cancelled). Unknown ids yield an already
	// closed channel.
	Resolved(requestID string) <-chan struct{}
}

// CancelRegistry tracks in-flight requests so Cancel can resolve a specific
// pending call early. Provider adapters embed one and derive each request's
// context through Track. Safe for concurrent use.
type CancelRegistry struct {
	mu      sync.Mutex
	pending map[string]context.CancelCauseFunc
	done    map[string]chan struct{}
}

// NewCancelRegistry constructs an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{
		pending: make(map[string]context.CancelCauseFunc),
		done:    make(map[string]chan struct{}),
	}
}

// Track derives a cancellable context for the request and registers it. The
// returned release function must be deferred by the caller; it marks the
// request resolved and closes its Resolved channel.
func (r *CancelRegistry) Track(ctx context.Context, requestID string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	r.pending[requestID] = cancel
	doneCh, ok := r.done[requestID]
	if !ok {
		doneCh = make(chan struct{})
		r.done[requestID] = doneCh
	}
	r.mu.Unlock()

	return ctx, func() {
		r.mu.Lock()
		delete(r.pending, requestID)
		delete(r.done, requestID)
		r.mu.Unlock()
		cancel(nil)
		close(doneCh)
	}
}

// Cancel resolves a pending request as cancelled. It reports whether the
// request was in flight.
func (r *CancelRegistry) Cancel(requestID string) bool {
	r.mu.Lock()
	cancel, ok := r.pending[requestID]
	r.mu.Unlock()

	if !ok {
		return false
	}
	cancel(ErrCancelled)
	return true
}

// Resolved returns a channel closed once the request has resolved. Unknown
// ids yield an already closed channel.
func (r *CancelRegistry) Resolved(requestID string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.done[requestID]; ok {
		return ch
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

// ResolveErr maps a request context's terminal condition onto the package's
// sentinel errors. It returns nil when the context is still live.
func ResolveErr(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); errors.Is(cause, ErrCancelled) {
		return ErrCancelled
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}

// MockRunner is a lightweight in-memory Runner useful for tests & examples.
// It echoes prompts by default, supports canned responses, scripted failures
// and blocking calls that only resolve through Cancel or context expiry.
type MockRunner struct {
	registry *CancelRegistry

	mu        sync.Mutex
	responses map[string]string
	transform func(prompt string) string
	failWith  error
	block     bool
	calls     []Request
}

// NewMockRunner constructs a MockRunner echoing prompts verbatim.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		registry:  NewCancelRegistry(),
		responses: make(map[string]string),
		transform: func(prompt string) string { return fmt.Sprintf("Mock response to: %s", prompt) },
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockRunner) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetTransform replaces the default fallback used for unknown prompts.
func (m *MockRunner) SetTransform(fn func(prompt string) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transform = fn
}

// FailWith makes every subsequent Run return err.
func (m *MockRunner) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Block makes every subsequent Run hang until cancelled or the context
// expires. Used to exercise cancellation paths.
func (m *MockRunner) Block(block bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.block = block
}

// Calls returns the requests seen so far, in order.
func (m *MockRunner) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

// Run implements Runner.
func (m *MockRunner) Run(ctx context.Context, req Request) (string, error) {
	ctx, release := m.registry.Track(ctx, req.RequestID)
	defer release()

	m.mu.Lock()
	m.calls = append(m.calls, req)
	failWith := m.failWith
	block := m.block
	response, canned := m.responses[req.Prompt]
	transform := m.transform
	m.mu.Unlock()

	if failWith != nil {
		return "", failWith
	}

	if block {
		<-ctx.Done()
		return "", ResolveErr(ctx)
	}

	if err := ResolveErr(ctx); err != nil {
		return "", err
	}

	if canned {
		return response, nil
	}
	return transform(req.Prompt), nil
}

// Cancel implements Runner.
func (m *MockRunner) Cancel(requestID string) bool { return m.registry.Cancel(requestID) }

// Resolved implements Runner.
func (m *MockRunner) Resolved(requestID string) <-chan struct{} {
	return m.registry.Resolved(requestID)
}
