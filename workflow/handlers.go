package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/internal/util"
	"github.com/hupe1980/agentgraph/model"
)

// InitialInputKey is the reserved pseudo-node id the run's initial input is
// seeded under. Edges may source it directly; node ids must not collide with
// it.
const InitialInputKey = core.InitialInputKey

// handleInputKeys is the fixed lookup table mapping edge target handles to
// the named inputs node handlers read. Unlisted handles pass through as-is.
var handleInputKeys = map[string]string{
	"input":         "input",
	"in":            "input",
	"history":       "history",
	"messages":      "history",
	"systemPrompt":  "systemPrompt",
	"system_prompt": "systemPrompt",
	"context":       "context",
}

// InputKeyForHandle resolves an edge's target handle to the input name the
// target node reads it under.
func InputKeyForHandle(handle string) string {
	if key, ok := handleInputKeys[handle]; ok {
		return key
	}
	return handle
}

// RunContext carries the per-run scope a node handler may consult: the run's
// identity, the seeded initial input and the injected collaborators.
// Handlers must not mutate shared graph state; they read node config and the
// computed inputs map and return a value.
type RunContext struct {
	AgentID string
	ChatID  string
	Initial any

	Chats  core.ChatStore
	Runner model.Runner

	InferenceTimeout time.Duration

	mu               sync.Mutex
	currentRequestID string
}

// trackRequest records the id of the in-flight inference request so the
// cancellation path can resolve it early.
func (rc *RunContext) trackRequest(requestID string) {
	rc.mu.Lock()
	rc.currentRequestID = requestID
	rc.mu.Unlock()
}

func (rc *RunContext) clearRequest() {
	rc.mu.Lock()
	rc.currentRequestID = ""
	rc.mu.Unlock()
}

func (rc *RunContext) requestID() string {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.currentRequestID
}

// Handler executes one node given its wired inputs. Returning an error
// aborts the entire run.
type Handler func(ctx context.Context, node core.Node, inputs map[string]any, run *RunContext) (any, error)

// defaultHandlers returns the built-in handler set for the fixed node
// vocabulary.
func defaultHandlers() map[core.NodeType]Handler {
	return map[core.NodeType]Handler{
		core.NodeTypeInput:     handleInput,
		core.NodeTypeHistory:   handleHistory,
		core.NodeTypeInference: handleInference,
		core.NodeTypeOutput:    handleOutput,
	}
}

// handleInput returns the run's seeded initial input verbatim.
func handleInput(_ context.Context, _ core.Node, _ map[string]any, run *RunContext) (any, error) {
	return run.Initial, nil
}

// handleHistory fetches prior chat messages filtered per node config.
func handleHistory(ctx context.Context, node core.Node, _ map[string]any, run *RunContext) (any, error) {
	if run.Chats == nil {
		return nil, fmt.Errorf("history node %s: no chat store configured", node.ID)
	}

	messages, err := run.Chats.RecentMessages(ctx, run.ChatID, core.HistoryQuery{
		ChapterID:     node.Config.ChapterID,
		CharacterID:   node.Config.CharacterID,
		Limit:         node.Config.MessageLimit,
		IncludeSystem: node.Config.IncludeSystem,
	})
	if err != nil {
		return nil, fmt.Errorf("history node %s: %w", node.ID, err)
	}
	return messages, nil
}

// handleInference builds a prompt from config and inputs and invokes the
// inference collaborator. The call is bounded by its own timeout independent
// of the overall run; elapsing it is a failure, not a silent empty value.
func handleInference(ctx context.Context, node core.Node, inputs map[string]any, run *RunContext) (any, error) {
	if run.Runner == nil {
		return nil, fmt.Errorf("inference node %s: no inference runner configured", node.ID)
	}

	template := node.Config.PromptTemplate
	if template == "" {
		template = "{{input}}"
	}
	prompt := util.RenderPrompt(template, stringInputs(inputs))

	systemPrompt := node.Config.SystemPrompt
	if systemPrompt == "" {
		if v, ok := inputs["systemPrompt"]; ok {
			systemPrompt = formatValue(v)
		}
	}

	var history []core.Message
	if v, ok := inputs["history"]; ok {
		if messages, ok := v.([]core.Message); ok {
			history = messages
		}
	}

	requestID := core.NewID()
	run.trackRequest(requestID)
	defer run.clearRequest()

	timeout := run.InferenceTimeout
	if timeout <= 0 {
		timeout = DefaultInferenceTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	text, err := run.Runner.Run(ctx, model.Request{
		RequestID:    requestID,
		ModelSpec:    node.Config.ModelSpec,
		SystemPrompt: systemPrompt,
		Prompt:       prompt,
		Messages:     history,
		Parameters:   node.Config.Parameters,
		Tools:        node.Config.Tools,
	})
	if err != nil {
		return nil, fmt.Errorf("inference node %s: %w", node.ID, err)
	}
	return text, nil
}

// handleOutput passes through the value mapped to its sole input; it is a
// named marker for "this is the result".
func handleOutput(_ context.Context, _ core.Node, inputs map[string]any, _ *RunContext) (any, error) {
	if v, ok := inputs["input"]; ok {
		return v, nil
	}
	// A single wired input under another handle still passes through.
	if len(inputs) == 1 {
		for _, v := range inputs {
			return v, nil
		}
	}
	return nil, nil
}

// stringInputs renders every input value to its string form for placeholder
// substitution.
func stringInputs(inputs map[string]any) map[string]string {
	rendered := make(map[string]string, len(inputs))
	for k, v := range inputs {
		rendered[k] = formatValue(v)
	}
	return rendered
}

// formatValue flattens a node value into prompt text. Message lists render
// one line per message; trigger contexts render their message content.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []core.Message:
		lines := make([]string, 0, len(val))
		for _, m := range val {
			author := m.CharacterID
			if author == "" {
				author = string(m.Type)
			}
			lines = append(lines, fmt.Sprintf("%s: %s", author, m.Content))
		}
		return strings.Join(lines, "\n")
	case core.TriggerContext:
		if val.Message != nil {
			return val.Message.Content
		}
		return ""
	case *core.TriggerContext:
		if val != nil && val.Message != nil {
			return val.Message.Content
		}
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
