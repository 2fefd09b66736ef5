// Package openai provides a model.Runner implementation backed by the OpenAI
// Chat Completions API. It adapts AgentGraph's normalized Request into the
// SDK's message format, honors per-request cancellation through the shared
// cancel registry, and returns the completion text.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
	"github.com/openai/openai-go"
)

// Options configure the OpenAI runner adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Runner wraps the OpenAI Chat Completions API behind the generic
// model.Runner interface.
type Runner struct {
	client   *openai.Client
	registry *model.CancelRegistry
	opts     Options
}

// NewRunner creates a new OpenAI runner using the official client.
func NewRunner(optFns ...func(o *Options)) *Runner {
	client := openai.NewClient()
	return NewRunnerFromClient(&client, optFns...)
}

// NewRunnerFromClient creates a new OpenAI runner from an existing client.
func NewRunnerFromClient(client *openai.Client, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{client: client, registry: model.NewCancelRegistry(), opts: opts}
}

// Run implements model.Runner.
func (r *Runner) Run(ctx context.Context, req model.Request) (string, error) {
	ctx, release := r.registry.Track(ctx, req.RequestID)
	defer release()

	params := r.buildParams(req)

	resp, err := r.client.Chat.Completions.New(ctx, params)
	if err != nil {
		if resolved := model.ResolveErr(ctx); resolved != nil && !errors.Is(resolved, context.Canceled) {
			return "", resolved
		}
		return "", fmt.Errorf("openai api error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Cancel implements model.Runner.
func (r *Runner) Cancel(requestID string) bool { return r.registry.Cancel(requestID) }

// Resolved implements model.Runner.
func (r *Runner) Resolved(requestID string) <-chan struct{} {
	return r.registry.Resolved(requestID)
}

// buildParams assembles the request parameters: system prompt first, then
// prior chat history, then the rendered prompt as the closing user message.
func (r *Runner) buildParams(req model.Request) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion

	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch msg.Type {
		case core.MessageTypeSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case core.MessageTypeUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		default:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	modelName := r.opts.Model
	if req.ModelSpec != "" {
		modelName = req.ModelSpec
	}

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               modelName,
		Temperature:         openai.Float(temperature(req, r.opts.Temperature)),
		MaxCompletionTokens: openai.Int(r.opts.MaxCompletionTokens),
	}
	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}
	params.Tools = tools
	return params
}

func temperature(req model.Request, fallback float64) float64 {
	if v, ok := req.Parameters["temperature"].(float64); ok {
		return v
	}
	return fallback
}
