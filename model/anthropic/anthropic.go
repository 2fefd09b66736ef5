// Package anthropic provides a model.Runner implementation backed by the
// Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/hupe1980/agentgraph/core"
	"github.com/hupe1980/agentgraph/model"
)

// Options configures the Anthropic runner adapter (temperature, model id,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Runner wraps the Anthropic Messages API behind the generic model.Runner
// interface.
type Runner struct {
	client   *anthropic.Client
	registry *model.CancelRegistry
	opts     Options
}

// NewRunner creates a new Anthropic runner using the official client.
func NewRunner(optFns ...func(o *Options)) *Runner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Runner{client: &client, registry: model.NewCancelRegistry(), opts: opts}
}

// NewRunnerFromClient creates a new Anthropic runner from an existing client.
func NewRunnerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
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

	params := anthropic.MessageNewParams{
		Model:       r.modelFor(req),
		Messages:    r.buildMessages(req),
		MaxTokens:   r.opts.MaxTokens,
		Temperature: anthropic.Float(r.opts.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := r.client.Messages.New(ctx, params)
	if err != nil {
		if resolved := model.ResolveErr(ctx); resolved != nil && !errors.Is(resolved, context.Canceled) {
			return "", resolved
		}
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

// Cancel implements model.Runner.
func (r *Runner) Cancel(requestID string) bool { return r.registry.Cancel(requestID) }

// Resolved implements model.Runner.
func (r *Runner) Resolved(requestID string) <-chan struct{} {
	return r.registry.Resolved(requestID)
}

func (r *Runner) modelFor(req model.Request) anthropic.Model {
	if req.ModelSpec != "" {
		return anthropic.Model(req.ModelSpec)
	}
	return r.opts.Model
}

// buildMessages converts prior chat history plus the rendered prompt into
// Messages API turns. System history collapses into user turns because the
// Messages API only accepts user/assistant roles here.
func (r *Runner) buildMessages(req model.Request) []anthropic.MessageParam {
	var messages []anthropic.MessageParam
	for _, msg := range req.Messages {
		block := anthropic.NewTextBlock(msg.Content)
		switch msg.Type {
		case core.MessageTypeAssistant, core.MessageTypeCharacter:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
	return messages
}

// buildTools converts declared tools into the Messages API tool format. The
// JSON Schema "properties" and "required" fields carry over; everything else
// in the function parameters is ignored.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if params := tool.Function.Parameters; params != nil {
			if properties, ok := params["properties"]; ok {
				inputSchema.Properties = properties
			}
			switch required := params["required"].(type) {
			case []string:
				inputSchema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						inputSchema.Required = append(inputSchema.Required, s)
					}
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
	}
	return anthropicTools
}
