package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicAdapter implements Client on top of the official Anthropic SDK.
// Tool calls arrive as native tool_use content blocks, so no response-text
// parsing is involved.
type AnthropicAdapter struct {
	client  anthropic.Client
	retry   RetryPolicy
	timeout time.Duration
}

// AnthropicOption configures an AnthropicAdapter.
type AnthropicOption func(*AnthropicAdapter)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) AnthropicOption {
	return func(a *AnthropicAdapter) { a.retry = policy }
}

// WithTimeout bounds each Complete call, including retries. Exceeding it
// surfaces as a RequestTimeoutError.
func WithTimeout(d time.Duration) AnthropicOption {
	return func(a *AnthropicAdapter) { a.timeout = d }
}

// NewAnthropicAdapter creates an adapter. If apiKey is empty the SDK reads
// ANTHROPIC_API_KEY from the environment.
func NewAnthropicAdapter(apiKey string, opts ...AnthropicOption) *AnthropicAdapter {
	var reqOpts []option.RequestOption
	if apiKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(apiKey))
	}
	a := &AnthropicAdapter{
		client:  anthropic.NewClient(reqOpts...),
		retry:   DefaultRetryPolicy(),
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider identifier.
func (a *AnthropicAdapter) Name() string { return "anthropic" }

// Complete sends the conversation to the Messages API and translates the
// result back into the unified Response.
func (a *AnthropicAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	params, err := buildMessageParams(req)
	if err != nil {
		return nil, err
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	msg, err := Retry(ctx, a.retry, func(ctx context.Context) (*anthropic.Message, error) {
		m, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return nil, a.translateError(err)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return translateMessage(msg), nil
}

func buildMessageParams(req Request) (anthropic.MessageNewParams, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			params.Messages = append(params.Messages,
				anthropic.NewUserMessage(anthropic.NewTextBlock(msg.TextContent())))
		case RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			for _, part := range msg.Content {
				switch part.Kind {
				case ContentText:
					if part.Text != "" {
						blocks = append(blocks, anthropic.NewTextBlock(part.Text))
					}
				case ContentToolCall:
					blocks = append(blocks,
						anthropic.NewToolUseBlock(part.ToolCall.ID, part.ToolCall.Arguments, part.ToolCall.Name))
				}
			}
			if len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
			}
		case RoleTool:
			// The Messages API expects tool results in the user message that
			// follows the assistant's tool_use blocks.
			var blocks []anthropic.ContentBlockParamUnion
			for _, part := range msg.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					r := part.ToolResult
					blocks = append(blocks, anthropic.NewToolResultBlock(r.ToolCallID, r.Content, r.IsError))
				}
			}
			if len(blocks) > 0 {
				params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
			}
		default:
			return anthropic.MessageNewParams{}, &ConfigurationError{SDKError: SDKError{
				Message: "unsupported message role " + string(msg.Role),
			}}
		}
	}

	for _, tool := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: toolInputSchema(tool.Parameters),
		}})
	}

	return params, nil
}

func toolInputSchema(parameters map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{}
	if props, ok := parameters["properties"]; ok {
		schema.Properties = props
	}
	switch required := parameters["required"].(type) {
	case []string:
		schema.Required = required
	case []any:
		for _, field := range required {
			if s, ok := field.(string); ok {
				schema.Required = append(schema.Required, s)
			}
		}
	}
	return schema
}

func translateMessage(msg *anthropic.Message) *Response {
	var parts []ContentPart
	for _, block := range msg.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			parts = append(parts, TextPart(v.Text))
		case anthropic.ToolUseBlock:
			parts = append(parts, ToolCallPart(v.ID, v.Name, json.RawMessage(v.JSON.Input.Raw())))
		}
	}
	return &Response{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Message:    Message{Role: RoleAssistant, Content: parts},
		StopReason: string(msg.StopReason),
		Usage: Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
	}
}

func (a *AnthropicAdapter) translateError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return ErrorFromStatusCode(apierr.StatusCode, a.Name(), apierr.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestTimeoutError{SDKError: SDKError{Message: "anthropic request timed out", Cause: err}}
	}
	if errors.Is(err, context.Canceled) {
		return &AbortError{SDKError: SDKError{Message: "anthropic request cancelled", Cause: err}}
	}
	return &NetworkError{SDKError: SDKError{Message: "anthropic request failed", Cause: err}}
}
