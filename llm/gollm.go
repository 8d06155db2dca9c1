package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter implements Client on top of gollm, giving access to any
// provider gollm supports. gollm's text-generation API has no structured
// tool-use channel, so tool calls are recovered from the response text.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// NewGollmAdapter creates an adapter for the given provider and model. If
// apiKey is empty, gollm reads the provider's key from the environment.
func NewGollmAdapter(provider, apiKey, model string) (*GollmAdapter, error) {
	opts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(4096),
		gollm.SetMaxRetries(0), // retries are handled by this package
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if apiKey != "" {
		opts = append(opts, gollm.SetAPIKey(apiKey))
	}

	inner, err := gollm.NewLLM(opts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm client for provider %s: %w", provider, err)
	}
	return &GollmAdapter{provider: provider, llm: inner, model: model}, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string { return "gollm/" + a.provider }

// Complete flattens the conversation into a gollm prompt, generates, and
// lifts any embedded tool-call JSON back into structured ToolCalls.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt := a.translateRequest(req)

	text, err := Retry(ctx, DefaultRetryPolicy(), func(ctx context.Context) (string, error) {
		out, err := a.llm.Generate(ctx, prompt)
		if err != nil {
			return "", a.translateError(err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	return a.buildResponse(req, text), nil
}

func (a *GollmAdapter) translateRequest(req Request) *gollm.Prompt {
	var userParts []string
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			userParts = append(userParts, msg.TextContent())
		case RoleAssistant:
			if text := msg.TextContent(); text != "" {
				userParts = append(userParts, "[Assistant]: "+text)
			}
			for _, call := range msg.Content {
				if call.Kind == ContentToolCall && call.ToolCall != nil {
					userParts = append(userParts, fmt.Sprintf("[Assistant called %s with %s]",
						call.ToolCall.Name, string(call.ToolCall.Arguments)))
				}
			}
		case RoleTool:
			for _, part := range msg.Content {
				if part.Kind == ContentToolResult && part.ToolResult != nil {
					prefix := "[Tool Result]"
					if part.ToolResult.IsError {
						prefix = "[Tool Error]"
					}
					userParts = append(userParts, prefix+": "+part.ToolResult.Content)
				}
			}
		}
	}

	promptText := strings.Join(userParts, "\n")
	if promptText == "" {
		promptText = "Hello"
	}

	var promptOpts []gollm.PromptOption
	if req.System != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(req.System, gollm.CacheTypeEphemeral))
	}
	if req.MaxTokens > 0 {
		promptOpts = append(promptOpts, gollm.WithMaxLength(req.MaxTokens))
	}
	if len(req.Tools) > 0 {
		tools := make([]gollm.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, gollm.Tool{
				Type: "function",
				Function: gollm.Function{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
		promptOpts = append(promptOpts, gollm.WithTools(tools))
		promptOpts = append(promptOpts, gollm.WithToolChoice("auto"))
	}

	return gollm.NewPrompt(promptText, promptOpts...)
}

func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	calls := parseEmbeddedToolCalls(text)

	var parts []ContentPart
	if cleaned := stripToolCallJSON(text, calls); cleaned != "" {
		parts = append(parts, TextPart(cleaned))
	}
	for _, call := range calls {
		parts = append(parts, ToolCallPart(call.ID, call.Name, call.Arguments))
	}
	if len(parts) == 0 {
		parts = []ContentPart{TextPart(text)}
	}

	stopReason := "end_turn"
	if len(calls) > 0 {
		stopReason = "tool_use"
	}

	return &Response{
		ID:         "resp_" + uuid.New().String()[:8],
		Model:      req.Model,
		Message:    Message{Role: RoleAssistant, Content: parts},
		StopReason: stopReason,
		Usage: Usage{
			// gollm does not expose token usage; estimate from text length.
			InputTokens:  estimateRequestTokens(req),
			OutputTokens: len(text) / 4,
			TotalTokens:  estimateRequestTokens(req) + len(text)/4,
		},
	}
}

// parseEmbeddedToolCalls detects tool-call JSON that gollm providers return
// inline, in either {"tool_calls": ...} or [{"name": ...}] form.
func parseEmbeddedToolCalls(text string) []ToolCall {
	start := strings.Index(text, `{"tool_calls"`)
	if start == -1 {
		start = strings.Index(text, `[{"name"`)
	}
	if start == -1 {
		return nil
	}

	var rawCalls []struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(text[start:]), &rawCalls); err != nil {
		return nil
	}

	calls := make([]ToolCall, 0, len(rawCalls))
	for _, rc := range rawCalls {
		calls = append(calls, ToolCall{
			ID:        "call_" + uuid.New().String()[:8],
			Name:      rc.Name,
			Arguments: rc.Arguments,
		})
	}
	return calls
}

func stripToolCallJSON(text string, calls []ToolCall) string {
	if len(calls) == 0 {
		return text
	}
	result := text
	for _, marker := range []string{`{"tool_calls"`, `[{"name"`} {
		if idx := strings.Index(result, marker); idx != -1 {
			result = strings.TrimSpace(result[:idx])
		}
	}
	return result
}

func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized") || strings.Contains(lower, "invalid api key"):
		return ErrorFromStatusCode(401, a.Name(), msg)
	case strings.Contains(lower, "403") || strings.Contains(lower, "forbidden"):
		return ErrorFromStatusCode(403, a.Name(), msg)
	case strings.Contains(lower, "404") || strings.Contains(lower, "not found"):
		return ErrorFromStatusCode(404, a.Name(), msg)
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit"):
		return ErrorFromStatusCode(429, a.Name(), msg)
	case strings.Contains(lower, "context length") || strings.Contains(lower, "too many tokens"):
		return ErrorFromStatusCode(413, a.Name(), msg)
	case strings.Contains(lower, "500") || strings.Contains(lower, "internal server"):
		return ErrorFromStatusCode(500, a.Name(), msg)
	case strings.Contains(lower, "timeout"):
		return &RequestTimeoutError{SDKError: SDKError{Message: msg, Cause: err}}
	default:
		return &NetworkError{SDKError: SDKError{Message: msg, Cause: err}}
	}
}

func estimateRequestTokens(req Request) int {
	total := len(req.System) / 4
	for _, msg := range req.Messages {
		for _, part := range msg.Content {
			switch part.Kind {
			case ContentText:
				total += len(part.Text) / 4
			case ContentToolResult:
				if part.ToolResult != nil {
					total += len(part.ToolResult.Content) / 4
				}
			}
		}
	}
	if total == 0 {
		total = 10
	}
	return total
}
