package llm

import (
	"encoding/json"
	"strings"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ContentKind is the discriminator tag for ContentPart.
type ContentKind string

const (
	ContentText       ContentKind = "text"
	ContentToolCall   ContentKind = "tool_call"
	ContentToolResult ContentKind = "tool_result"
)

// ToolCall is a model-issued request to invoke a named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult answers exactly one ToolCall.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// ContentPart is a tagged union representing one part of a message.
type ContentPart struct {
	Kind       ContentKind `json:"kind"`
	Text       string      `json:"text,omitempty"`
	ToolCall   *ToolCall   `json:"tool_call,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// TextPart creates a text ContentPart.
func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

// ToolCallPart creates a tool call ContentPart.
func ToolCallPart(id, name string, args json.RawMessage) ContentPart {
	return ContentPart{
		Kind:     ContentToolCall,
		ToolCall: &ToolCall{ID: id, Name: name, Arguments: args},
	}
}

// ToolResultPart creates a tool result ContentPart.
func ToolResultPart(result ToolResult) ContentPart {
	r := result
	return ContentPart{Kind: ContentToolResult, ToolResult: &r}
}

// Message is one entry in the conversation submitted to a provider.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentPart `json:"content"`
}

// TextContent returns the concatenation of all text parts.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, part := range m.Content {
		if part.Kind == ContentText {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// UserMessage creates a user Message with text content.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart(text)}}
}

// AssistantMessage creates an assistant Message with text content.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart(text)}}
}

// ToolResultsMessage creates a tool-role Message carrying one part per
// result, preserving the given order.
func ToolResultsMessage(results []ToolResult) Message {
	parts := make([]ContentPart, 0, len(results))
	for _, r := range results {
		parts = append(parts, ToolResultPart(r))
	}
	return Message{Role: RoleTool, Content: parts}
}

// ToolDefinition declares a tool schema to the provider. Parameters is a
// JSON Schema object: {"type": "object", "properties": {...}, "required": [...]}.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Usage tracks token consumption for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
		TotalTokens:  u.TotalTokens + other.TotalTokens,
	}
}

// Request is the input to Client.Complete.
type Request struct {
	Model     string           `json:"model"`
	System    string           `json:"system,omitempty"`
	Messages  []Message        `json:"messages"`
	Tools     []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
}

// Response is the output of Client.Complete.
type Response struct {
	ID         string  `json:"id"`
	Model      string  `json:"model"`
	Message    Message `json:"message"`
	StopReason string  `json:"stop_reason,omitempty"`
	Usage      Usage   `json:"usage"`
}

// Text returns the concatenated text from the response message.
func (r *Response) Text() string {
	return r.Message.TextContent()
}

// ToolCalls extracts the tool calls from the response message, in the
// order the model emitted them.
func (r *Response) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, part := range r.Message.Content {
		if part.Kind == ContentToolCall && part.ToolCall != nil {
			calls = append(calls, *part.ToolCall)
		}
	}
	return calls
}
