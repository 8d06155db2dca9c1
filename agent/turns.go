package agent

import (
	"time"

	"github.com/quaneh2/research-agent/llm"
)

// TurnKind discriminates between turn types.
type TurnKind string

const (
	TurnUser        TurnKind = "user"
	TurnAssistant   TurnKind = "assistant"
	TurnToolResults TurnKind = "tool_results"
)

// Turn is a single entry in the conversation history. Turns are immutable
// once appended.
type Turn struct {
	Kind        TurnKind         `json:"kind"`
	Timestamp   time.Time        `json:"timestamp"`
	User        *UserTurn        `json:"user,omitempty"`
	Assistant   *AssistantTurn   `json:"assistant,omitempty"`
	ToolResults *ToolResultsTurn `json:"tool_results,omitempty"`
}

// UserTurn holds the question that seeds the conversation.
type UserTurn struct {
	Content string `json:"content"`
}

// AssistantTurn holds one model response: its narrative text and any tool
// calls it requested, in the order the model emitted them.
type AssistantTurn struct {
	Content    string         `json:"content"`
	ToolCalls  []llm.ToolCall `json:"tool_calls,omitempty"`
	Usage      llm.Usage      `json:"usage"`
	ResponseID string         `json:"response_id,omitempty"`
}

// ToolResultsTurn holds the results for one iteration's tool calls, in
// request order.
type ToolResultsTurn struct {
	Results []llm.ToolResult `json:"results"`
}

// NewUserTurn creates a Turn wrapping the user question.
func NewUserTurn(content string) Turn {
	return Turn{
		Kind:      TurnUser,
		Timestamp: time.Now(),
		User:      &UserTurn{Content: content},
	}
}

// NewAssistantTurn creates a Turn wrapping a model response.
func NewAssistantTurn(t AssistantTurn) Turn {
	return Turn{
		Kind:      TurnAssistant,
		Timestamp: time.Now(),
		Assistant: &t,
	}
}

// NewToolResultsTurn creates a Turn wrapping tool results.
func NewToolResultsTurn(results []llm.ToolResult) Turn {
	return Turn{
		Kind:        TurnToolResults,
		Timestamp:   time.Now(),
		ToolResults: &ToolResultsTurn{Results: results},
	}
}

// TextContent returns the text content of a turn regardless of its kind.
func (t Turn) TextContent() string {
	switch t.Kind {
	case TurnUser:
		if t.User != nil {
			return t.User.Content
		}
	case TurnAssistant:
		if t.Assistant != nil {
			return t.Assistant.Content
		}
	}
	return ""
}

// historyToMessages converts the turn history into provider messages,
// preserving tool call / tool result pairing.
func historyToMessages(history []Turn) []llm.Message {
	var messages []llm.Message
	for _, turn := range history {
		switch turn.Kind {
		case TurnUser:
			if turn.User != nil {
				messages = append(messages, llm.UserMessage(turn.User.Content))
			}
		case TurnAssistant:
			if turn.Assistant != nil {
				msg := llm.Message{Role: llm.RoleAssistant}
				if turn.Assistant.Content != "" {
					msg.Content = append(msg.Content, llm.TextPart(turn.Assistant.Content))
				}
				for _, tc := range turn.Assistant.ToolCalls {
					msg.Content = append(msg.Content, llm.ToolCallPart(tc.ID, tc.Name, tc.Arguments))
				}
				messages = append(messages, msg)
			}
		case TurnToolResults:
			if turn.ToolResults != nil {
				messages = append(messages, llm.ToolResultsMessage(turn.ToolResults.Results))
			}
		}
	}
	return messages
}
