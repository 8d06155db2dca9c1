package agent

import (
	"sync"

	"github.com/quaneh2/research-agent/llm"
)

// Conversation is the append-only ordered record of turns exchanged with
// the model. No operation removes or edits a prior turn, so the provider
// always sees a complete, unaltered history and tool-result correlation
// stays intact.
type Conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// NewConversation creates an empty Conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Seed appends the first user turn carrying the question.
func (c *Conversation) Seed(question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, NewUserTurn(question))
}

// AppendAssistant records a model response.
func (c *Conversation) AppendAssistant(t AssistantTurn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, NewAssistantTurn(t))
}

// AppendToolResults records one iteration's tool results as a single turn,
// in request order.
func (c *Conversation) AppendToolResults(results []llm.ToolResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, NewToolResultsTurn(results))
}

// Snapshot returns a copy of the full ordered turn sequence.
func (c *Conversation) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := make([]Turn, len(c.turns))
	copy(snapshot, c.turns)
	return snapshot
}

// Messages returns the history converted to provider messages.
func (c *Conversation) Messages() []llm.Message {
	return historyToMessages(c.Snapshot())
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}
