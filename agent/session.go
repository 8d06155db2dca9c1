package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/quaneh2/research-agent/llm"
)

// Config holds the per-session tunables. All fields are read once at
// session construction and never change afterwards.
type Config struct {
	Model         string
	MaxIterations int
	MaxTokens     int
	SystemPrompt  string
	ParallelTools bool // execute one iteration's tool calls concurrently
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Model:         "claude-sonnet-4-20250514",
		MaxIterations: 10,
		MaxTokens:     4000,
		SystemPrompt:  DefaultSystemPrompt,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = def.SystemPrompt
	}
	return c
}

// Status is the terminal outcome of a session.
type Status string

const (
	StatusComplete      Status = "complete"
	StatusMaxIterations Status = "max_iterations"
	StatusError         Status = "error"
)

// Result summarizes one finished session.
type Result struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Iterations int      `json:"iterations"`
	Status     Status   `json:"status"`
}

// inconclusiveAnswer is reported when the iteration bound is hit before the
// model produced any narrative text.
const inconclusiveAnswer = "Research incomplete - maximum iterations reached without final answer."

// Session drives the loop for one question. A Session is single-use: create
// it, consume Steps() while Run executes, then discard it.
type Session struct {
	id         string
	client     llm.Client
	dispatcher *Dispatcher
	conv       *Conversation
	emitter    *StepEmitter
	cfg        Config

	iterations int
	sources    []Source
	seen       map[string]bool
}

// NewSession creates a Session bound to a model client and a dispatcher.
func NewSession(client llm.Client, dispatcher *Dispatcher, cfg Config) *Session {
	return &Session{
		id:         uuid.New().String(),
		client:     client,
		dispatcher: dispatcher,
		conv:       NewConversation(),
		emitter:    NewStepEmitter(64),
		cfg:        cfg.withDefaults(),
		sources:    []Source{},
		seen:       make(map[string]bool),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Steps returns the ordered step stream for this session. The channel is
// closed when Run returns; closure without a terminal Step means the run
// was aborted.
func (s *Session) Steps() <-chan Step { return s.emitter.Steps() }

// Conversation exposes the session's conversation state.
func (s *Session) Conversation() *Conversation { return s.conv }

// Run executes the loop until the model answers, the iteration bound is
// reached, the model client fails, or ctx is cancelled. Exactly one
// terminal Step is emitted except on cancellation. Run must be called at
// most once per Session.
func (s *Session) Run(ctx context.Context, question string) (*Result, error) {
	defer s.emitter.Close()

	s.conv.Seed(question)

	var lastText string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.iterations++
		resp, err := s.client.Complete(ctx, llm.Request{
			Model:     s.cfg.Model,
			System:    s.cfg.SystemPrompt,
			Messages:  s.conv.Messages(),
			Tools:     s.dispatcher.Definitions(),
			MaxTokens: s.cfg.MaxTokens,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// Model failures are fatal; no partial answer is synthesized.
			s.emitTerminal(ctx, Step{Kind: StepError, Payload: ErrorPayload{Error: err.Error()}})
			return nil, fmt.Errorf("model invocation failed on iteration %d: %w", s.iterations, err)
		}

		text := resp.Text()
		calls := resp.ToolCalls()

		s.conv.AppendAssistant(AssistantTurn{
			Content:    text,
			ToolCalls:  calls,
			Usage:      resp.Usage,
			ResponseID: resp.ID,
		})

		if len(calls) == 0 {
			result := &Result{
				Answer:     text,
				Sources:    s.sources,
				Iterations: s.iterations,
				Status:     StatusComplete,
			}
			s.emitTerminal(ctx, Step{Kind: StepComplete, Payload: CompletionPayload{
				Answer:     result.Answer,
				Sources:    result.Sources,
				Iterations: result.Iterations,
			}})
			return result, nil
		}

		// Tool calls take precedence over any accompanying text: the loop
		// continues and the text is surfaced as narrative only.
		if text != "" {
			lastText = text
			if err := s.emitter.Emit(ctx, Step{Kind: StepThinking, Payload: ThinkingPayload{Content: text}}); err != nil {
				return nil, err
			}
		}

		results, err := s.executeCalls(ctx, calls)
		if err != nil {
			return nil, err
		}
		s.conv.AppendToolResults(results)

		if s.iterations >= s.cfg.MaxIterations {
			answer := lastText
			if answer == "" {
				answer = inconclusiveAnswer
			}
			result := &Result{
				Answer:     answer,
				Sources:    s.sources,
				Iterations: s.iterations,
				Status:     StatusMaxIterations,
			}
			s.emitTerminal(ctx, Step{Kind: StepMaxIterations, Payload: CompletionPayload{
				Answer:     result.Answer,
				Sources:    result.Sources,
				Iterations: result.Iterations,
			}})
			return result, nil
		}
	}
}

// executeCalls dispatches one iteration's tool calls. Results and their
// Steps are always ordered by request index, whichever execution mode is
// configured.
func (s *Session) executeCalls(ctx context.Context, calls []llm.ToolCall) ([]llm.ToolResult, error) {
	dispatched := make([]DispatchResult, len(calls))

	if s.cfg.ParallelTools && len(calls) > 1 {
		for _, call := range calls {
			if err := s.emitToolUse(ctx, call); err != nil {
				return nil, err
			}
		}
		var wg sync.WaitGroup
		for i, call := range calls {
			wg.Add(1)
			go func(idx int, call llm.ToolCall) {
				defer wg.Done()
				dispatched[idx] = s.dispatcher.Dispatch(ctx, call)
			}(i, call)
		}
		wg.Wait()
		for i, call := range calls {
			s.collectSources(dispatched[i].Sources)
			if err := s.emitToolResult(ctx, call, dispatched[i].Result); err != nil {
				return nil, err
			}
		}
	} else {
		for i, call := range calls {
			if err := s.emitToolUse(ctx, call); err != nil {
				return nil, err
			}
			dispatched[i] = s.dispatcher.Dispatch(ctx, call)
			s.collectSources(dispatched[i].Sources)
			if err := s.emitToolResult(ctx, call, dispatched[i].Result); err != nil {
				return nil, err
			}
		}
	}

	results := make([]llm.ToolResult, len(calls))
	for i := range dispatched {
		results[i] = dispatched[i].Result
	}
	return results, nil
}

func (s *Session) emitToolUse(ctx context.Context, call llm.ToolCall) error {
	return s.emitter.Emit(ctx, Step{Kind: StepToolUse, Payload: ToolUsePayload{
		Tool:  call.Name,
		Input: call.Arguments,
	}})
}

func (s *Session) emitToolResult(ctx context.Context, call llm.ToolCall, result llm.ToolResult) error {
	summary := fmt.Sprintf("Retrieved %d characters", len(result.Content))
	if result.IsError {
		summary = result.Content
	}
	return s.emitter.Emit(ctx, Step{Kind: StepToolResult, Payload: ToolResultPayload{
		Tool:    call.Name,
		Summary: summary,
	}})
}

// collectSources records URLs once each, in first-use order.
func (s *Session) collectSources(urls []string) {
	for _, u := range urls {
		if u == "" || s.seen[u] {
			continue
		}
		s.seen[u] = true
		s.sources = append(s.sources, Source{URL: u})
	}
}

// emitTerminal delivers the terminal Step. If the observer is gone and ctx
// is cancelled the step is abandoned, which observers see as an abnormal
// closure.
func (s *Session) emitTerminal(ctx context.Context, step Step) {
	_ = s.emitter.Emit(ctx, step)
}
