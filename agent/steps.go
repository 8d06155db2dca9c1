package agent

import (
	"context"
	"encoding/json"
	"errors"
)

// StepKind identifies the type of loop progress event.
type StepKind string

const (
	StepThinking      StepKind = "thinking"
	StepToolUse       StepKind = "tool_use"
	StepToolResult    StepKind = "tool_result"
	StepComplete      StepKind = "complete"
	StepMaxIterations StepKind = "max_iterations"
	StepError         StepKind = "error"
)

// Source is a cited source URL.
type Source struct {
	URL string `json:"url"`
}

// ThinkingPayload carries assistant narrative text emitted alongside tool
// calls.
type ThinkingPayload struct {
	Content string `json:"content"`
}

// ToolUsePayload describes a tool call about to be dispatched.
type ToolUsePayload struct {
	Tool  string          `json:"tool"`
	Input json.RawMessage `json:"input"`
}

// ToolResultPayload summarizes one tool result.
type ToolResultPayload struct {
	Tool    string `json:"tool"`
	Summary string `json:"summary"`
}

// CompletionPayload carries the terminal answer for both complete and
// max_iterations outcomes.
type CompletionPayload struct {
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Iterations int      `json:"iterations"`
}

// ErrorPayload describes a fatal failure.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Step is one externally observable unit of loop progress. Payload holds
// the kind's payload struct and serializes to the streamed data record.
type Step struct {
	Kind    StepKind `json:"kind"`
	Payload any      `json:"payload"`
}

// ErrEmitterClosed is returned by Emit after Close.
var ErrEmitterClosed = errors.New("step emitter is closed")

// StepEmitter delivers Steps to a single observer over a channel, in emit
// order, with no coalescing or dropping. It is written to by exactly one
// goroutine (the session's control flow); Emit blocks when the observer
// falls behind and aborts if the context is cancelled, which is the
// session's signal to stop.
type StepEmitter struct {
	ch     chan Step
	closed bool
}

// NewStepEmitter creates a StepEmitter with the given channel buffer.
func NewStepEmitter(buffer int) *StepEmitter {
	if buffer <= 0 {
		buffer = 64
	}
	return &StepEmitter{ch: make(chan Step, buffer)}
}

// Emit pushes one Step onto the channel. It blocks until the observer
// accepts it or ctx is cancelled.
func (e *StepEmitter) Emit(ctx context.Context, step Step) error {
	if e.closed {
		return ErrEmitterClosed
	}
	select {
	case e.ch <- step:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Steps returns the read-only step channel. It is closed when the session
// finishes or aborts.
func (e *StepEmitter) Steps() <-chan Step {
	return e.ch
}

// Close signals end-of-stream. Safe to call multiple times.
func (e *StepEmitter) Close() {
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
}
