package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/quaneh2/research-agent/llm"
)

// scriptedClient replays a fixed sequence of responses. When the script is
// exhausted the last entry repeats, which models a provider that keeps
// requesting tools forever.
type scriptedClient struct {
	responses []*llm.Response
	errs      []error
	requests  []llm.Request
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	idx := len(c.requests)
	c.requests = append(c.requests, req)
	if idx >= len(c.responses) {
		idx = len(c.responses) - 1
	}
	if idx < len(c.errs) && c.errs[idx] != nil {
		return nil, c.errs[idx]
	}
	return c.responses[idx], nil
}

func textResponse(text string) *llm.Response {
	return &llm.Response{
		ID:         "resp_text",
		Message:    llm.AssistantMessage(text),
		StopReason: "end_turn",
	}
}

func toolResponse(text string, calls ...llm.ToolCall) *llm.Response {
	msg := llm.Message{Role: llm.RoleAssistant}
	if text != "" {
		msg.Content = append(msg.Content, llm.TextPart(text))
	}
	for _, call := range calls {
		msg.Content = append(msg.Content, llm.ToolCallPart(call.ID, call.Name, call.Arguments))
	}
	return &llm.Response{ID: "resp_tools", Message: msg, StopReason: "tool_use"}
}

func searchCall(id, query string) llm.ToolCall {
	return llm.ToolCall{
		ID:        id,
		Name:      "web_search",
		Arguments: json.RawMessage(fmt.Sprintf(`{"query": %q}`, query)),
	}
}

func searchDispatcher(t *testing.T, content string, sources ...string) *Dispatcher {
	t.Helper()
	d := NewDispatcher()
	d.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name: "web_search",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []string{"query"},
			},
		},
		Executor: func(context.Context, json.RawMessage) (ToolOutput, error) {
			return ToolOutput{Content: content, Sources: sources}, nil
		},
	})
	return d
}

func drainSteps(t *testing.T, s *Session) []Step {
	t.Helper()
	var steps []Step
	for step := range s.Steps() {
		steps = append(steps, step)
	}
	return steps
}

func stepKinds(steps []Step) []StepKind {
	kinds := make([]StepKind, len(steps))
	for i, s := range steps {
		kinds[i] = s.Kind
	}
	return kinds
}

func TestRunDirectAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{textResponse("4")}}
	sess := NewSession(client, NewDispatcher(), Config{})

	result, err := sess.Run(context.Background(), "What is 2+2?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "4" || result.Iterations != 1 || result.Status != StatusComplete {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", result.Sources)
	}

	steps := drainSteps(t, sess)
	if len(steps) != 1 || steps[0].Kind != StepComplete {
		t.Fatalf("expected exactly one complete step, got %v", stepKinds(steps))
	}
	payload := steps[0].Payload.(CompletionPayload)
	if payload.Answer != "4" || payload.Iterations != 1 {
		t.Fatalf("unexpected completion payload: %+v", payload)
	}
}

func TestRunSearchThenAnswer(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("I need to look this up.", searchCall("call_1", "go runtime")),
		textResponse("Here is what I found."),
	}}
	dispatcher := searchDispatcher(t, "result text", "https://example.com/a")
	sess := NewSession(client, dispatcher, Config{})

	result, err := sess.Run(context.Background(), "How does the Go runtime work?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Iterations != 2 || result.Status != StatusComplete {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Sources) != 1 || result.Sources[0].URL != "https://example.com/a" {
		t.Fatalf("unexpected sources: %v", result.Sources)
	}

	want := []StepKind{StepThinking, StepToolUse, StepToolResult, StepComplete}
	if got := stepKinds(drainSteps(t, sess)); !reflect.DeepEqual(got, want) {
		t.Fatalf("step kinds = %v, want %v", got, want)
	}

	// user, assistant, tool_results, assistant
	if n := sess.Conversation().Len(); n != 4 {
		t.Fatalf("conversation has %d turns, want 4", n)
	}
}

func TestRunToolResultSummary(t *testing.T) {
	content := "0123456789"
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("", searchCall("call_1", "q")),
		textResponse("done"),
	}}
	sess := NewSession(client, searchDispatcher(t, content), Config{})
	if _, err := sess.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	steps := drainSteps(t, sess)
	// No thinking step when the response carried no text.
	want := []StepKind{StepToolUse, StepToolResult, StepComplete}
	if got := stepKinds(steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step kinds = %v, want %v", got, want)
	}
	payload := steps[1].Payload.(ToolResultPayload)
	if payload.Summary != "Retrieved 10 characters" {
		t.Fatalf("summary = %q", payload.Summary)
	}
}

func TestRunMaxIterations(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("", searchCall("call_1", "loop")),
	}}
	sess := NewSession(client, searchDispatcher(t, "more"), Config{MaxIterations: 1})

	result, err := sess.Run(context.Background(), "never ends")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusMaxIterations || result.Iterations != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Answer != inconclusiveAnswer {
		t.Fatalf("answer = %q", result.Answer)
	}

	want := []StepKind{StepToolUse, StepToolResult, StepMaxIterations}
	if got := stepKinds(drainSteps(t, sess)); !reflect.DeepEqual(got, want) {
		t.Fatalf("step kinds = %v, want %v", got, want)
	}
}

func TestRunMaxIterationsKeepsLastNarrative(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("Partial findings so far.", searchCall("call_1", "q")),
	}}
	sess := NewSession(client, searchDispatcher(t, "x"), Config{MaxIterations: 1})

	result, err := sess.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "Partial findings so far." {
		t.Fatalf("answer = %q", result.Answer)
	}
}

func TestRunToolFailureIsRecoverable(t *testing.T) {
	d := NewDispatcher()
	d.Register(RegisteredTool{
		Definition: llm.ToolDefinition{Name: "web_search"},
		Executor: func(context.Context, json.RawMessage) (ToolOutput, error) {
			return ToolOutput{}, errors.New("network unreachable")
		},
	})
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("", searchCall("call_1", "q")),
		textResponse("answered despite the failure"),
	}}
	sess := NewSession(client, d, Config{})

	result, err := sess.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != StatusComplete || result.Iterations != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}

	steps := drainSteps(t, sess)
	payload := steps[1].Payload.(ToolResultPayload)
	if !strings.Contains(payload.Summary, "network unreachable") {
		t.Fatalf("expected error summary, got %q", payload.Summary)
	}

	// The error result is fed back to the model in the next request.
	turns := sess.Conversation().Snapshot()
	results := turns[2].ToolResults.Results
	if len(results) != 1 || !results[0].IsError {
		t.Fatalf("expected one error tool result, got %+v", results)
	}
}

func TestRunModelFailureIsFatal(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.Response{nil},
		errs:      []error{errors.New("provider exploded")},
	}
	sess := NewSession(client, NewDispatcher(), Config{})

	result, err := sess.Run(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
	if result != nil {
		t.Fatalf("expected nil result, got %+v", result)
	}

	steps := drainSteps(t, sess)
	if len(steps) != 1 || steps[0].Kind != StepError {
		t.Fatalf("expected exactly one error step, got %v", stepKinds(steps))
	}
	payload := steps[0].Payload.(ErrorPayload)
	if payload.Error == "" {
		t.Fatal("error payload is empty")
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{responses: []*llm.Response{textResponse("never")}}
	sess := NewSession(client, NewDispatcher(), Config{})

	if _, err := sess.Run(ctx, "q"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// Abnormal closure: channel closed, no terminal step.
	if steps := drainSteps(t, sess); len(steps) != 0 {
		t.Fatalf("expected no steps, got %v", stepKinds(steps))
	}
}

func TestRunHistoryGrowsByExtension(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("", searchCall("call_1", "a")),
		toolResponse("", searchCall("call_2", "b")),
		textResponse("final"),
	}}
	sess := NewSession(client, searchDispatcher(t, "x"), Config{})
	if _, err := sess.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	reqs := client.requests
	if len(reqs) != 3 {
		t.Fatalf("expected 3 model invocations, got %d", len(reqs))
	}
	for i := 1; i < len(reqs); i++ {
		prev, curr := reqs[i-1].Messages, reqs[i].Messages
		if len(curr) <= len(prev) {
			t.Fatalf("request %d did not extend request %d (%d vs %d messages)",
				i, i-1, len(curr), len(prev))
		}
		if !reflect.DeepEqual(curr[:len(prev)], prev) {
			t.Fatalf("request %d altered the prior history prefix", i)
		}
	}
}

func TestRunParallelToolsKeepRequestOrder(t *testing.T) {
	d := NewDispatcher()
	d.Register(RegisteredTool{
		Definition: llm.ToolDefinition{Name: "slow"},
		Executor: func(context.Context, json.RawMessage) (ToolOutput, error) {
			time.Sleep(20 * time.Millisecond)
			return ToolOutput{Content: "slow output"}, nil
		},
	})
	d.Register(RegisteredTool{
		Definition: llm.ToolDefinition{Name: "fast"},
		Executor: func(context.Context, json.RawMessage) (ToolOutput, error) {
			return ToolOutput{Content: "fast output"}, nil
		},
	})

	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("",
			llm.ToolCall{ID: "call_1", Name: "slow", Arguments: json.RawMessage(`{}`)},
			llm.ToolCall{ID: "call_2", Name: "fast", Arguments: json.RawMessage(`{}`)},
		),
		textResponse("done"),
	}}
	sess := NewSession(client, d, Config{ParallelTools: true})
	if _, err := sess.Run(context.Background(), "q"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	steps := drainSteps(t, sess)
	want := []StepKind{StepToolUse, StepToolUse, StepToolResult, StepToolResult, StepComplete}
	if got := stepKinds(steps); !reflect.DeepEqual(got, want) {
		t.Fatalf("step kinds = %v, want %v", got, want)
	}
	if tu := steps[0].Payload.(ToolUsePayload); tu.Tool != "slow" {
		t.Fatalf("first tool_use = %q, want slow", tu.Tool)
	}
	if tr := steps[2].Payload.(ToolResultPayload); tr.Tool != "slow" {
		t.Fatalf("first tool_result = %q, want slow", tr.Tool)
	}

	// Results reach the conversation in request order too.
	results := sess.Conversation().Snapshot()[2].ToolResults.Results
	if results[0].ToolCallID != "call_1" || results[1].ToolCallID != "call_2" {
		t.Fatalf("results out of order: %+v", results)
	}
}

func TestRunSourceDeduplication(t *testing.T) {
	client := &scriptedClient{responses: []*llm.Response{
		toolResponse("", searchCall("call_1", "a")),
		toolResponse("", searchCall("call_2", "b")),
		textResponse("final"),
	}}
	sess := NewSession(client, searchDispatcher(t, "x", "https://example.com/a", "https://example.com/a"), Config{})

	result, err := sess.Run(context.Background(), "q")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("expected 1 deduplicated source, got %v", result.Sources)
	}
}

func TestRunReplayIsDeterministic(t *testing.T) {
	script := func() *scriptedClient {
		return &scriptedClient{responses: []*llm.Response{
			toolResponse("Searching.", searchCall("call_1", "go")),
			textResponse("The answer."),
		}}
	}

	run := func() []Step {
		sess := NewSession(script(), searchDispatcher(t, "payload", "https://example.com"), Config{})
		if _, err := sess.Run(context.Background(), "q"); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return drainSteps(t, sess)
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("replay diverged:\n%+v\n%+v", first, second)
	}
}
