package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/quaneh2/research-agent/llm"
)

// ToolOutput is what an executor returns on success: content for the model
// and any source URLs the execution consulted.
type ToolOutput struct {
	Content string
	Sources []string
}

// Executor performs a tool's side-effecting action. Arguments have already
// been validated against the tool's declared schema.
type Executor func(ctx context.Context, arguments json.RawMessage) (ToolOutput, error)

// RegisteredTool pairs a tool schema with its executor.
type RegisteredTool struct {
	Definition llm.ToolDefinition
	Executor   Executor
}

// DispatchResult pairs the ToolResult answering a ToolCall with the source
// URLs its execution touched.
type DispatchResult struct {
	Result  llm.ToolResult
	Sources []string
}

// Dispatcher validates tool calls against their declared schemas and routes
// them to the matching executor. Dispatch is total: unknown tools, invalid
// input, and executor failures all come back as error-status results, never
// as panics or hangs.
type Dispatcher struct {
	mu    sync.RWMutex
	tools map[string]*RegisteredTool
	order []string
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{tools: make(map[string]*RegisteredTool)}
}

// Register adds or replaces a tool.
func (d *Dispatcher) Register(tool RegisteredTool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := tool.Definition.Name
	if _, exists := d.tools[name]; !exists {
		d.order = append(d.order, name)
	}
	d.tools[name] = &tool
}

// Definitions returns all tool schemas in registration order.
func (d *Dispatcher) Definitions() []llm.ToolDefinition {
	d.mu.RLock()
	defer d.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.tools[name].Definition)
	}
	return defs
}

// Count returns the number of registered tools.
func (d *Dispatcher) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tools)
}

// Dispatch executes one ToolCall and always returns exactly one result
// carrying the call's identifier.
func (d *Dispatcher) Dispatch(ctx context.Context, call llm.ToolCall) DispatchResult {
	d.mu.RLock()
	tool := d.tools[call.Name]
	d.mu.RUnlock()

	if tool == nil {
		return errorResult(call.ID, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	if err := validateArguments(call.Arguments, tool.Definition.Parameters); err != nil {
		return errorResult(call.ID, fmt.Sprintf("invalid input for %s: %v", call.Name, err))
	}

	out, err := tool.Executor(ctx, call.Arguments)
	if err != nil {
		return errorResult(call.ID, fmt.Sprintf("error executing %s: %v", call.Name, err))
	}

	return DispatchResult{
		Result:  llm.ToolResult{ToolCallID: call.ID, Content: out.Content},
		Sources: out.Sources,
	}
}

func errorResult(callID, message string) DispatchResult {
	return DispatchResult{
		Result: llm.ToolResult{ToolCallID: callID, Content: message, IsError: true},
	}
}

// validateArguments checks required fields and primitive types against a
// JSON Schema parameter map of the form
// {"type": "object", "properties": {...}, "required": [...]}.
func validateArguments(raw json.RawMessage, schema map[string]any) error {
	var args map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return fmt.Errorf("arguments are not a JSON object: %w", err)
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	if schema == nil {
		return nil
	}

	for _, field := range requiredFields(schema) {
		if _, ok := args[field]; !ok {
			return fmt.Errorf("missing required field %q", field)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for key, value := range args {
		prop, ok := properties[key].(map[string]any)
		if !ok {
			continue
		}
		expected, ok := prop["type"].(string)
		if !ok {
			continue
		}
		if err := checkType(value, expected); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
	}
	return nil
}

func requiredFields(schema map[string]any) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []any:
		fields := make([]string, 0, len(required))
		for _, f := range required {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	}
	return nil
}

func checkType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if _, ok := value.(float64); ok {
			return nil
		}
	case "integer":
		if f, ok := value.(float64); ok && f == float64(int64(f)) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	default:
		// Unrecognized schema types pass through unchecked.
		return nil
	}
	return fmt.Errorf("expected %s, got %T", expected, value)
}
