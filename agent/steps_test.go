package agent

import (
	"context"
	"errors"
	"testing"
)

func TestEmitterPreservesOrder(t *testing.T) {
	e := NewStepEmitter(8)
	ctx := context.Background()

	kinds := []StepKind{StepThinking, StepToolUse, StepToolResult, StepComplete}
	for _, k := range kinds {
		if err := e.Emit(ctx, Step{Kind: k}); err != nil {
			t.Fatalf("Emit(%s): %v", k, err)
		}
	}
	e.Close()

	var got []StepKind
	for step := range e.Steps() {
		got = append(got, step.Kind)
	}
	if len(got) != len(kinds) {
		t.Fatalf("received %d steps, want %d", len(got), len(kinds))
	}
	for i := range kinds {
		if got[i] != kinds[i] {
			t.Fatalf("step %d = %s, want %s", i, got[i], kinds[i])
		}
	}
}

func TestEmitBlocksUntilCancelled(t *testing.T) {
	e := NewStepEmitter(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := e.Emit(ctx, Step{Kind: StepThinking}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	// Buffer full and no reader: the second emit must not drop the step,
	// it stays blocked until the context is cancelled.
	done := make(chan error, 1)
	go func() {
		done <- e.Emit(ctx, Step{Kind: StepToolUse})
	}()

	select {
	case err := <-done:
		t.Fatalf("Emit returned early: %v", err)
	default:
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEmitAfterClose(t *testing.T) {
	e := NewStepEmitter(1)
	e.Close()
	e.Close() // idempotent

	if err := e.Emit(context.Background(), Step{Kind: StepComplete}); !errors.Is(err, ErrEmitterClosed) {
		t.Fatalf("err = %v, want ErrEmitterClosed", err)
	}
}

func TestCloseEndsStream(t *testing.T) {
	e := NewStepEmitter(1)
	e.Close()
	if _, ok := <-e.Steps(); ok {
		t.Fatal("expected closed channel")
	}
}
