package llm

import "context"

// Client is the provider contract the research loop depends on. Complete
// blocks until the provider returns a full response or a classified error.
type Client interface {
	// Name returns the provider identifier ("anthropic", "gollm", ...).
	Name() string
	// Complete submits the conversation and tool schemas and returns the
	// model's response. Errors are drawn from this package's taxonomy.
	Complete(ctx context.Context, req Request) (*Response, error)
}
