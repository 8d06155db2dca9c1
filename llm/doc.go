// Package llm defines the narrow request/response contract between the
// research loop and a language-model completion provider.
//
// The loop submits the full conversation plus declared tool schemas and
// receives back assistant text, zero or more tool calls, or a classified
// provider failure. Two adapters implement the Client interface:
//
//   - AnthropicAdapter: the Anthropic Messages API via the official SDK,
//     with native tool-use blocks.
//   - GollmAdapter: any provider supported by gollm, with tool calls
//     recovered from the response text.
//
// Retry policy lives here, not in the loop: retryable provider errors
// (rate limits, 5xx, timeouts) are retried with exponential backoff before
// a failure is surfaced. Whatever error escapes an adapter is final from
// the loop's point of view.
package llm
