// Package webtool provides the web_search and web_fetch executors for the
// research loop, in two interchangeable implementations:
//
//   - Custom: Brave Search API for web_search and a direct HTTP fetch with
//     HTML text extraction for web_fetch. Full control, external API keys.
//   - Native: both tools delegated to Anthropic's server-side web_search /
//     web_fetch tools through one-shot Messages API requests. The loop
//     still decides when either tool runs.
//
// Both implementations satisfy the same declared schemas, so the model
// sees an identical tool surface either way.
package webtool
