// Package agent implements the server-controlled research loop.
//
// Given a user question, a Session repeatedly invokes a model client,
// inspects the response for tool calls, dispatches them through a
// schema-validating Dispatcher, appends the results to an append-only
// Conversation, and continues until the model answers without requesting
// tools or the iteration bound is reached.
//
// The server owns the loop: it decides when to stop, what to record, and
// what to stream. The model decides which tool to use, with what input,
// and when it has enough information to answer.
//
// Every loop transition is published as a Step on the session's channel,
// in transition order, ending with exactly one terminal Step (complete,
// max_iterations, or error) unless the session is cancelled. Consumers
// that see the channel close without a terminal Step should treat the run
// as aborted.
//
// Tool failures are not fatal: they are fed back to the model as error
// results so it can retry, switch tools, or answer from what it has. Only
// a model invocation failure terminates the session.
package agent
