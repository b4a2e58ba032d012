// Package openai wraps the OpenAI Assistants v2 HTTP API.
//
// # Conversation flow
//
// A conversation lives in a remote thread. Each turn is:
//
//  1. Append the user message to the thread
//  2. Start a run of an assistant against the thread
//  3. Poll the run until it reaches a terminal state
//  4. Read the newest assistant message off the thread
//
// SendAndAwaitReply performs all four steps and owns every piece of
// resilience: transient failures (network errors, 5xx, 429) are retried with
// bounded exponential backoff, and the "thread already has an active run"
// conflict is handled by polling the in-flight run to completion before
// resubmitting. Callers must not add retry layers of their own.
//
// # Error classification
//
//   - *APIError: non-2xx response; Retriable() says whether backoff applies
//   - *RunError: run ended failed/cancelled/expired; never retried
//   - ErrRunTimeout: run outlived the poll budget; never retried
//
// # Assistant lifecycle
//
// CreateAssistant, GetAssistant, ListAssistants, UpdateAssistant and
// DeleteAssistant manage assistants for the admin CLI. They are direct,
// unretried calls - the CLI runs one-shot and the operator just reruns it.
//
// # Tuning
//
// Poll interval, poll timeout, and the retry schedule are configurable via
// WithPolling and WithRetryPolicy; tests use WithBaseURL against httptest
// servers.
package openai
