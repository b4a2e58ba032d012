// ABOUTME: Error types and retriability classification for remote API failures
// ABOUTME: Distinguishes transient errors, active-run conflicts, and terminal run states

package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRunTimeout is returned when a run does not reach a terminal state
// within the polling budget. It is not retried: the run may still be
// consuming the thread, so resubmitting would only stack conflicts.
var ErrRunTimeout = errors.New("run polling timed out")

// APIError is a non-2xx response from the OpenAI API.
type APIError struct {
	StatusCode int
	Type       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("openai: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("openai: %d: %s", e.StatusCode, e.Message)
}

// Retriable reports whether the failure is worth another attempt.
// Server-side errors, rate limits, and the active-run conflict are
// transient; everything else (bad request, unknown assistant, auth)
// fails immediately.
func (e *APIError) Retriable() bool {
	if e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode == 429 {
		return true
	}
	return isActiveRunMessage(e.Message)
}

// RunError is a run that reached a terminal state other than "completed".
// Never retried: the model has already rejected or abandoned the work.
type RunError struct {
	RunID     string
	Status    string
	LastError string
}

func (e *RunError) Error() string {
	if e.LastError != "" {
		return fmt.Sprintf("openai: run %s ended %s: %s", e.RunID, e.Status, e.LastError)
	}
	return fmt.Sprintf("openai: run %s ended %s", e.RunID, e.Status)
}

// IsActiveRunConflict reports whether err is the API refusing to touch a
// thread because a previous run on it has not finished yet.
func IsActiveRunConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return isActiveRunMessage(apiErr.Message)
}

// The API signals the conflict with a 400 whose message reads
// "Thread thread_abc already has an active run run_xyz."
func isActiveRunMessage(msg string) bool {
	return strings.Contains(msg, "already has an active run")
}

// retriableError is the predicate handed to the retry helper. API errors
// carry their own classification; run failures and poll timeouts are final;
// anything else that reached us is a transport-level failure and transient,
// unless the caller's context is simply done.
func retriableError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retriable()
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return false
	}
	if errors.Is(err, ErrRunTimeout) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
