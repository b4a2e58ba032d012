// ABOUTME: Thread and run operations: create thread, send message, await reply
// ABOUTME: Owns run status polling and recovery from active-run conflicts

package openai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/wspjoy2011/smart-tg-bot/internal/retry"
)

// Run status values. A run is terminal once the API will never advance it.
const (
	runStatusQueued         = "queued"
	runStatusInProgress     = "in_progress"
	runStatusRequiresAction = "requires_action"
	runStatusCancelling     = "cancelling"
	runStatusCompleted      = "completed"
	runStatusFailed         = "failed"
	runStatusCancelled      = "cancelled"
	runStatusExpired        = "expired"
)

type threadObject struct {
	ID string `json:"id"`
}

type runObject struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

func (r *runObject) terminal() bool {
	switch r.Status {
	case runStatusCompleted, runStatusFailed, runStatusCancelled, runStatusExpired:
		return true
	}
	return false
}

type runList struct {
	Data []runObject `json:"data"`
}

type messageObject struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text struct {
			Value string `json:"value"`
		} `json:"text"`
	} `json:"content"`
}

type messageList struct {
	Data []messageObject `json:"data"`
}

// CreateThread requests a new conversation thread from the API and returns
// its opaque identifier. Transient failures are retried with backoff.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	var thread threadObject
	err := retry.Do(ctx, c.logger, "create_thread", c.retryPolicy, retriableError,
		func(ctx context.Context) error {
			return c.do(ctx, http.MethodPost, "/v1/threads", map[string]any{}, &thread)
		})
	if err != nil {
		return "", err
	}
	c.logger.Debug("created thread", "thread_id", thread.ID)
	return thread.ID, nil
}

// SendAndAwaitReply appends the user text to the thread, runs the assistant
// against it, waits for the run to finish, and returns the newest assistant
// message body.
//
// Transient failures (network, 5xx, rate limits, active-run conflicts) are
// absorbed here with bounded backoff; callers never retry on top. When the
// thread still has an in-flight run from a previous turn, that run is first
// polled to completion before the message is resubmitted - blindly posting
// again would only raise a fresh conflict.
func (c *Client) SendAndAwaitReply(ctx context.Context, threadID, assistantID, text string) (string, error) {
	var reply string
	messageAdded := false

	err := retry.Do(ctx, c.logger, "send_and_await_reply", c.retryPolicy, retriableError,
		func(ctx context.Context) error {
			// The message survives across attempts once accepted by the API;
			// re-adding it would duplicate the turn in the remote thread.
			if !messageAdded {
				if err := c.addMessage(ctx, threadID, text); err != nil {
					if IsActiveRunConflict(err) {
						if waitErr := c.awaitActiveRun(ctx, threadID); waitErr != nil {
							return waitErr
						}
					}
					return err
				}
				messageAdded = true
			}

			run, err := c.createRun(ctx, threadID, assistantID)
			if err != nil {
				if IsActiveRunConflict(err) {
					if waitErr := c.awaitActiveRun(ctx, threadID); waitErr != nil {
						return waitErr
					}
				}
				return err
			}

			finished, err := c.pollRun(ctx, threadID, run.ID)
			if err != nil {
				return err
			}
			if finished.Status != runStatusCompleted {
				runErr := &RunError{RunID: finished.ID, Status: finished.Status}
				if finished.LastError != nil {
					runErr.LastError = finished.LastError.Message
				}
				return runErr
			}

			reply, err = c.latestAssistantMessage(ctx, threadID)
			return err
		})
	if err != nil {
		return "", err
	}
	return reply, nil
}

// addMessage appends a user message to the thread.
func (c *Client) addMessage(ctx context.Context, threadID, text string) error {
	body := map[string]any{
		"role":    "user",
		"content": text,
	}
	return c.do(ctx, http.MethodPost, "/v1/threads/"+threadID+"/messages", body, nil)
}

// createRun starts the assistant against the thread's current history.
func (c *Client) createRun(ctx context.Context, threadID, assistantID string) (*runObject, error) {
	body := map[string]any{
		"assistant_id": assistantID,
	}
	var run runObject
	if err := c.do(ctx, http.MethodPost, "/v1/threads/"+threadID+"/runs", body, &run); err != nil {
		return nil, err
	}
	c.logger.Debug("started run", "thread_id", threadID, "run_id", run.ID)
	return &run, nil
}

// getRun fetches the current state of a run.
func (c *Client) getRun(ctx context.Context, threadID, runID string) (*runObject, error) {
	var run runObject
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/runs/"+runID, nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// pollRun checks the run at the configured interval until it reaches a
// terminal state or the poll budget elapses. Timeout yields ErrRunTimeout;
// the run is then considered lost and polling stops.
func (c *Client) pollRun(ctx context.Context, threadID, runID string) (*runObject, error) {
	deadline := time.Now().Add(c.pollTimeout)

	for {
		run, err := c.getRun(ctx, threadID, runID)
		if err != nil {
			return nil, err
		}
		if run.terminal() {
			return run, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("run %s still %s after %s: %w", runID, run.Status, c.pollTimeout, ErrRunTimeout)
		}

		select {
		case <-time.After(c.pollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// awaitActiveRun finds the thread's newest run and waits for it to reach a
// terminal state. Used after an active-run conflict: the previous turn is
// still executing, so the current one has to queue behind it.
func (c *Client) awaitActiveRun(ctx context.Context, threadID string) error {
	var runs runList
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/runs?limit=1&order=desc", nil, &runs); err != nil {
		return err
	}
	if len(runs.Data) == 0 || runs.Data[0].terminal() {
		return nil
	}

	c.logger.Info("waiting for in-flight run to finish",
		"thread_id", threadID,
		"run_id", runs.Data[0].ID,
		"status", runs.Data[0].Status)

	// The outcome doesn't matter: completed or failed, the thread is free
	// again once the run is terminal.
	_, err := c.pollRun(ctx, threadID, runs.Data[0].ID)
	return err
}

// latestAssistantMessage returns the body of the newest assistant message on
// the thread. Multi-part message content is concatenated in order.
func (c *Client) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var messages messageList
	if err := c.do(ctx, http.MethodGet, "/v1/threads/"+threadID+"/messages?limit=10&order=desc", nil, &messages); err != nil {
		return "", err
	}

	for _, msg := range messages.Data {
		if msg.Role != "assistant" {
			continue
		}
		var body string
		for _, part := range msg.Content {
			if part.Type == "text" {
				body += part.Text.Value
			}
		}
		if body != "" {
			return body, nil
		}
	}

	return "", &APIError{
		StatusCode: http.StatusNotFound,
		Message:    "no assistant message found on thread " + threadID,
	}
}
