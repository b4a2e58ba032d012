// ABOUTME: Tests for thread/run operations against a fake Assistants API
// ABOUTME: Covers retry ceilings, active-run conflicts, terminal states, and timeouts

package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wspjoy2011/smart-tg-bot/internal/retry"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	return New("test-key", "gpt-4o-mini",
		WithBaseURL(srv.URL),
		WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}),
		WithPolling(time.Millisecond, 100*time.Millisecond),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func apiError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error"},
	})
}

// fakeThreadAPI simulates the happy-path endpoints for one thread and run.
type fakeThreadAPI struct {
	mu sync.Mutex

	messageFailures int // fail this many message posts with 500 first
	runStatus       []string
	statusIdx       int
	reply           string

	messagesPosted int
	runsCreated    int
}

func (f *fakeThreadAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/threads":
			writeJSON(w, http.StatusOK, map[string]string{"id": "thread_abc"})

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			if f.messageFailures > 0 {
				f.messageFailures--
				apiError(w, http.StatusInternalServerError, "server overloaded")
				return
			}
			f.messagesPosted++
			writeJSON(w, http.StatusOK, map[string]string{"id": "msg_user"})

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/runs"):
			f.runsCreated++
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_1", "status": "queued"})

		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/runs/run_1"):
			status := f.runStatus[f.statusIdx]
			if f.statusIdx < len(f.runStatus)-1 {
				f.statusIdx++
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_1", "status": status})

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{
					{
						"id":   "msg_reply",
						"role": "assistant",
						"content": []map[string]any{
							{"type": "text", "text": map[string]string{"value": f.reply}},
						},
					},
				},
			})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}
}

func TestCreateThread(t *testing.T) {
	fake := &fakeThreadAPI{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := testClient(t, srv)
	threadID, err := client.CreateThread(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "thread_abc", threadID)
}

func TestSendAndAwaitReply_HappyPath(t *testing.T) {
	fake := &fakeThreadAPI{
		runStatus: []string{"queued", "in_progress", "completed"},
		reply:     "Binary search halves the interval each step.",
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := testClient(t, srv)
	reply, err := client.SendAndAwaitReply(context.Background(), "thread_abc", "asst_1", "What is binary search?")
	require.NoError(t, err)
	assert.Equal(t, "Binary search halves the interval each step.", reply)
	assert.Equal(t, 1, fake.messagesPosted)
	assert.Equal(t, 1, fake.runsCreated)
}

func TestSendAndAwaitReply_RetriesBelowCeiling(t *testing.T) {
	fake := &fakeThreadAPI{
		messageFailures: 2, // two 500s, then success; ceiling is 3
		runStatus:       []string{"completed"},
		reply:           "ok",
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := testClient(t, srv)
	reply, err := client.SendAndAwaitReply(context.Background(), "thread_abc", "asst_1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, 1, fake.messagesPosted)
}

func TestSendAndAwaitReply_RetriesExhausted(t *testing.T) {
	fake := &fakeThreadAPI{
		messageFailures: 10, // more than the 3-attempt ceiling
	}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := testClient(t, srv)
	_, err := client.SendAndAwaitReply(context.Background(), "thread_abc", "asst_1", "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, 0, fake.messagesPosted)
}

func TestSendAndAwaitReply_NonRetriableFailsImmediately(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		apiError(w, http.StatusBadRequest, "invalid assistant id")
	}))
	defer srv.Close()

	client := testClient(t, srv)
	_, err := client.SendAndAwaitReply(context.Background(), "thread_abc", "asst_bogus", "hi")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.False(t, apiErr.Retriable())
	assert.Equal(t, 1, requests)
}

func TestSendAndAwaitReply_ActiveRunConflict(t *testing.T) {
	var mu sync.Mutex
	conflicted := false
	priorRunPolls := 0

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			if !conflicted {
				conflicted = true
				apiError(w, http.StatusBadRequest,
					"Thread thread_abc already has an active run run_0.")
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "msg_user"})

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/runs"):
			// Newest-first run listing: the stuck prior run
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]string{{"id": "run_0", "status": "in_progress"}},
			})

		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/runs/run_0"):
			priorRunPolls++
			status := "in_progress"
			if priorRunPolls >= 2 {
				status = "completed"
			}
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_0", "status": status})

		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/runs"):
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_1", "status": "completed"})

		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/runs/run_1"):
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_1", "status": "completed"})

		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
			writeJSON(w, http.StatusOK, map[string]any{
				"data": []map[string]any{
					{
						"id":   "msg_reply",
						"role": "assistant",
						"content": []map[string]any{
							{"type": "text", "text": map[string]string{"value": "finally"}},
						},
					},
				},
			})

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv)
	reply, err := client.SendAndAwaitReply(context.Background(), "thread_abc", "asst_1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "finally", reply)
	assert.GreaterOrEqual(t, priorRunPolls, 2, "prior run should have been polled to completion")
}

func TestSendAndAwaitReply_RunFailed(t *testing.T) {
	runsCreated := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			writeJSON(w, http.StatusOK, map[string]string{"id": "msg_user"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/runs"):
			runsCreated++
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_1", "status": "queued"})
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/runs/run_1"):
			writeJSON(w, http.StatusOK, map[string]any{
				"id": "run_1", "status": "failed",
				"last_error": map[string]string{"code": "server_error", "message": "model crashed"},
			})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := testClient(t, srv)
	_, err := client.SendAndAwaitReply(context.Background(), "thread_abc", "asst_1", "hi")
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "failed", runErr.Status)
	assert.Contains(t, runErr.Error(), "model crashed")
	assert.Equal(t, 1, runsCreated, "terminal run failure must not be retried")
}

func TestSendAndAwaitReply_PollTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
			writeJSON(w, http.StatusOK, map[string]string{"id": "msg_user"})
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/runs"):
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_1", "status": "queued"})
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/runs/run_1"):
			// Never progresses
			writeJSON(w, http.StatusOK, map[string]string{"id": "run_1", "status": "in_progress"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	client := New("test-key", "gpt-4o-mini",
		WithBaseURL(srv.URL),
		WithRetryPolicy(retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}),
		WithPolling(time.Millisecond, 20*time.Millisecond),
	)

	_, err := client.SendAndAwaitReply(context.Background(), "thread_abc", "asst_1", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunTimeout)
}

func TestRetriableClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retriable bool
	}{
		{"server error", &APIError{StatusCode: 500}, true},
		{"bad gateway", &APIError{StatusCode: 502}, true},
		{"rate limited", &APIError{StatusCode: 429}, true},
		{"bad request", &APIError{StatusCode: 400, Message: "malformed"}, false},
		{"active run conflict", &APIError{StatusCode: 400, Message: "Thread t already has an active run r."}, true},
		{"unauthorized", &APIError{StatusCode: 401}, false},
		{"run failed", &RunError{RunID: "r", Status: "failed"}, false},
		{"poll timeout", fmt.Errorf("wrapped: %w", ErrRunTimeout), false},
		{"transport error", fmt.Errorf("connection refused"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retriable, retriableError(tt.err))
		})
	}
}
