// ABOUTME: Tests for the session orchestrator
// ABOUTME: Verifies turn ordering, race-safe session creation, and failure behavior

package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wspjoy2011/smart-tg-bot/internal/store"
)

// fakeClient implements ThreadClient for testing
type fakeClient struct {
	mu             sync.Mutex
	threadsCreated int32
	reply          string
	sendErr        error
	lastThreadID   string
	lastAssistant  string
}

func (f *fakeClient) CreateThread(ctx context.Context) (string, error) {
	n := atomic.AddInt32(&f.threadsCreated, 1)
	return fmt.Sprintf("thread_%d", n), nil
}

func (f *fakeClient) SendAndAwaitReply(ctx context.Context, threadID, assistantID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastThreadID = threadID
	f.lastAssistant = assistantID
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.reply, nil
}

func createTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHandleTurn_FirstMessageCreatesSession(t *testing.T) {
	testStore := createTestStore(t)
	client := &fakeClient{reply: "A binary search halves the search interval each step."}
	svc := New(testStore, client, nil)

	ctx := context.Background()
	reply, err := svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", "What is a binary search?")
	require.NoError(t, err)
	assert.Equal(t, "A binary search halves the search interval each step.", reply)

	// Exactly one session for (42, chat)
	session, err := testStore.GetSession(ctx, 42, store.ModeChat)
	require.NoError(t, err)
	assert.Equal(t, "thread_1", session.ThreadID)
	assert.Equal(t, "asst_chat", client.lastAssistant)

	// Turn persisted as [user, assistant]
	messages, err := testStore.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, store.RoleUser, messages[0].Role)
	assert.Equal(t, "What is a binary search?", messages[0].Content)
	assert.Equal(t, store.RoleAssistant, messages[1].Role)
	assert.Equal(t, reply, messages[1].Content)
}

func TestHandleTurn_SecondMessageReusesSession(t *testing.T) {
	testStore := createTestStore(t)
	client := &fakeClient{reply: "sure"}
	svc := New(testStore, client, nil)

	ctx := context.Background()
	_, err := svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", "first")
	require.NoError(t, err)
	_, err = svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", "second")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&client.threadsCreated),
		"second turn must not create another thread")

	sessions, err := testStore.ListSessions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	messages, err := testStore.ListMessages(ctx, sessions[0].ID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, []string{store.RoleUser, store.RoleAssistant, store.RoleUser, store.RoleAssistant},
		[]string{messages[0].Role, messages[1].Role, messages[2].Role, messages[3].Role})
}

func TestHandleTurn_ModesAreIsolated(t *testing.T) {
	testStore := createTestStore(t)
	client := &fakeClient{reply: "ok"}
	svc := New(testStore, client, nil)

	ctx := context.Background()
	_, err := svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", "hello")
	require.NoError(t, err)
	_, err = svc.HandleTurn(ctx, 42, store.ModeFact, "asst_fact", "fact please")
	require.NoError(t, err)

	chat, err := testStore.GetSession(ctx, 42, store.ModeChat)
	require.NoError(t, err)
	fact, err := testStore.GetSession(ctx, 42, store.ModeFact)
	require.NoError(t, err)
	assert.NotEqual(t, chat.ThreadID, fact.ThreadID)
}

func TestHandleTurn_ConcurrentFirstMessages_OneSession(t *testing.T) {
	testStore := createTestStore(t)
	client := &fakeClient{reply: "hi"}
	svc := New(testStore, client, nil)

	ctx := context.Background()
	const turns = 8

	var wg sync.WaitGroup
	errs := make([]error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", fmt.Sprintf("msg %d", i))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "turn %d", i)
	}

	sessions, err := testStore.ListSessions(ctx, 42)
	require.NoError(t, err)
	require.Len(t, sessions, 1, "concurrent first messages must yield exactly one session")

	messages, err := testStore.ListMessages(ctx, sessions[0].ID)
	require.NoError(t, err)
	assert.Len(t, messages, turns*2)
}

func TestHandleTurn_RemoteFailureKeepsUserMessage(t *testing.T) {
	testStore := createTestStore(t)
	client := &fakeClient{sendErr: errors.New("retries exhausted")}
	svc := New(testStore, client, nil)

	ctx := context.Background()
	_, err := svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", "hello?")
	require.Error(t, err)

	session, err := testStore.GetSession(ctx, 42, store.ModeChat)
	require.NoError(t, err, "session survives a failed turn")

	messages, err := testStore.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1, "only the user message is recorded on failure")
	assert.Equal(t, store.RoleUser, messages[0].Role)

	// Recovery: the next turn continues on the same thread
	client.sendErr = nil
	client.reply = "back online"
	reply, err := svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", "still there?")
	require.NoError(t, err)
	assert.Equal(t, "back online", reply)
	assert.Equal(t, session.ThreadID, client.lastThreadID)
}

func TestHandleTurn_StorageFailureAbortsBeforeRemote(t *testing.T) {
	mock := store.NewMockStore()
	mock.SaveMessageErr = errors.New("disk full")
	client := &fakeClient{reply: "should never be seen"}
	svc := New(mock, client, nil)

	_, err := svc.HandleTurn(context.Background(), 42, store.ModeChat, "asst_chat", "hi")
	require.Error(t, err)
	assert.Empty(t, client.lastThreadID, "remote must not be called when the user message cannot be persisted")
}

func TestHandleTurn_ValidatesInput(t *testing.T) {
	svc := New(store.NewMockStore(), &fakeClient{}, nil)

	_, err := svc.HandleTurn(context.Background(), 42, store.ModeChat, "", "hi")
	assert.Error(t, err, "missing assistant id")

	_, err = svc.HandleTurn(context.Background(), 42, store.Mode("poetry"), "asst", "hi")
	assert.Error(t, err, "unknown mode")
}

func TestHistoryAndClear(t *testing.T) {
	testStore := createTestStore(t)
	client := &fakeClient{reply: "ok"}
	svc := New(testStore, client, nil)

	ctx := context.Background()

	// No session yet: empty history, no error
	history, err := svc.History(ctx, 42, store.ModeChat)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.HandleTurn(ctx, 42, store.ModeChat, "asst_chat", "hello")
	require.NoError(t, err)

	history, err = svc.History(ctx, 42, store.ModeChat)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	require.NoError(t, svc.Clear(ctx, 42, store.ModeChat))
	require.NoError(t, svc.Clear(ctx, 42, store.ModeChat), "clear is idempotent")

	history, err = svc.History(ctx, 42, store.ModeChat)
	require.NoError(t, err)
	assert.Empty(t, history)
}
