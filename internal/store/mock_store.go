// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session   // keyed by "userID:mode"
	messages map[string][]*Message // keyed by session ID
	nextID   int64

	// Optional error injection
	SaveMessageErr   error
	CreateSessionErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
		messages: make(map[string][]*Message),
	}
}

func sessionKey(userID int64, mode Mode) string {
	return string(mode) + ":" + strconv.FormatInt(userID, 10)
}

// CreateSession stores a new session.
func (m *MockStore) CreateSession(ctx context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CreateSessionErr != nil {
		return m.CreateSessionErr
	}

	key := sessionKey(session.UserID, session.Mode)
	if _, ok := m.sessions[key]; ok {
		return ErrDuplicateSession
	}

	// Make a copy to avoid external modification
	s := *session
	m.sessions[key] = &s
	return nil
}

// GetSession retrieves a session by user and mode.
func (m *MockStore) GetSession(ctx context.Context, userID int64, mode Mode) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionKey(userID, mode)]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy
	result := *s
	return &result, nil
}

// ListSessions returns all sessions for a user, oldest first.
func (m *MockStore) ListSessions(ctx context.Context, userID int64) ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sessions []*Session
	for _, s := range m.sessions {
		if s.UserID == userID {
			copied := *s
			sessions = append(sessions, &copied)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// SaveMessage appends a message to a session's log.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.SaveMessageErr != nil {
		return m.SaveMessageErr
	}

	m.nextID++
	msg.ID = m.nextID

	copied := *msg
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], &copied)
	return nil
}

// ListMessages returns a session's messages in insertion order.
func (m *MockStore) ListMessages(ctx context.Context, sessionID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[sessionID]
	result := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		copied := *msg
		result = append(result, &copied)
	}
	return result, nil
}

// ClearSession deletes a session and its messages. No-op when absent.
func (m *MockStore) ClearSession(ctx context.Context, userID int64, mode Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey(userID, mode)
	s, ok := m.sessions[key]
	if !ok {
		return nil
	}
	delete(m.messages, s.ID)
	delete(m.sessions, key)
	return nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

// Ensure MockStore implements Store interface
var _ Store = (*MockStore)(nil)
