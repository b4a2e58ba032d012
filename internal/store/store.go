// ABOUTME: Store interface and data types for smart-tg-bot persistence
// ABOUTME: Defines Session, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateSession is returned when trying to create a session that
// already exists for the same (user_id, mode) pair
var ErrDuplicateSession = errors.New("session already exists")

// Mode identifies which conversation variant a session belongs to.
// Each mode maps to its own OpenAI assistant.
type Mode string

const (
	ModeFact Mode = "fact" // short technical facts
	ModeChat Mode = "chat" // open-ended conversation
	ModeQuiz Mode = "quiz" // topic quizzes with score tracking
)

// Valid reports whether m is a known session mode.
func (m Mode) Valid() bool {
	return m == ModeFact || m == ModeChat || m == ModeQuiz
}

// Role constants for message authorship
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session maps a Telegram user and mode to a remote OpenAI thread.
// At most one session exists per (user_id, mode) pair; the SQLite schema
// enforces this with a unique index.
type Session struct {
	ID        string
	UserID    int64
	Mode      Mode
	ThreadID  string
	CreatedAt time.Time
}

// Message is a single turn within a session. Messages are immutable once
// written; the auto-incrementing ID doubles as the conversation order.
type Message struct {
	ID        int64
	SessionID string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store defines the interface for session and message persistence
type Store interface {
	// Sessions
	CreateSession(ctx context.Context, session *Session) error
	GetSession(ctx context.Context, userID int64, mode Mode) (*Session, error)
	ListSessions(ctx context.Context, userID int64) ([]*Session, error)

	// Messages (append-only conversation log)
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, sessionID string) ([]*Message, error)

	// ClearSession deletes the session for (userID, mode) together with all
	// of its messages. It is a no-op when no session exists.
	ClearSession(ctx context.Context, userID int64, mode Mode) error

	// Close releases any resources held by the store
	Close() error
}
