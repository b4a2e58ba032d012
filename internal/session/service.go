// ABOUTME: Session orchestrator: resolves threads and persists conversation turns
// ABOUTME: All user turns flow through here - history is the source of truth, not a side effect

package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wspjoy2011/smart-tg-bot/internal/store"
)

// ThreadClient defines what the service needs from the remote API layer.
// Retry and backoff live entirely behind this interface.
type ThreadClient interface {
	CreateThread(ctx context.Context) (string, error)
	SendAndAwaitReply(ctx context.Context, threadID, assistantID, text string) (string, error)
}

// Service coordinates one conversation turn: resolve the session's remote
// thread, record the user message, obtain the assistant reply, record it.
type Service struct {
	store  store.Store
	client ThreadClient
	logger *slog.Logger
}

// New creates a session Service. Both dependencies are injected so tests can
// swap in fakes.
func New(st store.Store, client ThreadClient, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		client: client,
		logger: logger.With("component", "session"),
	}
}

// HandleTurn processes one user message in the given mode and returns the
// assistant's reply.
//
// Key principle: record first, then act. The user message is persisted
// BEFORE the remote call, so the local history keeps the turn even when the
// assistant fails. On remote failure no assistant row is written; the next
// message from the same user resumes against the same thread.
func (s *Service) HandleTurn(ctx context.Context, userID int64, mode store.Mode, assistantID, text string) (string, error) {
	if assistantID == "" {
		return "", fmt.Errorf("assistant_id is required")
	}
	if !mode.Valid() {
		return "", fmt.Errorf("unknown mode %q", mode)
	}

	// 1. Resolve or create the session and its remote thread
	session, err := s.ensureSession(ctx, userID, mode)
	if err != nil {
		return "", fmt.Errorf("session resolution failed: %w", err)
	}

	// 2. Record the user message; a storage failure aborts the turn before
	// anything is sent upstream
	userMsg := &store.Message{
		SessionID: session.ID,
		Role:      store.RoleUser,
		Content:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, userMsg); err != nil {
		return "", fmt.Errorf("recording user message: %w", err)
	}

	s.logger.Debug("user message recorded",
		"session_id", session.ID,
		"message_id", userMsg.ID,
		"user_id", userID,
		"mode", mode)

	// 3. Remote round-trip; the client absorbs transient failures itself
	reply, err := s.client.SendAndAwaitReply(ctx, session.ThreadID, assistantID, text)
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}

	// 4. Record the reply. The remote turn already happened, so a persistence
	// failure here is logged rather than surfaced as a user-facing error:
	// the reply is worth more than the missing history row.
	replyMsg := &store.Message{
		SessionID: session.ID,
		Role:      store.RoleAssistant,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveMessage(ctx, replyMsg); err != nil {
		s.logger.Error("failed to record assistant reply",
			"error", err,
			"session_id", session.ID,
			"user_id", userID)
	}

	return reply, nil
}

// History returns the full conversation log for (userID, mode) in order.
// Administrative: not used on the message path.
func (s *Service) History(ctx context.Context, userID int64, mode store.Mode) ([]*store.Message, error) {
	session, err := s.store.GetSession(ctx, userID, mode)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, session.ID)
}

// Clear forgets the session for (userID, mode) along with its messages.
// The remote thread is left behind; the next turn starts a fresh one.
func (s *Service) Clear(ctx context.Context, userID int64, mode store.Mode) error {
	return s.store.ClearSession(ctx, userID, mode)
}

// ensureSession resolves an existing session or creates a new one backed by
// a fresh remote thread.
//
// Thread creation is remote-first: the OpenAI thread is requested before the
// session row is inserted. If the insert then loses a race to a concurrent
// first message, the freshly created remote thread is abandoned and the
// winner's session is used - at-least-once thread creation is the accepted
// anomaly, a stray empty thread upstream is harmless.
func (s *Service) ensureSession(ctx context.Context, userID int64, mode store.Mode) (*store.Session, error) {
	session, err := s.store.GetSession(ctx, userID, mode)
	if err == nil {
		return session, nil
	}
	if err != store.ErrNotFound {
		return nil, err
	}

	threadID, err := s.client.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating remote thread: %w", err)
	}

	session = &store.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Mode:      mode,
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		if err == store.ErrDuplicateSession {
			// Another turn for the same (user, mode) won the insert race.
			existing, lookupErr := s.store.GetSession(ctx, userID, mode)
			if lookupErr == nil {
				s.logger.Debug("found existing session after race",
					"session_id", existing.ID,
					"orphaned_thread_id", threadID)
				return existing, nil
			}
			s.logger.Error("retry lookup failed after duplicate error", "lookup_error", lookupErr)
		}
		return nil, err
	}

	s.logger.Debug("session created",
		"session_id", session.ID,
		"thread_id", threadID,
		"user_id", userID,
		"mode", mode)
	return session, nil
}
