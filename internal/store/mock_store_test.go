// ABOUTME: Tests for MockStore parity with the SQLite implementation
// ABOUTME: Exercises duplicate detection, ordering, and clear semantics

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockStore_DuplicateSession(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.CreateSession(ctx, newTestSession(1, ModeChat)))
	err := m.CreateSession(ctx, newTestSession(1, ModeChat))
	assert.ErrorIs(t, err, ErrDuplicateSession)

	// Different mode is a different session
	assert.NoError(t, m.CreateSession(ctx, newTestSession(1, ModeFact)))
}

func TestMockStore_MessageOrder(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	session := newTestSession(1, ModeChat)
	require.NoError(t, m.CreateSession(ctx, session))

	for _, content := range []string{"first", "second", "third"} {
		msg := &Message{SessionID: session.ID, Role: RoleUser, Content: content, CreatedAt: time.Now()}
		require.NoError(t, m.SaveMessage(ctx, msg))
	}

	messages, err := m.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "third", messages[2].Content)
	assert.Less(t, messages[0].ID, messages[1].ID)
}

func TestMockStore_ClearIdempotent(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	session := newTestSession(1, ModeChat)
	require.NoError(t, m.CreateSession(ctx, session))
	require.NoError(t, m.SaveMessage(ctx, &Message{SessionID: session.ID, Role: RoleUser, Content: "x", CreatedAt: time.Now()}))

	require.NoError(t, m.ClearSession(ctx, 1, ModeChat))
	require.NoError(t, m.ClearSession(ctx, 1, ModeChat))

	_, err := m.GetSession(ctx, 1, ModeChat)
	assert.ErrorIs(t, err, ErrNotFound)
}
