// Package store provides persistent storage for the bot using SQLite.
//
// # Data Models
//
//   - Session: maps a (Telegram user, mode) pair to an OpenAI thread ID.
//     At most one session exists per pair, enforced by a unique index.
//   - Message: one immutable conversation turn. The auto-incrementing row
//     ID is the conversation order.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateSession: session already exists for (user, mode)
//
// ErrDuplicateSession is how concurrent first messages for the same user and
// mode are serialized: the loser of the insert race re-reads the winner's
// session instead of creating a second thread.
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests and NewSQLiteStore with a t.TempDir()
// path for integration tests with real SQLite.
package store
