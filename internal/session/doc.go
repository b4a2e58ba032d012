// Package session orchestrates conversation turns.
//
// The Service sits between the Telegram frontend and the lower layers,
// owning the order of operations for one turn:
//
//  1. Resolve the (user, mode) session, creating a remote thread on first
//     contact. A unique constraint in the store serializes concurrent first
//     messages; the loser reuses the winner's session.
//  2. Persist the user message. Storage failure aborts the turn here.
//  3. Ask the remote client for a reply (all retry lives down there).
//  4. Persist the reply and hand the text back to the frontend.
//
// A failed remote call leaves the user message recorded and nothing else;
// the conversation simply resumes on the same thread next time.
package session
