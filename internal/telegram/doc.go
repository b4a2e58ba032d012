// Package telegram is the bot's user-facing frontend. It long-polls the
// Bot API for updates, tracks the active conversation mode per chat, and
// hands free-form text to the session service for the assistant turn.
//
// Assistant replies arrive as markdown and are rendered into the small
// HTML subset Telegram accepts before sending. Quiz mode is the
// exception: free text and answer buttons feed the quiz service instead
// of a conversation turn.
package telegram
