// ABOUTME: Tests for frontend helpers that need no live Bot API connection
// ABOUTME: Covers mode state tracking and inline menu construction

package telegram

import (
	"context"
	"strconv"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wspjoy2011/smart-tg-bot/internal/assets"
	"github.com/wspjoy2011/smart-tg-bot/internal/quiz"
	"github.com/wspjoy2011/smart-tg-bot/internal/store"
)

func TestModeState(t *testing.T) {
	b := &Bot{modes: make(map[int64]store.Mode)}

	assert.Equal(t, store.Mode(""), b.activeMode(1))

	b.setMode(1, store.ModeChat)
	assert.Equal(t, store.ModeChat, b.activeMode(1))
	assert.Equal(t, store.Mode(""), b.activeMode(2), "chats are independent")

	b.setMode(1, store.ModeFact)
	assert.Equal(t, store.ModeFact, b.activeMode(1))

	b.setMode(1, "")
	assert.Equal(t, store.Mode(""), b.activeMode(1))
}

func TestHandleCallback_NilMessage(t *testing.T) {
	// Callbacks from inline-mode results have no message attached; they
	// must be dropped without touching the API connection.
	b := &Bot{}

	assert.NotPanics(t, func() {
		b.handleCallback(context.Background(), &tgbotapi.CallbackQuery{ID: "cb1", Data: "mode:chat"})
	})
}

func TestQuestionHTML(t *testing.T) {
	q := &quiz.Question{Question: "Is a < b?", Options: []string{"yes", "no"}}

	got := questionHTML("", q, 1)
	assert.Equal(t, "<b>Question 1:</b>\nIs a &lt; b?", got)

	got = questionHTML("✅ Correct!", q, 3)
	assert.Equal(t, "✅ Correct!\n\n<b>Question 3:</b>\nIs a &lt; b?", got)
}

func TestAnswerMarkup(t *testing.T) {
	markup := answerMarkup([]string{"80", "443", "8080"})
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, 3)

	for i, want := range []string{"80", "443", "8080"} {
		row := markup.InlineKeyboard[i]
		require.Len(t, row, 1)
		assert.Equal(t, want, row[0].Text)
		require.NotNil(t, row[0].CallbackData)
		assert.Equal(t, "ans:"+strconv.Itoa(i), *row[0].CallbackData)
	}
}

func TestMenuMarkup(t *testing.T) {
	rows, err := assets.Menu("main")
	require.NoError(t, err)

	markup := menuMarkup(rows)
	require.NotNil(t, markup)
	require.Len(t, markup.InlineKeyboard, len(rows))

	for i, row := range rows {
		require.Len(t, markup.InlineKeyboard[i], len(row))
		for j, btn := range row {
			assert.Equal(t, btn.Label, markup.InlineKeyboard[i][j].Text)
			require.NotNil(t, markup.InlineKeyboard[i][j].CallbackData)
			assert.Equal(t, btn.Data, *markup.InlineKeyboard[i][j].CallbackData)
		}
	}
}
