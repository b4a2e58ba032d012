// ABOUTME: Telegram frontend: long-polling loop, command dispatch, mode state
// ABOUTME: Routes free-form text to the active mode's assistant via the session service

package telegram

import (
	"context"
	"fmt"
	stdhtml "html"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wspjoy2011/smart-tg-bot/internal/assets"
	"github.com/wspjoy2011/smart-tg-bot/internal/quiz"
	"github.com/wspjoy2011/smart-tg-bot/internal/session"
	"github.com/wspjoy2011/smart-tg-bot/internal/store"
)

// randomFactPrompt is the canned user message behind /random.
const randomFactPrompt = "Give me a random interesting technical fact."

// Bot is the Telegram frontend. It keeps only ephemeral per-chat state (the
// active mode); everything durable lives behind the session service.
type Bot struct {
	api        *tgbotapi.BotAPI
	sessions   *session.Service
	quiz       *quiz.Service
	assistants map[store.Mode]string
	timeout    int
	logger     *slog.Logger

	mu    sync.Mutex
	modes map[int64]store.Mode // chat ID -> active mode

	errorNotice string
}

// New authenticates against the Bot API and prepares the frontend.
// assistants maps each mode to the assistant ID that serves it.
func New(token string, updateTimeout int, sessions *session.Service, quizzes *quiz.Service, assistants map[store.Mode]string, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authenticating bot: %w", err)
	}

	errorNotice, err := assets.Message("error")
	if err != nil {
		return nil, err
	}

	if updateTimeout <= 0 {
		updateTimeout = 30
	}

	return &Bot{
		api:         api,
		sessions:    sessions,
		quiz:        quizzes,
		assistants:  assistants,
		timeout:     updateTimeout,
		logger:      logger.With("component", "telegram"),
		modes:       make(map[int64]store.Mode),
		errorNotice: errorNotice,
	}, nil
}

// Run consumes updates until the context is cancelled. Each update is
// handled in its own goroutine so one user's slow assistant turn never
// blocks another user's.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.handleText(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := msg.From.ID

	switch msg.Command() {
	case "start":
		b.setMode(chatID, "")
		b.sendTemplate(chatID, "start", menuMarkupByName("main", b.logger))
	case "help":
		b.sendTemplate(chatID, "help", nil)
	case "chat":
		b.setMode(chatID, store.ModeChat)
		b.sendTemplate(chatID, "chat", nil)
	case "fact":
		b.setMode(chatID, store.ModeFact)
		b.sendTemplate(chatID, "fact", nil)
	case "quiz":
		b.enterQuizMode(chatID)
	case "random":
		b.randomFact(ctx, chatID, userID)
	case "clear":
		b.clearActive(ctx, chatID, userID)
	default:
		b.sendTemplate(chatID, "help", nil)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Inline-origin callbacks carry no message; nothing to route them to
	if cb.Message == nil {
		return
	}

	// Acknowledge first so the client stops its spinner
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack failed", "error", err)
	}

	chatID := cb.Message.Chat.ID
	userID := cb.From.ID

	switch {
	case cb.Data == "mode:chat":
		b.setMode(chatID, store.ModeChat)
		b.sendTemplate(chatID, "chat", nil)
	case cb.Data == "mode:fact":
		b.setMode(chatID, store.ModeFact)
		b.sendTemplate(chatID, "fact", nil)
	case cb.Data == "mode:quiz":
		b.enterQuizMode(chatID)
	case cb.Data == "random":
		b.randomFact(ctx, chatID, userID)
	case strings.HasPrefix(cb.Data, "quiz:"):
		b.startQuiz(ctx, chatID, userID, strings.TrimPrefix(cb.Data, "quiz:"))
	case strings.HasPrefix(cb.Data, "ans:"):
		b.answerByButton(ctx, chatID, userID, strings.TrimPrefix(cb.Data, "ans:"))
	default:
		b.logger.Warn("unknown callback", "data", cb.Data)
	}
}

// handleText routes a free-form message to the active mode's assistant,
// or treats it as a quiz answer when a quiz is running.
func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	mode := b.activeMode(chatID)
	if mode == "" {
		b.sendTemplate(chatID, "no_mode", nil)
		return
	}
	if mode == store.ModeQuiz {
		b.answerQuiz(ctx, chatID, msg.From.ID, msg.Text)
		return
	}

	b.sendTyping(chatID)

	reply, err := b.sessions.HandleTurn(ctx, msg.From.ID, mode, b.assistants[mode], msg.Text)
	if err != nil {
		b.logger.Warn("turn failed",
			"user_id", msg.From.ID,
			"mode", mode,
			"error", err)
		b.sendHTML(chatID, b.errorNotice)
		return
	}

	b.sendHTML(chatID, RenderHTML(reply))
}

// randomFact is a one-shot fact-mode turn with a canned prompt.
func (b *Bot) randomFact(ctx context.Context, chatID, userID int64) {
	b.sendTyping(chatID)

	reply, err := b.sessions.HandleTurn(ctx, userID, store.ModeFact, b.assistants[store.ModeFact], randomFactPrompt)
	if err != nil {
		b.logger.Warn("random fact failed", "user_id", userID, "error", err)
		b.sendHTML(chatID, b.errorNotice)
		return
	}
	b.sendHTML(chatID, RenderHTML(reply))
}

// clearActive forgets the active mode's history for this user.
func (b *Bot) clearActive(ctx context.Context, chatID, userID int64) {
	mode := b.activeMode(chatID)
	if mode == "" {
		b.sendTemplate(chatID, "no_mode", nil)
		return
	}
	if mode == store.ModeQuiz {
		b.quiz.Reset(userID)
	}

	if err := b.sessions.Clear(ctx, userID, mode); err != nil {
		b.logger.Error("clear failed", "user_id", userID, "mode", mode, "error", err)
		b.sendHTML(chatID, b.errorNotice)
		return
	}
	b.sendTemplate(chatID, "cleared", nil)
}

// enterQuizMode switches the chat to quiz mode and offers the topic menu.
func (b *Bot) enterQuizMode(chatID int64) {
	b.setMode(chatID, store.ModeQuiz)
	b.sendTemplate(chatID, "quiz", menuMarkupByName("quiz", b.logger))
}

// startQuiz generates a question set for the topic and sends question one.
func (b *Bot) startQuiz(ctx context.Context, chatID, userID int64, topic string) {
	b.setMode(chatID, store.ModeQuiz)
	b.sendTyping(chatID)

	first, err := b.quiz.Start(ctx, userID, b.assistants[store.ModeQuiz], topic)
	if err != nil {
		b.logger.Warn("quiz start failed", "user_id", userID, "topic", topic, "error", err)
		b.sendHTML(chatID, b.errorNotice)
		return
	}

	msg := tgbotapi.NewMessage(chatID, questionHTML("", first, 1))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = answerMarkup(first.Options)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send failed", "chat_id", chatID, "error", err)
	}
}

// answerByButton resolves an answer button back to its option text. A
// stale button (the quiz already moved on or ended) is ignored.
func (b *Bot) answerByButton(ctx context.Context, chatID, userID int64, rawIndex string) {
	idx, err := strconv.Atoi(rawIndex)
	if err != nil {
		b.logger.Warn("bad answer callback", "data", rawIndex)
		return
	}
	question, _, ok := b.quiz.Current(userID)
	if !ok || idx < 0 || idx >= len(question.Options) {
		return
	}
	b.answerQuiz(ctx, chatID, userID, question.Options[idx])
}

// answerQuiz checks one answer and sends the feedback together with the
// next question, or the final score when the set is done.
func (b *Bot) answerQuiz(ctx context.Context, chatID, userID int64, answer string) {
	res, err := b.quiz.Answer(ctx, userID, answer)
	if err == quiz.ErrNoQuiz {
		b.sendTemplate(chatID, "quiz", menuMarkupByName("quiz", b.logger))
		return
	}
	if err != nil {
		b.logger.Warn("quiz answer failed", "user_id", userID, "error", err)
		b.sendHTML(chatID, b.errorNotice)
		return
	}

	if res.Done {
		b.sendHTML(chatID, fmt.Sprintf("%s\n\n🎉 <b>Quiz Complete!</b>\nYour Score: <b>%d/%d</b>",
			stdhtml.EscapeString(res.Feedback), res.Score, res.Total))
		return
	}

	msg := tgbotapi.NewMessage(chatID, questionHTML(res.Feedback, res.Next, res.NextNumber))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = answerMarkup(res.Next.Options)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send failed", "chat_id", chatID, "error", err)
	}
}

// questionHTML formats a quiz question, optionally preceded by feedback on
// the previous answer. Model-provided text is escaped.
func questionHTML(feedback string, q *quiz.Question, number int) string {
	var out strings.Builder
	if feedback != "" {
		out.WriteString(stdhtml.EscapeString(feedback))
		out.WriteString("\n\n")
	}
	fmt.Fprintf(&out, "<b>Question %d:</b>\n%s", number, stdhtml.EscapeString(q.Question))
	return out.String()
}

// answerMarkup builds one inline button per answer option; the callback
// data carries the option index.
func answerMarkup(options []string) *tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for i, option := range options {
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(option, "ans:"+strconv.Itoa(i)),
		})
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &markup
}

func (b *Bot) setMode(chatID int64, mode store.Mode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mode == "" {
		delete(b.modes, chatID)
		return
	}
	b.modes[chatID] = mode
}

func (b *Bot) activeMode(chatID int64) store.Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modes[chatID]
}

// sendTemplate sends an embedded HTML message, optionally with an inline
// keyboard attached.
func (b *Bot) sendTemplate(chatID int64, name string, markup *tgbotapi.InlineKeyboardMarkup) {
	text, err := assets.Message(name)
	if err != nil {
		b.logger.Error("missing message template", "name", name, "error", err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send failed", "chat_id", chatID, "template", name, "error", err)
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send failed", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendTyping(chatID int64) {
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("typing action failed", "chat_id", chatID, "error", err)
	}
}

// menuMarkupByName builds an inline keyboard from an embedded menu
// definition. A broken menu file degrades to no keyboard.
func menuMarkupByName(name string, logger *slog.Logger) *tgbotapi.InlineKeyboardMarkup {
	rows, err := assets.Menu(name)
	if err != nil {
		logger.Error("loading menu", "name", name, "error", err)
		return nil
	}
	return menuMarkup(rows)
}

// menuMarkup converts menu rows into Telegram inline keyboard markup.
func menuMarkup(rows [][]assets.MenuButton) *tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	return &markup
}
