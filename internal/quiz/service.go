// ABOUTME: Quiz orchestration: topic-based question sets, answer checking, scores
// ABOUTME: Questions come from the quiz assistant as JSON; evaluation is local

package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wspjoy2011/smart-tg-bot/internal/store"
)

// QuestionsPerQuiz is how many questions a generated set contains.
const QuestionsPerQuiz = 10

// generationAttempts bounds how often a malformed question set is
// regenerated. Transport-level retries happen below the turn runner;
// this loop only covers the model returning unparsable output.
const generationAttempts = 2

// ErrNoQuiz is returned when an answer arrives without an active quiz.
var ErrNoQuiz = errors.New("no active quiz")

// Question is one entry of the assistant-generated set.
type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

// Result is the outcome of checking one answer.
type Result struct {
	Correct  bool
	Feedback string

	// Next is nil once the set is exhausted; Done is then true and
	// Score/Total carry the final tally.
	Next       *Question
	NextNumber int
	Done       bool
	Score      int
	Total      int
}

// TurnRunner executes one recorded conversation turn against an assistant.
// Satisfied by the session service; quizzes ride the same thread-backed
// sessions as the other modes, so question sets and answers land in the
// persistent history too.
type TurnRunner interface {
	HandleTurn(ctx context.Context, userID int64, mode store.Mode, assistantID, text string) (string, error)
}

// Service runs quizzes. The question set, position, and score live in
// memory per user; the underlying Q&A exchange is recorded through the
// turn runner and the store like any other conversation.
type Service struct {
	turns  TurnRunner
	store  store.Store
	logger *slog.Logger

	mu     sync.Mutex
	active map[int64]*state
}

type state struct {
	questions []Question
	current   int
	score     int
}

// New creates a quiz Service.
func New(turns TurnRunner, st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		turns:  turns,
		store:  st,
		logger: logger.With("component", "quiz"),
		active: make(map[int64]*state),
	}
}

// Start generates a fresh question set for the topic and returns the first
// question. Any quiz already in flight for the user is discarded.
func (s *Service) Start(ctx context.Context, userID int64, assistantID, topic string) (*Question, error) {
	prompt := fmt.Sprintf(
		"Please generate a new unique set of %d quiz questions on the topic: %s."+
			" Do not repeat previous questions in this thread.",
		QuestionsPerQuiz, topic)

	var questions []Question
	for attempt := 1; ; attempt++ {
		reply, err := s.turns.HandleTurn(ctx, userID, store.ModeQuiz, assistantID, prompt)
		if err != nil {
			return nil, err
		}

		questions, err = parseQuestions(reply)
		if err == nil {
			break
		}
		s.logger.Warn("malformed question set",
			"user_id", userID,
			"topic", topic,
			"attempt", attempt,
			"error", err)
		if attempt == generationAttempts {
			return nil, fmt.Errorf("generating quiz for %q: %w", topic, err)
		}
	}

	s.mu.Lock()
	s.active[userID] = &state{questions: questions}
	s.mu.Unlock()

	s.logger.Debug("quiz started", "user_id", userID, "topic", topic, "questions", len(questions))
	return &questions[0], nil
}

// Current returns the pending question and its 1-based number, or false
// when the user has no quiz in flight.
func (s *Service) Current(userID int64) (*Question, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.active[userID]
	if !ok || st.current >= len(st.questions) {
		return nil, 0, false
	}
	q := st.questions[st.current]
	return &q, st.current + 1, true
}

// Answer checks the user's answer against the pending question, advances
// the quiz, and records the exchange in the session history. The final
// answer of the set closes the quiz and reports the score.
func (s *Service) Answer(ctx context.Context, userID int64, answer string) (*Result, error) {
	s.mu.Lock()
	st, ok := s.active[userID]
	if !ok || st.current >= len(st.questions) {
		s.mu.Unlock()
		return nil, ErrNoQuiz
	}

	question := st.questions[st.current]
	correct := strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(question.Answer))
	if correct {
		st.score++
	}
	st.current++

	res := &Result{
		Correct: correct,
		Score:   st.score,
		Total:   len(st.questions),
	}
	if correct {
		res.Feedback = "✅ Correct!"
	} else {
		res.Feedback = "❌ Wrong! Correct: " + question.Answer
	}

	if st.current < len(st.questions) {
		next := st.questions[st.current]
		res.Next = &next
		res.NextNumber = st.current + 1
	} else {
		res.Done = true
		delete(s.active, userID)
	}
	s.mu.Unlock()

	s.recordExchange(ctx, userID, answer, res.Feedback)
	return res, nil
}

// Reset discards any quiz in flight for the user.
func (s *Service) Reset(userID int64) {
	s.mu.Lock()
	delete(s.active, userID)
	s.mu.Unlock()
}

// recordExchange appends the answer and its feedback to the quiz session's
// history. The quiz itself already advanced, so failures here are logged
// rather than surfaced.
func (s *Service) recordExchange(ctx context.Context, userID int64, answer, feedback string) {
	session, err := s.store.GetSession(ctx, userID, store.ModeQuiz)
	if err != nil {
		s.logger.Error("quiz session lookup failed", "user_id", userID, "error", err)
		return
	}

	now := time.Now().UTC()
	for _, msg := range []*store.Message{
		{SessionID: session.ID, Role: store.RoleUser, Content: answer, CreatedAt: now},
		{SessionID: session.ID, Role: store.RoleAssistant, Content: feedback, CreatedAt: now},
	} {
		if err := s.store.SaveMessage(ctx, msg); err != nil {
			s.logger.Error("failed to record quiz exchange",
				"user_id", userID,
				"session_id", session.ID,
				"error", err)
			return
		}
	}
}

// parseQuestions decodes the assistant reply into a question set. Models
// habitually wrap JSON in a markdown code fence, so one is stripped first.
func parseQuestions(reply string) ([]Question, error) {
	body := strings.TrimSpace(reply)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}

	var questions []Question
	if err := json.Unmarshal([]byte(body), &questions); err != nil {
		return nil, fmt.Errorf("decoding question set: %w", err)
	}
	if len(questions) == 0 {
		return nil, errors.New("question set is empty")
	}
	for i, q := range questions {
		if q.Question == "" || q.Answer == "" || len(q.Options) == 0 {
			return nil, fmt.Errorf("question %d is incomplete", i+1)
		}
	}
	return questions, nil
}
