// Package quiz runs topic quizzes. A quiz-master assistant generates a
// JSON set of questions on a thread-backed session; answers are checked
// locally, scored per user, and recorded in the same session history as
// the generated set.
//
// Only the in-flight state (question set, position, score) is kept in
// memory; a restart forgets an unfinished quiz but keeps its transcript.
package quiz
