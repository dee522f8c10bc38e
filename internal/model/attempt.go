package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus mirrors the terminal states of a quiz session.
type AttemptStatus string

const (
	AttemptStatusCompleted AttemptStatus = "COMPLETED"
	AttemptStatusExpired   AttemptStatus = "EXPIRED"
)

// Attempt is a persisted, finalized quiz session.
type Attempt struct {
	ID               uuid.UUID     `json:"id"`
	AssessmentID     uuid.UUID     `json:"assessment_id"`
	StudentID        int           `json:"student_id"`
	Status           AttemptStatus `json:"status"`
	ScorePercent     int           `json:"score_percent"`
	CorrectCount     int           `json:"correct_count"`
	IncorrectCount   int           `json:"incorrect_count"`
	TotalQuestions   int           `json:"total_questions"`
	TimeSpentSeconds int           `json:"time_spent_seconds"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
}

// SelectAnswerRequest records a choice for a question.
type SelectAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	ChoiceID   string `json:"choice_id" binding:"required,uuid"`
}

// NavigateRequest moves the current question pointer.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// SubmitRequest finalizes the running quiz.
type SubmitRequest struct {
	Force bool `json:"force"`
}

// AnswerEvent is one selection made during a running session, queued for
// the answer history table.
type AnswerEvent struct {
	StudentID    int       `json:"student_id"`
	AssessmentID string    `json:"assessment_id"`
	SessionID    string    `json:"session_id"`
	QuestionID   string    `json:"question_id"`
	ChoiceID     string    `json:"choice_id"`
	SelectedAt   time.Time `json:"selected_at"`
}

// MonitorEvent is published on an assessment's monitor channel when a
// student's attempt is finalized.
type MonitorEvent struct {
	StudentID    int    `json:"student_id"`
	SessionID    string `json:"session_id"`
	Status       string `json:"status"`
	ScorePercent int    `json:"score_percent"`
}

// AttemptAnswer is the final answer to one question of an attempt.
// ChoiceID is nil when the question was left unanswered.
type AttemptAnswer struct {
	QuestionID uuid.UUID  `json:"question_id"`
	ChoiceID   *uuid.UUID `json:"choice_id"`
}

// AttemptRecord is an attempt with its answers, as written by the result worker.
type AttemptRecord struct {
	Attempt Attempt
	Answers []AttemptAnswer
}
