package quiz

import (
	"context"
	"time"
)

// AnsweredQuestion is one entry of an attempt payload. ChoiceID is nil for
// an unanswered question.
type AnsweredQuestion struct {
	QuestionID string  `json:"question_id"`
	ChoiceID   *string `json:"choice_id"`
}

// AttemptPayload is what a finished session hands to the result store.
type AttemptPayload struct {
	SessionID        string             `json:"session_id"`
	AssessmentID     string             `json:"assessment_id"`
	Status           Status             `json:"status"`
	Answers          []AnsweredQuestion `json:"answers"`
	ScorePercent     int                `json:"score_percent"`
	CorrectCount     int                `json:"correct_count"`
	TotalQuestions   int                `json:"total_questions"`
	TimeSpentSeconds int                `json:"time_spent_seconds"`
	StartedAt        time.Time          `json:"started_at"`
	FinishedAt       time.Time          `json:"finished_at"`
}

// ResultReporter persists finished attempts. The controller calls it
// fire-and-forget; an error never reverts the finalized session.
type ResultReporter interface {
	Report(ctx context.Context, payload AttemptPayload) error
}

// ReporterFunc adapts a function to ResultReporter.
type ReporterFunc func(ctx context.Context, payload AttemptPayload) error

func (f ReporterFunc) Report(ctx context.Context, payload AttemptPayload) error {
	return f(ctx, payload)
}

// buildPayload lists answers in question order.
func buildPayload(sessionID string, a *Assessment, questions []Question, answers AnswerMap, status Status, res Result, startedAt, finishedAt time.Time) AttemptPayload {
	entries := make([]AnsweredQuestion, len(questions))
	for i, q := range questions {
		entries[i].QuestionID = q.ID
		if c, ok := answers[q.ID]; ok {
			choice := c
			entries[i].ChoiceID = &choice
		}
	}
	return AttemptPayload{
		SessionID:        sessionID,
		AssessmentID:     a.ID,
		Status:           status,
		Answers:          entries,
		ScorePercent:     res.ScorePercent,
		CorrectCount:     res.CorrectCount,
		TotalQuestions:   res.TotalQuestions,
		TimeSpentSeconds: res.TimeSpentSeconds,
		StartedAt:        startedAt,
		FinishedAt:       finishedAt,
	}
}
