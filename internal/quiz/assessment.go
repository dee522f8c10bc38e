package quiz

import (
	"fmt"
	"time"
)

// Assessment is the quiz definition a session runs against.
type Assessment struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Category        string `json:"category"`
	Difficulty      string `json:"difficulty"`
	DurationSeconds int    `json:"duration_seconds"`
	MaxAttempts     int    `json:"max_attempts"`
	AttemptsUsed    int    `json:"attempts_used"`
}

// Choice is one selectable option of a question.
type Choice struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question is a prompt with its ordered choices.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []Choice `json:"choices"`
}

// HasChoice reports whether choiceID belongs to the question.
func (q Question) HasChoice(choiceID string) bool {
	for _, c := range q.Choices {
		if c.ID == choiceID {
			return true
		}
	}
	return false
}

// correctChoice returns the id of the single correct choice.
// ok is false when zero or several choices are flagged correct.
func (q Question) correctChoice() (id string, ok bool) {
	n := 0
	for _, c := range q.Choices {
		if c.IsCorrect {
			id = c.ID
			n++
		}
	}
	return id, n == 1
}

// Validate checks the content invariants: at least two choices and at
// least one correct choice.
func (q Question) Validate() error {
	if len(q.Choices) < 2 {
		return fmt.Errorf("%w: question %q has %d choices, need at least 2", ErrInvalidChoice, q.ID, len(q.Choices))
	}
	for _, c := range q.Choices {
		if c.IsCorrect {
			return nil
		}
	}
	return fmt.Errorf("%w: question %q has no correct choice", ErrInvalidChoice, q.ID)
}

// ValidateQuestions rejects an empty or malformed question set.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return ErrEmptyAssessment
	}
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate question %q", ErrInvalidChoice, q.ID)
		}
		seen[q.ID] = struct{}{}
		if err := q.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Result is the immutable outcome of a finalized session.
type Result struct {
	ScorePercent     int `json:"score_percent"`
	CorrectCount     int `json:"correct_count"`
	IncorrectCount   int `json:"incorrect_count"`
	TotalQuestions   int `json:"total_questions"`
	TimeSpentSeconds int `json:"time_spent_seconds"`
}

// SessionSnapshot is a read-only copy of the controller's session.
type SessionSnapshot struct {
	SessionID            string     `json:"session_id"`
	AssessmentID         string     `json:"assessment_id"`
	StartedAt            time.Time  `json:"started_at"`
	RemainingSeconds     int        `json:"remaining_seconds"`
	CurrentQuestionIndex int        `json:"current_question_index"`
	TotalQuestions       int        `json:"total_questions"`
	Status               Status     `json:"status"`
	Answers              AnswerMap  `json:"answers"`
	Result               *Result    `json:"result,omitempty"`
	FinishedAt           *time.Time `json:"finished_at,omitempty"`
	// Recovered marks a read-only view rebuilt from the Redis mirror after
	// the live session was lost.
	Recovered bool `json:"recovered,omitempty"`
}
