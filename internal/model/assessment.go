package model

import (
	"time"

	"github.com/google/uuid"
)

// AssessmentStatus enumerates the publication states of an assessment.
type AssessmentStatus string

const (
	AssessmentStatusDraft     AssessmentStatus = "DRAFT"
	AssessmentStatusPublished AssessmentStatus = "PUBLISHED"
	AssessmentStatusArchived  AssessmentStatus = "ARCHIVED"
)

// Assessment is a quiz definition as stored in PostgreSQL.
type Assessment struct {
	ID              uuid.UUID        `json:"id"`
	Title           string           `json:"title" validate:"required,max=255"`
	Category        string           `json:"category" validate:"max=100"`
	Difficulty      string           `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	DurationSeconds int              `json:"duration_seconds" validate:"required,min=1,max=28800"`
	MaxAttempts     int              `json:"max_attempts" validate:"required,min=1"`
	ClassID         *int             `json:"class_id,omitempty"`
	Status          AssessmentStatus `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// Question is an assessment question with its choices.
type Question struct {
	ID           uuid.UUID `json:"id"`
	AssessmentID uuid.UUID `json:"assessment_id"`
	Prompt       string    `json:"prompt" validate:"required"`
	OrderNum     int       `json:"order_num"`
	Choices      []Choice  `json:"choices" validate:"min=2,dive"`
}

// Choice is one option of a question. IsCorrect stays server-side.
type Choice struct {
	ID        uuid.UUID `json:"id"`
	Body      string    `json:"body" validate:"required"`
	IsCorrect bool      `json:"is_correct"`
	OrderNum  int       `json:"order_num"`
}

// HasCorrectChoice reports whether at least one choice is flagged correct.
func (q Question) HasCorrectChoice() bool {
	for _, c := range q.Choices {
		if c.IsCorrect {
			return true
		}
	}
	return false
}

// AssessmentPaper is what a student sees of an assessment: no correctness flags.
type AssessmentPaper struct {
	AssessmentID    uuid.UUID            `json:"assessment_id"`
	Title           string               `json:"title"`
	DurationSeconds int                  `json:"duration_seconds"`
	Questions       []QuestionForStudent `json:"questions"`
}

// QuestionForStudent is a question without the correct answer.
type QuestionForStudent struct {
	ID       uuid.UUID          `json:"id"`
	Prompt   string             `json:"prompt"`
	OrderNum int                `json:"order_num"`
	Choices  []ChoiceForStudent `json:"choices"`
}

// ChoiceForStudent is a choice without its correctness flag.
type ChoiceForStudent struct {
	ID   uuid.UUID `json:"id"`
	Body string    `json:"body"`
}
