package quiz

import "errors"

// Domain errors. All of them are recoverable; none mutates session state.
var (
	ErrAttemptsExhausted       = errors.New("no attempts left for this assessment")
	ErrSessionNotActive        = errors.New("quiz session is not active")
	ErrSessionAlreadyActive    = errors.New("a quiz session is already active")
	ErrInvalidChoice           = errors.New("choice does not belong to question")
	ErrQuestionIndexOutOfRange = errors.New("question index out of range")
	ErrIncompleteAnswers       = errors.New("not every question has been answered")
	ErrEmptyAssessment         = errors.New("assessment has no questions")
	ErrClockAlreadyRunning     = errors.New("clock is already running")
	ErrInvalidDuration         = errors.New("duration must be positive")
)
