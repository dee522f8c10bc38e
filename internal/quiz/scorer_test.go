package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name    string
		answers AnswerMap
		want    Result
	}{
		{
			name:    "all correct",
			answers: AnswerMap{"q1": "q1a", "q2": "q2b"},
			want:    Result{ScorePercent: 100, CorrectCount: 2, IncorrectCount: 0, TotalQuestions: 2},
		},
		{
			name:    "one wrong",
			answers: AnswerMap{"q1": "q1a", "q2": "q2c"},
			want:    Result{ScorePercent: 50, CorrectCount: 1, IncorrectCount: 1, TotalQuestions: 2},
		},
		{
			name:    "unanswered counts as incorrect",
			answers: AnswerMap{"q2": "q2b"},
			want:    Result{ScorePercent: 50, CorrectCount: 1, IncorrectCount: 1, TotalQuestions: 2},
		},
		{
			name:    "nothing answered",
			answers: AnswerMap{},
			want:    Result{ScorePercent: 0, CorrectCount: 0, IncorrectCount: 2, TotalQuestions: 2},
		},
		{
			name:    "answers to unknown questions are ignored",
			answers: AnswerMap{"q9": "q1a", "q1": "q1a"},
			want:    Result{ScorePercent: 50, CorrectCount: 1, IncorrectCount: 1, TotalQuestions: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(twoQuestions(), tt.answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScoreRoundsHalfUp(t *testing.T) {
	tests := []struct {
		correct, total, want int
	}{
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13},
		{3, 8, 38},
		{1, 200, 1},
		{1, 201, 0},
		{7, 7, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, percentHalfUp(tt.correct, tt.total), "%d/%d", tt.correct, tt.total)
	}
}

func TestScoreRequiresSingleCorrectChoice(t *testing.T) {
	questions := []Question{
		{ID: "multi", Choices: []Choice{
			{ID: "a", IsCorrect: true},
			{ID: "b", IsCorrect: true},
		}},
		{ID: "single", Choices: []Choice{
			{ID: "c", IsCorrect: true},
			{ID: "d"},
		}},
	}

	got, err := Score(questions, AnswerMap{"multi": "a", "single": "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.CorrectCount)
	assert.Equal(t, 50, got.ScorePercent)
}

func TestScoreEmptyAssessment(t *testing.T) {
	_, err := Score(nil, AnswerMap{"q1": "q1a"})
	assert.ErrorIs(t, err, ErrEmptyAssessment)
}

func TestScoreIsDeterministic(t *testing.T) {
	questions := threeQuestions()
	answers := AnswerMap{"q1": "q1a", "q2": "q2a", "q3": "q3a"}

	first, err := Score(questions, answers)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Score(questions, answers)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 67, first.ScorePercent)
}
