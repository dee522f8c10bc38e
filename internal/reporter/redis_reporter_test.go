package reporter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisReporterQueuesPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	choice := "q1a"
	payload := quiz.AttemptPayload{
		SessionID:      "session-1",
		AssessmentID:   "quiz-1",
		Status:         quiz.StatusCompleted,
		Answers:        []quiz.AnsweredQuestion{{QuestionID: "q1", ChoiceID: &choice}, {QuestionID: "q2"}},
		ScorePercent:   50,
		CorrectCount:   1,
		TotalQuestions: 2,
		StartedAt:      time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:     time.Date(2026, 1, 1, 10, 1, 0, 0, time.UTC),
	}

	r := NewRedisReporter(rdb, zerolog.Nop())
	require.NoError(t, r.ForStudent(7).Report(context.Background(), payload))

	items, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	require.Len(t, items, 1)

	var msg ResultMessage
	require.NoError(t, json.Unmarshal([]byte(items[0]), &msg))
	assert.Equal(t, 7, msg.StudentID)
	assert.Equal(t, payload.SessionID, msg.Payload.SessionID)
	assert.Equal(t, quiz.StatusCompleted, msg.Payload.Status)
	require.Len(t, msg.Payload.Answers, 2)
	assert.Nil(t, msg.Payload.Answers[1].ChoiceID)
	assert.True(t, payload.FinishedAt.Equal(msg.Payload.FinishedAt))
}

func TestRedisReporterSurfacesRedisErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	err := NewRedisReporter(rdb, zerolog.Nop()).Enqueue(context.Background(), 1, quiz.AttemptPayload{})
	assert.Error(t, err)
}
