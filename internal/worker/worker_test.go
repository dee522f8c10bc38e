package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/reporter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fakeAttemptWriter struct {
	mu       sync.Mutex
	batchErr error
	failOne  uuid.UUID
	batches  [][]model.AttemptRecord
	singles  []model.AttemptRecord
}

func (f *fakeAttemptWriter) InsertBatch(_ context.Context, records []model.AttemptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batches = append(f.batches, append([]model.AttemptRecord(nil), records...))
	return nil
}

func (f *fakeAttemptWriter) Insert(_ context.Context, rec model.AttemptRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec.Attempt.ID == f.failOne {
		return errors.New("constraint violation")
	}
	f.singles = append(f.singles, rec)
	return nil
}

func (f *fakeAttemptWriter) persisted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.singles)
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func resultMessage(t *testing.T, studentID int, assessmentID uuid.UUID) (string, quiz.AttemptPayload) {
	t.Helper()
	q1, q2, c1 := uuid.NewString(), uuid.NewString(), uuid.NewString()
	p := quiz.AttemptPayload{
		SessionID:      uuid.NewString(),
		AssessmentID:   assessmentID.String(),
		Status:         quiz.StatusCompleted,
		Answers:        []quiz.AnsweredQuestion{{QuestionID: q1, ChoiceID: &c1}, {QuestionID: q2}},
		ScorePercent:   50,
		CorrectCount:   1,
		TotalQuestions: 2,
		StartedAt:      time.Now().Add(-time.Minute),
		FinishedAt:     time.Now(),
	}
	raw, err := json.Marshal(reporter.ResultMessage{StudentID: studentID, Payload: p})
	require.NoError(t, err)
	return string(raw), p
}

func TestToRecord(t *testing.T) {
	raw, p := resultMessage(t, 4, uuid.New())
	q, err := decodeResult(raw)
	require.NoError(t, err)

	rec := q.record
	assert.Equal(t, p.SessionID, rec.Attempt.ID.String())
	assert.Equal(t, 4, rec.Attempt.StudentID)
	assert.Equal(t, model.AttemptStatusCompleted, rec.Attempt.Status)
	assert.Equal(t, 1, rec.Attempt.IncorrectCount)
	require.Len(t, rec.Answers, 2)
	require.NotNil(t, rec.Answers[0].ChoiceID)
	assert.Nil(t, rec.Answers[1].ChoiceID)

	_, err = decodeResult(`{"student_id":1,"payload":{"session_id":"nope"}}`)
	assert.Error(t, err)

	p.Status = quiz.StatusActive
	bad, _ := json.Marshal(reporter.ResultMessage{StudentID: 1, Payload: p})
	_, err = decodeResult(string(bad))
	assert.Error(t, err)
}

func TestResultWorkerPersistsAndClearsMirrors(t *testing.T) {
	mr, rdb := newTestRedis(t)
	writer := &fakeAttemptWriter{}
	w := NewResultWorker(writer, rdb, zerolog.Nop())

	assessment := uuid.New()
	raw1, p1 := resultMessage(t, 1, assessment)
	raw2, _ := resultMessage(t, 2, assessment)

	mirror1 := config.CacheKey.StudentAnswersKey(assessment.String(), 1)
	mirror2 := config.CacheKey.StudentAnswersKey(assessment.String(), 2)
	mr.HSet(mirror1, "session_id", p1.SessionID)
	mr.HSet(mirror2, "session_id", "newer-session")

	_, err := mr.RPush(config.WorkerKey.PersistResultsQueue, raw1, raw2)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		items, _ := mr.List(config.WorkerKey.PersistResultsQueue)
		return len(items) == 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}

	assert.Equal(t, 2, writer.persisted())
	assert.False(t, mr.Exists(mirror1))
	assert.True(t, mr.Exists(mirror2), "a newer session's mirror must survive")
}

func TestResultWorkerFallbackRequeuesFailures(t *testing.T) {
	mr, rdb := newTestRedis(t)
	writer := &fakeAttemptWriter{batchErr: errors.New("deadlock")}
	w := NewResultWorker(writer, rdb, zerolog.Nop())

	assessment := uuid.New()
	rawGood, _ := resultMessage(t, 1, assessment)
	rawBad, pBad := resultMessage(t, 2, assessment)
	writer.failOne = uuid.MustParse(pBad.SessionID)

	good, err := decodeResult(rawGood)
	require.NoError(t, err)
	bad, err := decodeResult(rawBad)
	require.NoError(t, err)

	w.flushSafe(context.Background(), []queuedResult{good, bad})

	assert.Len(t, writer.singles, 1)
	items, err := mr.List(config.WorkerKey.PersistResultsQueue)
	require.NoError(t, err)
	assert.Equal(t, []string{rawBad}, items)
}

type fakeEventWriter struct {
	mu     sync.Mutex
	err    error
	events []model.AnswerEvent
}

func (f *fakeEventWriter) InsertBatch(_ context.Context, events []model.AnswerEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeEventWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func answerEvent(t *testing.T, questionID string) string {
	t.Helper()
	raw, err := json.Marshal(model.AnswerEvent{
		StudentID:    1,
		AssessmentID: uuid.NewString(),
		SessionID:    uuid.NewString(),
		QuestionID:   questionID,
		ChoiceID:     uuid.NewString(),
		SelectedAt:   time.Now(),
	})
	require.NoError(t, err)
	return string(raw)
}

func TestAnswerEventWorkerBatches(t *testing.T) {
	mr, rdb := newTestRedis(t)
	writer := &fakeEventWriter{}
	w := NewAnswerEventWorker(writer, rdb, zerolog.Nop())

	_, err := mr.RPush(config.WorkerKey.PersistAnswerEventsQueue,
		answerEvent(t, "q1"), "not json", answerEvent(t, "q2"))
	require.NoError(t, err)

	w.processNext(context.Background())
	assert.Equal(t, 2, writer.count())
	assert.False(t, mr.Exists(config.WorkerKey.PersistAnswerEventsQueue))
}

func TestAnswerEventWorkerRequeuesAndDrains(t *testing.T) {
	mr, rdb := newTestRedis(t)
	writer := &fakeEventWriter{err: errors.New("db down")}
	w := NewAnswerEventWorker(writer, rdb, zerolog.Nop())
	w.retry = time.Millisecond

	_, err := mr.RPush(config.WorkerKey.PersistAnswerEventsQueue, answerEvent(t, "q1"), answerEvent(t, "q2"))
	require.NoError(t, err)

	w.processNext(context.Background())
	items, err := mr.List(config.WorkerKey.PersistAnswerEventsQueue)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	writer.mu.Lock()
	writer.err = nil
	writer.mu.Unlock()

	w.drain(context.Background())
	assert.Equal(t, 2, writer.count())
	assert.False(t, mr.Exists(config.WorkerKey.PersistAnswerEventsQueue))
}
