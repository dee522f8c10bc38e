package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/reporter"
)

const (
	ResultBatchSize    = 50
	ResultBatchTimeout = 2 * time.Second
	ResultPollTimeout  = 1 * time.Second
)

// AttemptWriter persists finished attempts.
type AttemptWriter interface {
	InsertBatch(ctx context.Context, records []model.AttemptRecord) error
	Insert(ctx context.Context, rec model.AttemptRecord) error
}

// ResultWorker consumes persist_results_queue and writes attempts to PostgreSQL in batches.
type ResultWorker struct {
	writer AttemptWriter
	rdb    *redis.Client
	queue  string
	log    zerolog.Logger
}

// NewResultWorker creates a new ResultWorker.
func NewResultWorker(writer AttemptWriter, rdb *redis.Client, log zerolog.Logger) *ResultWorker {
	return &ResultWorker{
		writer: writer,
		rdb:    rdb,
		queue:  config.WorkerKey.PersistResultsQueue,
		log:    log.With().Str("component", "result_worker").Logger(),
	}
}

// queuedResult keeps the raw message for requeueing.
type queuedResult struct {
	raw       string
	studentID int
	sessionID string
	record    model.AttemptRecord
}

// ----------------------------------------------------------------
// Worker loop with batching
// ----------------------------------------------------------------

// Start runs until ctx is cancelled, then flushes what it holds. Call in a goroutine.
func (w *ResultWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ResultWorker started")

	batch := make([]queuedResult, 0, ResultBatchSize)
	lastFlush := time.Now()

	for {
		if len(batch) > 0 &&
			(len(batch) >= ResultBatchSize || time.Since(lastFlush) >= ResultBatchTimeout) {
			w.flushSafe(ctx, batch)
			batch = batch[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.log.Info().Int("pending", len(batch)).Msg("Shutdown requested. Flushing remaining batch...")
			w.flushSafe(context.Background(), batch)
			return

		default:
			item, err := w.rdb.BLPop(ctx, ResultPollTimeout, w.queue).Result()
			if err != nil {
				if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			q, err := decodeResult(item[1])
			if err != nil {
				w.log.Error().Err(err).Msg("Dropping malformed result")
				continue
			}
			batch = append(batch, q)
		}
	}
}

// ----------------------------------------------------------------
// Batch insert with per-item fallback
// ----------------------------------------------------------------

func (w *ResultWorker) flushSafe(ctx context.Context, batch []queuedResult) {
	if len(batch) == 0 {
		return
	}

	records := make([]model.AttemptRecord, len(batch))
	for i := range batch {
		records[i] = batch[i].record
	}

	if err := w.writer.InsertBatch(ctx, records); err != nil {
		w.log.Warn().Err(err).Int("size", len(batch)).Msg("Bulk insert failed, using fallback")

		persisted := batch[:0:0]
		for _, q := range batch {
			if err := w.writer.Insert(ctx, q.record); err != nil {
				w.log.Error().Err(err).Str("session_id", q.sessionID).Msg("Insert failed, requeueing")
				w.rdb.RPush(ctx, w.queue, q.raw)
				continue
			}
			persisted = append(persisted, q)
		}
		w.clearAnswerMirrors(ctx, persisted)
		return
	}

	w.log.Debug().Int("size", len(batch)).Msg("Attempts persisted")
	w.clearAnswerMirrors(ctx, batch)
}

// clearAnswerMirrors drops the Redis answer hashes of persisted sessions.
// A hash already reused by a newer session is left alone.
func (w *ResultWorker) clearAnswerMirrors(ctx context.Context, batch []queuedResult) {
	if len(batch) == 0 {
		return
	}

	pipe := w.rdb.Pipeline()
	for _, q := range batch {
		key := config.CacheKey.StudentAnswersKey(q.record.Attempt.AssessmentID.String(), q.studentID)
		database.DeleteIfSession.Eval(ctx, pipe, []string{key}, q.sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Warn().Err(err).Msg("Failed to clear answer mirrors")
	}
}

func decodeResult(raw string) (queuedResult, error) {
	var msg reporter.ResultMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return queuedResult{}, fmt.Errorf("unmarshal: %w", err)
	}

	rec, err := toRecord(msg.StudentID, msg.Payload)
	if err != nil {
		return queuedResult{}, err
	}
	return queuedResult{
		raw:       raw,
		studentID: msg.StudentID,
		sessionID: msg.Payload.SessionID,
		record:    rec,
	}, nil
}

func toRecord(studentID int, p quiz.AttemptPayload) (model.AttemptRecord, error) {
	id, err := uuid.Parse(p.SessionID)
	if err != nil {
		return model.AttemptRecord{}, fmt.Errorf("session id: %w", err)
	}
	assessmentID, err := uuid.Parse(p.AssessmentID)
	if err != nil {
		return model.AttemptRecord{}, fmt.Errorf("assessment id: %w", err)
	}

	var status model.AttemptStatus
	switch p.Status {
	case quiz.StatusCompleted:
		status = model.AttemptStatusCompleted
	case quiz.StatusExpired:
		status = model.AttemptStatusExpired
	default:
		return model.AttemptRecord{}, fmt.Errorf("unexpected attempt status %s", p.Status)
	}

	answers := make([]model.AttemptAnswer, 0, len(p.Answers))
	for _, a := range p.Answers {
		qid, err := uuid.Parse(a.QuestionID)
		if err != nil {
			return model.AttemptRecord{}, fmt.Errorf("question id: %w", err)
		}
		ans := model.AttemptAnswer{QuestionID: qid}
		if a.ChoiceID != nil {
			cid, err := uuid.Parse(*a.ChoiceID)
			if err != nil {
				return model.AttemptRecord{}, fmt.Errorf("choice id: %w", err)
			}
			ans.ChoiceID = &cid
		}
		answers = append(answers, ans)
	}

	return model.AttemptRecord{
		Attempt: model.Attempt{
			ID:               id,
			AssessmentID:     assessmentID,
			StudentID:        studentID,
			Status:           status,
			ScorePercent:     p.ScorePercent,
			CorrectCount:     p.CorrectCount,
			IncorrectCount:   p.TotalQuestions - p.CorrectCount,
			TotalQuestions:   p.TotalQuestions,
			TimeSpentSeconds: p.TimeSpentSeconds,
			StartedAt:        p.StartedAt,
			FinishedAt:       p.FinishedAt,
		},
		Answers: answers,
	}, nil
}
