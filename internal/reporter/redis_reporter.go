// Package reporter hands finished quiz attempts to the persistence pipeline.
package reporter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/quiz"
)

// ResultMessage is one entry of the results queue.
type ResultMessage struct {
	StudentID int                 `json:"student_id"`
	Payload   quiz.AttemptPayload `json:"payload"`
}

// RedisReporter pushes finished attempts onto the results queue, where the
// result worker picks them up in batches.
type RedisReporter struct {
	rdb   *redis.Client
	queue string
	log   zerolog.Logger
}

// NewRedisReporter creates a RedisReporter on the default results queue.
func NewRedisReporter(rdb *redis.Client, log zerolog.Logger) *RedisReporter {
	return &RedisReporter{
		rdb:   rdb,
		queue: config.WorkerKey.PersistResultsQueue,
		log:   log.With().Str("component", "redis_reporter").Logger(),
	}
}

// Enqueue pushes an attempt for studentID.
func (r *RedisReporter) Enqueue(ctx context.Context, studentID int, payload quiz.AttemptPayload) error {
	raw, err := json.Marshal(ResultMessage{StudentID: studentID, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := r.rdb.RPush(ctx, r.queue, raw).Err(); err != nil {
		return fmt.Errorf("push result: %w", err)
	}

	r.log.Debug().
		Int("student_id", studentID).
		Str("session_id", payload.SessionID).
		Str("status", payload.Status.String()).
		Msg("Attempt queued")
	return nil
}

// ForStudent binds the reporter to one student.
func (r *RedisReporter) ForStudent(studentID int) quiz.ResultReporter {
	return quiz.ReporterFunc(func(ctx context.Context, payload quiz.AttemptPayload) error {
		return r.Enqueue(ctx, studentID, payload)
	})
}
