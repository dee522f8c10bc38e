package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const answerEventBatchSize = 100

// AnswerEventWriter persists selection history.
type AnswerEventWriter interface {
	InsertBatch(ctx context.Context, events []model.AnswerEvent) error
}

// AnswerEventWorker consumes persist_answer_events_queue into answer_events.
type AnswerEventWorker struct {
	writer AnswerEventWriter
	rdb    *redis.Client
	queue  string
	retry  time.Duration
	log    zerolog.Logger
}

// NewAnswerEventWorker creates a new AnswerEventWorker.
func NewAnswerEventWorker(writer AnswerEventWriter, rdb *redis.Client, log zerolog.Logger) *AnswerEventWorker {
	return &AnswerEventWorker{
		writer: writer,
		rdb:    rdb,
		queue:  config.WorkerKey.PersistAnswerEventsQueue,
		retry:  5 * time.Second,
		log:    log.With().Str("component", "answer_event_worker").Logger(),
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AnswerEventWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

// processNext blocks for the first event, then takes whatever else is
// already queued, up to a batch.
func (w *AnswerEventWorker) processNext(ctx context.Context) {
	first, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
		}
		return
	}
	if len(first) < 2 {
		return
	}

	raws := []string{first[1]}
	more, err := w.rdb.LPopCount(ctx, w.queue, answerEventBatchSize-1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		w.log.Warn().Err(err).Msg("LPopCount error")
	}
	raws = append(raws, more...)

	if err := w.persist(ctx, raws); err != nil {
		w.log.Error().Err(err).Int("size", len(raws)).Msg("Persist error, requeueing")
		w.requeue(ctx, raws)
		select {
		case <-ctx.Done():
		case <-time.After(w.retry):
		}
	}
}

func (w *AnswerEventWorker) persist(ctx context.Context, raws []string) error {
	events := make([]model.AnswerEvent, 0, len(raws))
	for _, raw := range raws {
		var ev model.AnswerEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			w.log.Error().Err(err).Msg("Dropping malformed answer event")
			continue
		}
		events = append(events, ev)
	}
	return w.writer.InsertBatch(ctx, events)
}

func (w *AnswerEventWorker) requeue(ctx context.Context, raws []string) {
	vals := make([]any, len(raws))
	for i, r := range raws {
		vals[i] = r
	}
	w.rdb.RPush(ctx, w.queue, vals...)
}

// drain persists everything still queued before shutdown.
func (w *AnswerEventWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raws, err := w.rdb.LPopCount(ctx, w.queue, answerEventBatchSize).Result()
		if err != nil || len(raws) == 0 {
			break
		}
		if err := w.persist(ctx, raws); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.requeue(ctx, raws)
			break
		}
		drained += len(raws)
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
