package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AnswerEventRepository stores the selection history of quiz sessions.
type AnswerEventRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerEventRepository creates a new AnswerEventRepository.
func NewAnswerEventRepository(pool *pgxpool.Pool) *AnswerEventRepository {
	return &AnswerEventRepository{pool: pool}
}

// InsertBatch copies events into answer_events.
func (r *AnswerEventRepository) InsertBatch(ctx context.Context, events []model.AnswerEvent) error {
	if len(events) == 0 {
		return nil
	}
	_, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"answer_events"},
		[]string{"student_id", "assessment_id", "session_id", "question_id", "choice_id", "selected_at"},
		pgx.CopyFromSlice(len(events), func(i int) ([]any, error) {
			e := events[i]
			ids := make([]uuid.UUID, 4)
			for j, raw := range []string{e.AssessmentID, e.SessionID, e.QuestionID, e.ChoiceID} {
				id, err := uuid.Parse(raw)
				if err != nil {
					return nil, fmt.Errorf("answer event %d: %w", i, err)
				}
				ids[j] = id
			}
			return []any{e.StudentID, ids[0], ids[1], ids[2], ids[3], e.SelectedAt}, nil
		}),
	)
	return err
}
