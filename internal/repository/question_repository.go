package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// QuestionRepository handles question and choice data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByAssessment retrieves all questions of an assessment with their
// choices, both ordered by order_num.
func (r *QuestionRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.assessment_id, q.prompt, q.order_num,
		        c.id, c.body, c.is_correct, c.order_num
		 FROM questions q
		 JOIN choices c ON c.question_id = q.id
		 WHERE q.assessment_id = $1
		 ORDER BY q.order_num, c.order_num`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		var c model.Choice
		if err := rows.Scan(&q.ID, &q.AssessmentID, &q.Prompt, &q.OrderNum,
			&c.ID, &c.Body, &c.IsCorrect, &c.OrderNum); err != nil {
			return nil, err
		}

		// Rows arrive grouped by question.
		if n := len(questions); n > 0 && questions[n-1].ID == q.ID {
			questions[n-1].Choices = append(questions[n-1].Choices, c)
			continue
		}
		q.Choices = []model.Choice{c}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CreateWithChoices inserts a question and its choices in one transaction.
func (r *QuestionRepository) CreateWithChoices(ctx context.Context, q *model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO questions (assessment_id, prompt, order_num)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		q.AssessmentID, q.Prompt, q.OrderNum,
	).Scan(&q.ID); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	batch := &pgx.Batch{}
	for i := range q.Choices {
		c := &q.Choices[i]
		if c.OrderNum == 0 {
			c.OrderNum = i + 1
		}
		batch.Queue(
			`INSERT INTO choices (question_id, body, is_correct, order_num)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id`,
			q.ID, c.Body, c.IsCorrect, c.OrderNum,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&c.ID)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert choices: %w", err)
	}

	return tx.Commit(ctx)
}
