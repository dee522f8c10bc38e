package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

// AttemptRepository reads persisted attempts. Writes happen in bulk in the
// result worker.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// CountByStudent returns how many attempts a student has persisted for an assessment.
func (r *AttemptRepository) CountByStudent(ctx context.Context, assessmentID uuid.UUID, studentID int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1 AND student_id = $2`,
		assessmentID, studentID,
	).Scan(&n)
	return n, err
}

// ListByAssessment returns a page of attempts for an assessment, newest first.
// perPage <= 0 returns every attempt.
func (r *AttemptRepository) ListByAssessment(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts WHERE assessment_id = $1`, assessmentID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, assessment_id, student_id, status, score_percent, correct_count,
	                 incorrect_count, total_questions, time_spent_seconds, started_at, finished_at
	          FROM attempts
	          WHERE assessment_id = $1
	          ORDER BY finished_at DESC`
	args := []any{assessmentID}
	if perPage > 0 {
		if page < 1 {
			page = 1
		}
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, perPage, (page-1)*perPage)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.AssessmentID, &a.StudentID, &a.Status, &a.ScorePercent,
			&a.CorrectCount, &a.IncorrectCount, &a.TotalQuestions, &a.TimeSpentSeconds,
			&a.StartedAt, &a.FinishedAt); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}

// InsertBatch writes attempts with UNNEST and their answers with COPY in a
// single transaction. Attempts already stored are skipped, so a requeued
// batch is harmless.
func (r *AttemptRepository) InsertBatch(ctx context.Context, records []model.AttemptRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	ids := make([]uuid.UUID, n)
	assessmentIDs := make([]uuid.UUID, n)
	students := make([]int, n)
	statuses := make([]string, n)
	scores := make([]int, n)
	corrects := make([]int, n)
	incorrects := make([]int, n)
	totals := make([]int, n)
	spent := make([]int, n)
	startedAts := make([]time.Time, n)
	finishedAts := make([]time.Time, n)
	for i, rec := range records {
		a := rec.Attempt
		ids[i] = a.ID
		assessmentIDs[i] = a.AssessmentID
		students[i] = a.StudentID
		statuses[i] = string(a.Status)
		scores[i] = a.ScorePercent
		corrects[i] = a.CorrectCount
		incorrects[i] = a.IncorrectCount
		totals[i] = a.TotalQuestions
		spent[i] = a.TimeSpentSeconds
		startedAts[i] = a.StartedAt
		finishedAts[i] = a.FinishedAt
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		INSERT INTO attempts (
			id, assessment_id, student_id, status, score_percent, correct_count,
			incorrect_count, total_questions, time_spent_seconds, started_at, finished_at
		)
		SELECT * FROM UNNEST(
			$1::uuid[], $2::uuid[], $3::int[], $4::text[], $5::int[], $6::int[],
			$7::int[], $8::int[], $9::int[], $10::timestamptz[], $11::timestamptz[]
		)
		ON CONFLICT (id) DO NOTHING
		RETURNING id`,
		ids, assessmentIDs, students, statuses, scores, corrects,
		incorrects, totals, spent, startedAts, finishedAts,
	)
	if err != nil {
		return fmt.Errorf("insert attempts: %w", err)
	}
	inserted, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return fmt.Errorf("insert attempts: %w", err)
	}

	fresh := make(map[uuid.UUID]struct{}, len(inserted))
	for _, id := range inserted {
		fresh[id] = struct{}{}
	}

	var answerRows [][]any
	for _, rec := range records {
		if _, ok := fresh[rec.Attempt.ID]; !ok {
			continue
		}
		for _, ans := range rec.Answers {
			answerRows = append(answerRows, []any{rec.Attempt.ID, ans.QuestionID, ans.ChoiceID})
		}
	}

	if len(answerRows) > 0 {
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"attempt_answers"},
			[]string{"attempt_id", "question_id", "choice_id"},
			pgx.CopyFromRows(answerRows),
		); err != nil {
			return fmt.Errorf("copy attempt answers: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Insert writes a single attempt. Used when a batch fails.
func (r *AttemptRepository) Insert(ctx context.Context, rec model.AttemptRecord) error {
	return r.InsertBatch(ctx, []model.AttemptRecord{rec})
}
