package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-quiz/internal/model"
)

const assessmentColumns = `id, title, category, difficulty, duration_seconds, max_attempts,
	class_id, status, created_at, updated_at`

// AssessmentRepository handles assessment data access.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates a new AssessmentRepository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

func scanAssessment(row pgx.Row, a *model.Assessment) error {
	return row.Scan(&a.ID, &a.Title, &a.Category, &a.Difficulty, &a.DurationSeconds,
		&a.MaxAttempts, &a.ClassID, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

func collectAssessments(rows pgx.Rows) ([]model.Assessment, error) {
	defer rows.Close()

	var out []model.Assessment
	for rows.Next() {
		var a model.Assessment
		if err := scanAssessment(rows, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetByID retrieves an assessment by its UUID.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error) {
	a := &model.Assessment{}
	row := r.pool.QueryRow(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE id = $1`, id)
	if err := scanAssessment(row, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ListForClass returns published assessments open to a class.
// Assessments without a class are open to everyone.
func (r *AssessmentRepository) ListForClass(ctx context.Context, classID int) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assessmentColumns+`
		 FROM assessments
		 WHERE status = $1 AND (class_id IS NULL OR class_id = $2)
		 ORDER BY title`, model.AssessmentStatusPublished, classID)
	if err != nil {
		return nil, err
	}
	return collectAssessments(rows)
}

// ListPublished returns all published assessments.
// Used for cache prewarming on application startup.
func (r *AssessmentRepository) ListPublished(ctx context.Context) ([]model.Assessment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+assessmentColumns+` FROM assessments WHERE status = $1 ORDER BY created_at DESC`,
		model.AssessmentStatusPublished)
	if err != nil {
		return nil, err
	}
	return collectAssessments(rows)
}

// Create inserts a new assessment.
func (r *AssessmentRepository) Create(ctx context.Context, a *model.Assessment) error {
	if a.Status == "" {
		a.Status = model.AssessmentStatusDraft
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO assessments (title, category, difficulty, duration_seconds, max_attempts, class_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at, updated_at`,
		a.Title, a.Category, a.Difficulty, a.DurationSeconds, a.MaxAttempts, a.ClassID, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// UpdateStatus changes an assessment's publication status.
func (r *AssessmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.AssessmentStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE assessments SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	return err
}
