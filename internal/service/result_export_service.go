package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/xuri/excelize/v2"
)

const resultsSheet = "Results"

// AttemptLister lists persisted attempts.
type AttemptLister interface {
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error)
}

// ResultExportService serves persisted attempts to staff.
type ResultExportService struct {
	attempts AttemptLister
	log      zerolog.Logger
}

// NewResultExportService creates a new ResultExportService.
func NewResultExportService(attempts AttemptLister, log zerolog.Logger) *ResultExportService {
	return &ResultExportService{
		attempts: attempts,
		log:      log.With().Str("component", "result_export_service").Logger(),
	}
}

// List returns a page of attempts for an assessment.
func (s *ResultExportService) List(ctx context.Context, assessmentID uuid.UUID, page, perPage int) ([]model.Attempt, int64, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	attempts, total, err := s.attempts.ListByAssessment(ctx, assessmentID, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list attempts: %w", err)
	}
	if attempts == nil {
		attempts = []model.Attempt{}
	}
	return attempts, total, nil
}

// Export renders every attempt of an assessment as an xlsx workbook.
func (s *ResultExportService) Export(ctx context.Context, assessmentID uuid.UUID) ([]byte, error) {
	attempts, _, err := s.attempts.ListByAssessment(ctx, assessmentID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(resultsSheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	header := []any{
		"Attempt ID", "Student ID", "Status", "Score (%)", "Correct", "Incorrect",
		"Total Questions", "Time Spent (s)", "Started At", "Finished At",
	}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, a := range attempts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			a.ID.String(),
			a.StudentID,
			string(a.Status),
			a.ScorePercent,
			a.CorrectCount,
			a.IncorrectCount,
			a.TotalQuestions,
			a.TimeSpentSeconds,
			a.StartedAt.UTC().Format("2006-01-02 15:04:05"),
			a.FinishedAt.UTC().Format("2006-01-02 15:04:05"),
		}
		if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	s.log.Info().
		Str("assessment_id", assessmentID.String()).
		Int("rows", len(attempts)).
		Msg("Results exported")
	return buf.Bytes(), nil
}
