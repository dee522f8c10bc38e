package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
	"github.com/stemsi/exstem-quiz/internal/validator"
)

// Domain Errors
var (
	ErrAssessmentNotPublished = errors.New("assessment is not published")
	ErrAssessmentNotFound     = errors.New("assessment not found")
	ErrNotEligible            = errors.New("assessment is not open to this class")
)

// AssessmentStore is the slice of the assessment repository the catalog needs.
type AssessmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Assessment, error)
	ListForClass(ctx context.Context, classID int) ([]model.Assessment, error)
	ListPublished(ctx context.Context) ([]model.Assessment, error)
}

// QuestionStore loads question content.
type QuestionStore interface {
	ListByAssessment(ctx context.Context, assessmentID uuid.UUID) ([]model.Question, error)
}

// AttemptCounter counts persisted attempts.
type AttemptCounter interface {
	CountByStudent(ctx context.Context, assessmentID uuid.UUID, studentID int) (int, error)
}

// LobbyStatus is the state of an assessment as seen from the student lobby.
type LobbyStatus string

const (
	LobbyStatusAvailable  LobbyStatus = "AVAILABLE"
	LobbyStatusInProgress LobbyStatus = "IN_PROGRESS"
	LobbyStatusExhausted  LobbyStatus = "EXHAUSTED"
)

// LobbyAssessment is an assessment as listed for a student.
type LobbyAssessment struct {
	quiz.Assessment
	LobbyStatus LobbyStatus `json:"lobby_status"`
}

// assessmentContent is what the content cache key holds.
type assessmentContent struct {
	Assessment model.Assessment `json:"assessment"`
	Questions  []model.Question `json:"questions"`
}

// CatalogService serves assessments and their question content, with Redis
// as the fast lane and PostgreSQL as the source of truth.
type CatalogService struct {
	assessments AssessmentStore
	questions   QuestionStore
	attempts    AttemptCounter
	rdb         *redis.Client
	log         zerolog.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(
	assessments AssessmentStore,
	questions QuestionStore,
	attempts AttemptCounter,
	rdb *redis.Client,
	log zerolog.Logger,
) *CatalogService {
	return &CatalogService{
		assessments: assessments,
		questions:   questions,
		attempts:    attempts,
		rdb:         rdb,
		log:         log.With().Str("component", "catalog_service").Logger(),
	}
}

// ListForStudent returns the published assessments open to the student's
// class, each with the attempts already used and a lobby status.
func (s *CatalogService) ListForStudent(ctx context.Context, studentID, classID int) ([]LobbyAssessment, error) {
	list, err := s.assessments.ListForClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}

	active, err := s.rdb.HGet(ctx, config.CacheKey.StudentActiveQuizKey(studentID), activeAssessmentField).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get active quiz: %w", err)
	}

	lobby := make([]LobbyAssessment, 0, len(list))
	for i := range list {
		used, err := s.attemptsUsed(ctx, list[i].ID, studentID)
		if err != nil {
			return nil, err
		}

		entry := LobbyAssessment{Assessment: toQuizAssessment(&list[i], used)}
		switch {
		case active == list[i].ID.String():
			entry.LobbyStatus = LobbyStatusInProgress
		case used >= list[i].MaxAttempts:
			entry.LobbyStatus = LobbyStatusExhausted
		default:
			entry.LobbyStatus = LobbyStatusAvailable
		}
		lobby = append(lobby, entry)
	}
	return lobby, nil
}

// GetAssessment returns a published assessment with the student's attempt count.
func (s *CatalogService) GetAssessment(ctx context.Context, id uuid.UUID, studentID int) (*quiz.Assessment, error) {
	content, err := s.content(ctx, id)
	if err != nil {
		return nil, err
	}

	used, err := s.attemptsUsed(ctx, id, studentID)
	if err != nil {
		return nil, err
	}

	a := toQuizAssessment(&content.Assessment, used)
	return &a, nil
}

// CheckEligible reports whether a class may take the assessment.
func (s *CatalogService) CheckEligible(ctx context.Context, id uuid.UUID, classID int) error {
	content, err := s.content(ctx, id)
	if err != nil {
		return err
	}
	if cid := content.Assessment.ClassID; cid != nil && *cid != classID {
		return ErrNotEligible
	}
	return nil
}

// GetQuestions returns the full question content, correctness flags
// included, ready for the quiz engine.
func (s *CatalogService) GetQuestions(ctx context.Context, id uuid.UUID) ([]quiz.Question, error) {
	content, err := s.content(ctx, id)
	if err != nil {
		return nil, err
	}
	return toQuizQuestions(content.Questions), nil
}

// StudentPaper returns the question content without correctness flags.
func (s *CatalogService) StudentPaper(ctx context.Context, id uuid.UUID) (*model.AssessmentPaper, error) {
	content, err := s.content(ctx, id)
	if err != nil {
		return nil, err
	}

	paper := &model.AssessmentPaper{
		AssessmentID:    content.Assessment.ID,
		Title:           content.Assessment.Title,
		DurationSeconds: content.Assessment.DurationSeconds,
		Questions:       make([]model.QuestionForStudent, len(content.Questions)),
	}
	for i, q := range content.Questions {
		sq := model.QuestionForStudent{
			ID:       q.ID,
			Prompt:   q.Prompt,
			OrderNum: q.OrderNum,
			Choices:  make([]model.ChoiceForStudent, len(q.Choices)),
		}
		for j, c := range q.Choices {
			sq.Choices[j] = model.ChoiceForStudent{ID: c.ID, Body: c.Body}
		}
		paper.Questions[i] = sq
	}
	return paper, nil
}

// WarmCache loads an assessment's content from PostgreSQL into Redis.
func (s *CatalogService) WarmCache(ctx context.Context, a *model.Assessment) error {
	_, err := s.warm(ctx, a)
	return err
}

// PrewarmAllCaches loads every published assessment into Redis on startup.
func (s *CatalogService) PrewarmAllCaches(ctx context.Context) error {
	list, err := s.assessments.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published assessments: %w", err)
	}

	if len(list) == 0 {
		s.log.Info().Msg("No published assessments to prewarm")
		return nil
	}

	warmed := 0
	for i := range list {
		if err := s.WarmCache(ctx, &list[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("assessment_id", list[i].ID.String()).
				Msg("Failed to warm assessment, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(list)).
		Msg("Prewarming complete")
	return nil
}

// content reads the cached content, falling back to PostgreSQL and
// re-warming the cache on a miss.
func (s *CatalogService) content(ctx context.Context, id uuid.UUID) (*assessmentContent, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.AssessmentContentKey(id.String())).Bytes()
	if err == nil {
		var c assessmentContent
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		return &c, nil
	}
	if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get content: %w", err)
	}

	// [CACHE MISS] Load from the source of truth and put it back.
	a, err := s.assessments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAssessmentNotFound, err)
	}
	if a.Status != model.AssessmentStatusPublished {
		return nil, ErrAssessmentNotPublished
	}
	return s.warm(ctx, a)
}

func (s *CatalogService) warm(ctx context.Context, a *model.Assessment) (*assessmentContent, error) {
	questions, err := s.questions.ListByAssessment(ctx, a.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, quiz.ErrEmptyAssessment
	}

	// Reject malformed content here instead of at session start.
	for i := range questions {
		if err := validator.Struct(&questions[i]); err != nil {
			return nil, fmt.Errorf("question %s: %w", questions[i].ID, err)
		}
	}
	if err := quiz.ValidateQuestions(toQuizQuestions(questions)); err != nil {
		return nil, err
	}

	c := &assessmentContent{Assessment: *a, Questions: questions}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.AssessmentContentKey(a.ID.String()), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("assessment_id", a.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return c, nil
}

// attemptsUsed reads the Redis counter, falling back to the persisted count
// and healing the counter when it is missing.
func (s *CatalogService) attemptsUsed(ctx context.Context, assessmentID uuid.UUID, studentID int) (int, error) {
	key := config.CacheKey.StudentAttemptsKey(assessmentID.String(), studentID)

	val, err := s.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		n, dbErr := s.attempts.CountByStudent(ctx, assessmentID, studentID)
		if dbErr != nil {
			return 0, fmt.Errorf("count attempts: %w", dbErr)
		}
		// SETNX so a concurrent INCR from a finishing session is not overwritten.
		_ = s.rdb.SetNX(ctx, key, n, 0).Err()
		return n, nil
	case err != nil:
		return 0, fmt.Errorf("redis error getting attempts: %w", err)
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid attempts format in cache: %w", err)
	}
	return n, nil
}

func toQuizAssessment(a *model.Assessment, used int) quiz.Assessment {
	return quiz.Assessment{
		ID:              a.ID.String(),
		Title:           a.Title,
		Category:        a.Category,
		Difficulty:      a.Difficulty,
		DurationSeconds: a.DurationSeconds,
		MaxAttempts:     a.MaxAttempts,
		AttemptsUsed:    used,
	}
}

func toQuizQuestions(questions []model.Question) []quiz.Question {
	out := make([]quiz.Question, len(questions))
	for i, q := range questions {
		choices := make([]quiz.Choice, len(q.Choices))
		for j, c := range q.Choices {
			choices[j] = quiz.Choice{ID: c.ID.String(), Text: c.Body, IsCorrect: c.IsCorrect}
		}
		out[i] = quiz.Question{ID: q.ID.String(), Prompt: q.Prompt, Choices: choices}
	}
	return out
}
