package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-quiz/internal/model"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

// fakeStore backs the assessment, question and attempt interfaces.
type fakeStore struct {
	mu          sync.Mutex
	assessments map[uuid.UUID]model.Assessment
	questions   map[uuid.UUID][]model.Question
	attempts    map[string]int
	loads       int
	counts      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assessments: make(map[uuid.UUID]model.Assessment),
		questions:   make(map[uuid.UUID][]model.Question),
		attempts:    make(map[string]int),
	}
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (*model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assessments[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &a, nil
}

func (f *fakeStore) ListForClass(_ context.Context, classID int) ([]model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assessment
	for _, a := range f.assessments {
		if a.Status == model.AssessmentStatusPublished && (a.ClassID == nil || *a.ClassID == classID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPublished(ctx context.Context) ([]model.Assessment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assessment
	for _, a := range f.assessments {
		if a.Status == model.AssessmentStatusPublished {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByAssessment(_ context.Context, id uuid.UUID) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.questions[id], nil
}

func (f *fakeStore) CountByStudent(_ context.Context, id uuid.UUID, studentID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	return f.attempts[attemptKey(id, studentID)], nil
}

func attemptKey(id uuid.UUID, studentID int) string {
	return fmt.Sprintf("%s/%d", id, studentID)
}

// addAssessment stores a published two-question assessment.
// Correct answers are the first choice of each question.
func (f *fakeStore) addAssessment(maxAttempts, durationSeconds int, classID *int) (model.Assessment, []model.Question) {
	a := model.Assessment{
		ID:              uuid.New(),
		Title:           "Arithmetic",
		Category:        "math",
		Difficulty:      "easy",
		DurationSeconds: durationSeconds,
		MaxAttempts:     maxAttempts,
		ClassID:         classID,
		Status:          model.AssessmentStatusPublished,
	}
	qs := []model.Question{
		{ID: uuid.New(), AssessmentID: a.ID, Prompt: "2 + 2", OrderNum: 1, Choices: []model.Choice{
			{ID: uuid.New(), Body: "4", IsCorrect: true, OrderNum: 1},
			{ID: uuid.New(), Body: "5", OrderNum: 2},
		}},
		{ID: uuid.New(), AssessmentID: a.ID, Prompt: "3 + 3", OrderNum: 2, Choices: []model.Choice{
			{ID: uuid.New(), Body: "6", IsCorrect: true, OrderNum: 1},
			{ID: uuid.New(), Body: "7", OrderNum: 2},
		}},
	}

	f.mu.Lock()
	f.assessments[a.ID] = a
	f.questions[a.ID] = qs
	f.mu.Unlock()
	return a, qs
}

var errQueueDown = errors.New("queue down")
