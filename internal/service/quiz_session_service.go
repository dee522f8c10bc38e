package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-quiz/internal/config"
	"github.com/stemsi/exstem-quiz/internal/database"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/quiz"
)

const (
	activeAssessmentField = "assessment_id"
	activeStartedField    = "started_at"
	activeEndsField       = "ends_at"

	// mirrorGrace keeps Redis session state around after the clock runs out
	// so the result worker can still match it.
	mirrorGrace = 10 * time.Minute

	subscriberBuffer = 32
)

// QuizCatalog is what the session service needs from the catalog.
type QuizCatalog interface {
	CheckEligible(ctx context.Context, id uuid.UUID, classID int) error
	GetAssessment(ctx context.Context, id uuid.UUID, studentID int) (*quiz.Assessment, error)
	GetQuestions(ctx context.Context, id uuid.UUID) ([]quiz.Question, error)
}

// AttemptQueue hands out per-student reporters that queue finished attempts
// for persistence.
type AttemptQueue interface {
	ForStudent(studentID int) quiz.ResultReporter
}

// QuizEventType names the events streamed to a student.
type QuizEventType string

const (
	QuizEventTick        QuizEventType = "tick"
	QuizEventStatus      QuizEventType = "status"
	QuizEventResult      QuizEventType = "result"
	QuizEventReportError QuizEventType = "report_error"
)

// QuizEvent is one event of a student's live session.
type QuizEvent struct {
	Type             QuizEventType
	RemainingSeconds int
	Status           quiz.Status
	Result           *quiz.Result
	Err              error
}

// QuizSessionOption configures a QuizSessionService.
type QuizSessionOption func(*QuizSessionService)

// WithClockFactory sets how session clocks are built. Tests use it to drive time.
func WithClockFactory(fn func() *quiz.Clock) QuizSessionOption {
	return func(s *QuizSessionService) { s.newClock = fn }
}

// QuizSessionService hosts one quiz controller per student and mirrors
// session activity into Redis.
type QuizSessionService struct {
	catalog       QuizCatalog
	results       AttemptQueue
	rdb           *redis.Client
	reportTimeout time.Duration
	newClock      func() *quiz.Clock
	log           zerolog.Logger

	mu       sync.Mutex
	sessions map[int]*liveSession
}

// NewQuizSessionService creates a new QuizSessionService.
func NewQuizSessionService(
	catalog QuizCatalog,
	results AttemptQueue,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
	opts ...QuizSessionOption,
) *QuizSessionService {
	s := &QuizSessionService{
		catalog:       catalog,
		results:       results,
		rdb:           rdb,
		reportTimeout: cfg.ReportTimeout,
		log:           log.With().Str("component", "quiz_session_service").Logger(),
		sessions:      make(map[int]*liveSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a quiz session for the student.
func (s *QuizSessionService) Start(ctx context.Context, studentID, classID int, assessmentID uuid.UUID) (quiz.SessionSnapshot, error) {
	if err := s.catalog.CheckEligible(ctx, assessmentID, classID); err != nil {
		return quiz.SessionSnapshot{}, err
	}
	a, err := s.catalog.GetAssessment(ctx, assessmentID, studentID)
	if err != nil {
		return quiz.SessionSnapshot{}, err
	}
	questions, err := s.catalog.GetQuestions(ctx, assessmentID)
	if err != nil {
		return quiz.SessionSnapshot{}, err
	}

	ls := s.session(studentID)
	if err := ls.ctrl.Start(a, questions); err != nil {
		return quiz.SessionSnapshot{}, err
	}

	snap, err := ls.ctrl.Snapshot()
	if err != nil {
		return quiz.SessionSnapshot{}, err
	}

	ttl := time.Duration(a.DurationSeconds)*time.Second + mirrorGrace
	activeKey := config.CacheKey.StudentActiveQuizKey(studentID)
	answersKey := config.CacheKey.StudentAnswersKey(a.ID, studentID)

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, activeKey, answersKey)
	pipe.HSet(ctx, activeKey,
		activeAssessmentField, a.ID,
		database.SessionField, snap.SessionID,
		activeStartedField, snap.StartedAt.Unix(),
		activeEndsField, snap.StartedAt.Add(time.Duration(a.DurationSeconds)*time.Second).Unix(),
	)
	pipe.HSet(ctx, answersKey, database.SessionField, snap.SessionID)
	pipe.Expire(ctx, activeKey, ttl)
	pipe.Expire(ctx, answersKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		// The session runs in memory; Redis only mirrors it.
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to mirror session start")
	}

	s.log.Info().
		Int("student_id", studentID).
		Str("assessment_id", a.ID).
		Str("session_id", snap.SessionID).
		Msg("Quiz started")
	return snap, nil
}

// SelectAnswer records a choice and mirrors it to Redis.
func (s *QuizSessionService) SelectAnswer(ctx context.Context, studentID int, questionID, choiceID string) error {
	ls, err := s.existing(studentID)
	if err != nil {
		return err
	}
	if err := ls.ctrl.SelectAnswer(questionID, choiceID); err != nil {
		return err
	}

	snap, err := ls.ctrl.Snapshot()
	if err != nil {
		return nil
	}

	event, _ := json.Marshal(model.AnswerEvent{
		StudentID:    studentID,
		AssessmentID: snap.AssessmentID,
		SessionID:    snap.SessionID,
		QuestionID:   questionID,
		ChoiceID:     choiceID,
		SelectedAt:   time.Now().UTC(),
	})

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, config.CacheKey.StudentAnswersKey(snap.AssessmentID, studentID), questionID, choiceID)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswerEventsQueue, event)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Int("student_id", studentID).Msg("Failed to mirror answer")
	}
	return nil
}

// Navigate moves the student's current question.
func (s *QuizSessionService) Navigate(studentID, index int) error {
	ls, err := s.existing(studentID)
	if err != nil {
		return err
	}
	return ls.ctrl.Navigate(index)
}

// Submit finalizes the student's session.
func (s *QuizSessionService) Submit(studentID int, force bool) (quiz.Result, error) {
	ls, err := s.existing(studentID)
	if err != nil {
		return quiz.Result{}, err
	}
	return ls.ctrl.Submit(force)
}

// State returns the student's current or last session. Without a live
// session it falls back to the Redis mirror, so a session interrupted by a
// restart is still reported until its deadline.
func (s *QuizSessionService) State(ctx context.Context, studentID int) (quiz.SessionSnapshot, error) {
	ls, err := s.existing(studentID)
	if err == nil {
		snap, err := ls.ctrl.Snapshot()
		if !errors.Is(err, quiz.ErrSessionNotActive) {
			return snap, err
		}
	}
	return s.mirroredState(ctx, studentID)
}

func (s *QuizSessionService) mirroredState(ctx context.Context, studentID int) (quiz.SessionSnapshot, error) {
	active, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentActiveQuizKey(studentID)).Result()
	if err != nil {
		return quiz.SessionSnapshot{}, fmt.Errorf("read session mirror: %w", err)
	}
	sessionID := active[database.SessionField]
	assessmentID := active[activeAssessmentField]
	if sessionID == "" || assessmentID == "" {
		return quiz.SessionSnapshot{}, quiz.ErrSessionNotActive
	}

	startedAt, _ := strconv.ParseInt(active[activeStartedField], 10, 64)
	endsAt, err := strconv.ParseInt(active[activeEndsField], 10, 64)
	if err != nil {
		return quiz.SessionSnapshot{}, quiz.ErrSessionNotActive
	}
	remaining := int(time.Until(time.Unix(endsAt, 0)) / time.Second)
	if remaining <= 0 {
		return quiz.SessionSnapshot{}, quiz.ErrSessionNotActive
	}

	answers := make(quiz.AnswerMap)
	mirrored, err := s.rdb.HGetAll(ctx, config.CacheKey.StudentAnswersKey(assessmentID, studentID)).Result()
	if err != nil {
		return quiz.SessionSnapshot{}, fmt.Errorf("read answer mirror: %w", err)
	}
	// A hash left by an older session carries a different tag.
	if mirrored[database.SessionField] == sessionID {
		for qid, cid := range mirrored {
			if qid != database.SessionField {
				answers[qid] = cid
			}
		}
	}

	snap := quiz.SessionSnapshot{
		SessionID:        sessionID,
		AssessmentID:     assessmentID,
		StartedAt:        time.Unix(startedAt, 0).UTC(),
		RemainingSeconds: remaining,
		Status:           quiz.StatusActive,
		Answers:          answers,
		Recovered:        true,
	}
	if id, err := uuid.Parse(assessmentID); err == nil {
		if questions, err := s.catalog.GetQuestions(ctx, id); err == nil {
			snap.TotalQuestions = len(questions)
		}
	}
	return snap, nil
}

// Abandon drops a running session without recording an attempt.
func (s *QuizSessionService) Abandon(ctx context.Context, studentID int) error {
	ls, err := s.existing(studentID)
	if err != nil {
		return err
	}

	snap, err := ls.ctrl.Snapshot()
	if err != nil {
		return err
	}
	if err := ls.ctrl.Abandon(); err != nil {
		return err
	}

	keys := []string{
		config.CacheKey.StudentActiveQuizKey(studentID),
		config.CacheKey.StudentAnswersKey(snap.AssessmentID, studentID),
	}
	for _, key := range keys {
		if err := database.DeleteIfSession.Run(ctx, s.rdb, []string{key}, snap.SessionID).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Failed to clear session state")
		}
	}

	s.log.Info().
		Int("student_id", studentID).
		Str("session_id", snap.SessionID).
		Msg("Quiz abandoned")
	return nil
}

// Subscribe streams the student's session events until cancel is called.
func (s *QuizSessionService) Subscribe(studentID int) (<-chan QuizEvent, func()) {
	return s.session(studentID).subscribe()
}

// Close abandons every running session so no clock outlives the service.
func (s *QuizSessionService) Close() {
	s.mu.Lock()
	sessions := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		sessions = append(sessions, ls)
	}
	s.mu.Unlock()

	for _, ls := range sessions {
		if err := ls.ctrl.Abandon(); err == nil {
			s.log.Warn().Int("student_id", ls.studentID).Msg("Running quiz dropped on shutdown")
		}
	}
}

func (s *QuizSessionService) existing(studentID int) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls, ok := s.sessions[studentID]
	if !ok {
		return nil, quiz.ErrSessionNotActive
	}
	return ls, nil
}

func (s *QuizSessionService) session(studentID int) *liveSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ls, ok := s.sessions[studentID]; ok {
		return ls
	}

	ls := &liveSession{
		studentID: studentID,
		subs:      make(map[chan QuizEvent]struct{}),
	}
	opts := []quiz.Option{
		quiz.WithPolicy(quiz.NewCountingPolicy()),
		quiz.WithListener(ls),
		quiz.WithReporter(s.reporterFor(studentID)),
		quiz.WithLogger(s.log.With().Int("student_id", studentID).Logger()),
	}
	if s.reportTimeout > 0 {
		opts = append(opts, quiz.WithReportTimeout(s.reportTimeout))
	}
	if s.newClock != nil {
		opts = append(opts, quiz.WithClockFactory(s.newClock))
	}
	ls.ctrl = quiz.NewController(opts...)

	s.sessions[studentID] = ls
	return ls
}

// reporterFor queues the attempt, then updates the student's Redis
// bookkeeping: attempt counter, active-session pointer and monitor channel.
func (s *QuizSessionService) reporterFor(studentID int) quiz.ResultReporter {
	queue := s.results.ForStudent(studentID)
	return quiz.ReporterFunc(func(ctx context.Context, p quiz.AttemptPayload) error {
		var errs []error
		if err := queue.Report(ctx, p); err != nil {
			errs = append(errs, err)
		}

		monitor, _ := json.Marshal(model.MonitorEvent{
			StudentID:    studentID,
			SessionID:    p.SessionID,
			Status:       p.Status.String(),
			ScorePercent: p.ScorePercent,
		})

		activeKey := config.CacheKey.StudentActiveQuizKey(studentID)
		pipe := s.rdb.Pipeline()
		pipe.Incr(ctx, config.CacheKey.StudentAttemptsKey(p.AssessmentID, studentID))
		database.DeleteIfSession.Eval(ctx, pipe, []string{activeKey}, p.SessionID)
		pipe.Publish(ctx, config.CacheKey.AssessmentMonitorChannel(p.AssessmentID), monitor)
		if _, err := pipe.Exec(ctx); err != nil {
			errs = append(errs, fmt.Errorf("update attempt bookkeeping: %w", err))
		}
		return errors.Join(errs...)
	})
}

// liveSession fans a controller's events out to subscribers.
type liveSession struct {
	studentID int
	ctrl      *quiz.Controller

	mu   sync.Mutex
	subs map[chan QuizEvent]struct{}
	// ticking is false outside Active so a tick that raced finalization is
	// not delivered after the status that ended the session.
	ticking bool
}

func (l *liveSession) subscribe() (<-chan QuizEvent, func()) {
	ch := make(chan QuizEvent, subscriberBuffer)

	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, ch)
			l.mu.Unlock()
			close(ch)
		})
	}
}

// broadcast never blocks the controller; a subscriber that falls behind
// misses events.
func (l *liveSession) broadcast(ev QuizEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch ev.Type {
	case QuizEventTick:
		if !l.ticking {
			return
		}
	case QuizEventStatus:
		l.ticking = ev.Status == quiz.StatusActive
	}

	for ch := range l.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (l *liveSession) OnTick(remaining int) {
	l.broadcast(QuizEvent{Type: QuizEventTick, RemainingSeconds: remaining})
}

func (l *liveSession) OnStatusChange(status quiz.Status) {
	l.broadcast(QuizEvent{Type: QuizEventStatus, Status: status})
}

func (l *liveSession) OnResult(res quiz.Result) {
	l.broadcast(QuizEvent{Type: QuizEventResult, Result: &res})
}

func (l *liveSession) OnReportError(err error) {
	l.broadcast(QuizEvent{Type: QuizEventReportError, Err: err})
}
