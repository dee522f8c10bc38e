package quiz

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Listener receives session events. Callbacks run outside the controller's
// lock and may call back into the controller. A tick taken just before a
// submit or expiry can therefore arrive after the terminal status; listeners
// drop ticks once they have seen a status other than Active.
type Listener interface {
	OnTick(remainingSeconds int)
	OnStatusChange(status Status)
	OnResult(result Result)
	OnReportError(err error)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) OnTick(int) {}

func (NopListener) OnStatusChange(Status) {}

func (NopListener) OnResult(Result) {}

func (NopListener) OnReportError(error) {}

const defaultReportTimeout = 10 * time.Second

// Controller drives one quiz session at a time through
// Idle → Active → Submitting → Completed|Expired.
//
// The mutex plays the role of the event loop: user calls and clock callbacks
// are serialized through it, and finalization flips the status away from
// Active before any other side effect, so scoring and attempt recording
// happen at most once per session even when expiry races a manual submit.
type Controller struct {
	mu sync.Mutex

	policy        AttemptPolicy
	reporter      ResultReporter
	listener      Listener
	newClock      func() *Clock
	now           func() time.Time
	newID         func() string
	reportTimeout time.Duration
	log           zerolog.Logger

	sess  *session
	clock *Clock
}

type session struct {
	id          string
	assessment  *Assessment
	questions   []Question
	questionIDs []string
	position    map[string]int
	answers     *AnswerStore
	startedAt   time.Time
	finishedAt  time.Time
	remaining   int
	current     int
	status      Status
	result      *Result
}

// Option configures a Controller.
type Option func(*Controller)

// WithPolicy sets the attempt policy. Defaults to a fresh CountingPolicy.
func WithPolicy(p AttemptPolicy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithReporter sets where finished attempts are sent.
func WithReporter(r ResultReporter) Option {
	return func(c *Controller) { c.reporter = r }
}

// WithListener sets the event sink.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithClockFactory sets how a clock is created for each session.
func WithClockFactory(fn func() *Clock) Option {
	return func(c *Controller) { c.newClock = fn }
}

// WithNow overrides the wall clock used for timestamps.
func WithNow(fn func() time.Time) Option {
	return func(c *Controller) { c.now = fn }
}

// WithSessionIDs overrides session id generation.
func WithSessionIDs(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

// WithReportTimeout bounds each reporter call.
func WithReportTimeout(d time.Duration) Option {
	return func(c *Controller) { c.reportTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Controller) { c.log = log.With().Str("component", "quiz_controller").Logger() }
}

// NewController creates an idle controller.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		policy:        NewCountingPolicy(),
		listener:      NopListener{},
		newClock:      func() *Clock { return NewClock() },
		now:           time.Now,
		newID:         uuid.NewString,
		reportTimeout: defaultReportTimeout,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start opens a session for a and starts its clock.
//
// a is retained for the life of the session; its AttemptsUsed is advanced by
// the policy when the session is finalized.
func (c *Controller) Start(a *Assessment, questions []Question) error {
	c.mu.Lock()

	if c.sess != nil && !c.sess.status.Terminal() {
		c.mu.Unlock()
		return ErrSessionAlreadyActive
	}
	if err := c.policy.CanStart(a); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := ValidateQuestions(questions); err != nil {
		c.mu.Unlock()
		return err
	}
	if a.DurationSeconds <= 0 {
		c.mu.Unlock()
		return ErrInvalidDuration
	}

	qs := make([]Question, len(questions))
	copy(qs, questions)
	ids := make([]string, len(qs))
	position := make(map[string]int, len(qs))
	for i, q := range qs {
		ids[i] = q.ID
		position[q.ID] = i
	}

	sess := &session{
		id:          c.newID(),
		assessment:  a,
		questions:   qs,
		questionIDs: ids,
		position:    position,
		answers:     NewAnswerStore(),
		startedAt:   c.now(),
		remaining:   a.DurationSeconds,
		status:      StatusActive,
	}

	clock := c.newClock()
	err := clock.Start(a.DurationSeconds,
		func(remaining int) { c.handleTick(sess, remaining) },
		func() { c.handleExpire(sess) },
	)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("start clock: %w", err)
	}

	c.sess = sess
	c.clock = clock
	c.mu.Unlock()

	c.log.Debug().
		Str("session_id", sess.id).
		Str("assessment_id", a.ID).
		Int("duration_seconds", a.DurationSeconds).
		Int("questions", len(qs)).
		Msg("Quiz session started")

	c.listener.OnStatusChange(StatusActive)
	return nil
}

// SelectAnswer records choiceID for questionID regardless of the current
// question index.
func (c *Controller) SelectAnswer(questionID, choiceID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.activeLocked()
	if err != nil {
		return err
	}

	i, ok := sess.position[questionID]
	if !ok {
		return fmt.Errorf("%w: unknown question %q", ErrInvalidChoice, questionID)
	}
	if !sess.questions[i].HasChoice(choiceID) {
		return fmt.Errorf("%w: %q is not a choice of question %q", ErrInvalidChoice, choiceID, questionID)
	}

	sess.answers.Set(questionID, choiceID)
	return nil
}

// Navigate moves the view pointer. Out-of-range indexes are rejected.
func (c *Controller) Navigate(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.activeLocked()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(sess.questions) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrQuestionIndexOutOfRange, index, len(sess.questions))
	}

	sess.current = index
	return nil
}

// Submit finalizes the session as Completed. Unless force is set every
// question must be answered; otherwise ErrIncompleteAnswers is returned and
// the session stays Active.
func (c *Controller) Submit(force bool) (Result, error) {
	c.mu.Lock()

	sess, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return Result{}, err
	}
	if !force && !sess.answers.AllAnswered(sess.questionIDs) {
		c.mu.Unlock()
		return Result{}, ErrIncompleteAnswers
	}

	fin := c.finalizeLocked(sess, StatusCompleted)
	c.mu.Unlock()

	c.publish(fin)
	return fin.payload.result(), nil
}

// Abandon drops an Active session without scoring it or recording an attempt.
func (c *Controller) Abandon() error {
	c.mu.Lock()

	sess, err := c.activeLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.clock.Cancel()
	c.sess = nil
	c.clock = nil
	c.mu.Unlock()

	c.log.Debug().Str("session_id", sess.id).Msg("Quiz session abandoned")
	c.listener.OnStatusChange(StatusIdle)
	return nil
}

// Discard forgets a finalized session once its Result has been accepted.
func (c *Controller) Discard() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return nil
	}
	if !c.sess.status.Terminal() {
		return ErrSessionAlreadyActive
	}
	c.sess = nil
	c.clock = nil
	return nil
}

// Status returns the current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil {
		return StatusIdle
	}
	return c.sess.status
}

// Snapshot copies the current session. ErrSessionNotActive is returned when
// the controller is idle.
func (c *Controller) Snapshot() (SessionSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess := c.sess
	if sess == nil {
		return SessionSnapshot{}, ErrSessionNotActive
	}

	snap := SessionSnapshot{
		SessionID:            sess.id,
		AssessmentID:         sess.assessment.ID,
		StartedAt:            sess.startedAt,
		RemainingSeconds:     sess.remaining,
		CurrentQuestionIndex: sess.current,
		TotalQuestions:       len(sess.questions),
		Status:               sess.status,
		Answers:              sess.answers.Snapshot(),
	}
	if sess.result != nil {
		res := *sess.result
		finished := sess.finishedAt
		snap.Result = &res
		snap.FinishedAt = &finished
	}
	return snap, nil
}

func (c *Controller) activeLocked() (*session, error) {
	if c.sess == nil || c.sess.status != StatusActive {
		return nil, ErrSessionNotActive
	}
	return c.sess, nil
}

func (c *Controller) handleTick(sess *session, remaining int) {
	c.mu.Lock()
	if c.sess != sess || sess.status != StatusActive {
		c.mu.Unlock()
		return
	}
	sess.remaining = remaining
	c.mu.Unlock()

	c.listener.OnTick(remaining)
}

func (c *Controller) handleExpire(sess *session) {
	c.mu.Lock()
	if c.sess != sess || sess.status != StatusActive {
		c.mu.Unlock()
		return
	}
	sess.remaining = 0
	fin := c.finalizeLocked(sess, StatusExpired)
	c.mu.Unlock()

	c.publish(fin)
}

type finalization struct {
	status  Status
	payload AttemptPayload
}

func (p AttemptPayload) result() Result {
	return Result{
		ScorePercent:     p.ScorePercent,
		CorrectCount:     p.CorrectCount,
		IncorrectCount:   p.TotalQuestions - p.CorrectCount,
		TotalQuestions:   p.TotalQuestions,
		TimeSpentSeconds: p.TimeSpentSeconds,
	}
}

// finalizeLocked runs the single submission path. Caller holds c.mu and has
// checked that sess is Active.
func (c *Controller) finalizeLocked(sess *session, terminal Status) finalization {
	c.clock.Cancel()
	sess.status = StatusSubmitting

	answers := sess.answers.Snapshot()
	res, err := Score(sess.questions, answers)
	if err != nil {
		// Unreachable: Start rejects empty question sets.
		c.log.Error().Err(err).Str("session_id", sess.id).Msg("Scoring failed")
	}
	res.TimeSpentSeconds = sess.assessment.DurationSeconds - sess.remaining

	sess.finishedAt = c.now()
	sess.result = &res
	sess.status = terminal
	c.policy.RecordAttempt(sess.assessment)

	c.log.Info().
		Str("session_id", sess.id).
		Str("assessment_id", sess.assessment.ID).
		Str("status", terminal.String()).
		Int("score_percent", res.ScorePercent).
		Int("correct", res.CorrectCount).
		Int("total", res.TotalQuestions).
		Msg("Quiz session finalized")

	return finalization{
		status:  terminal,
		payload: buildPayload(sess.id, sess.assessment, sess.questions, answers, terminal, res, sess.startedAt, sess.finishedAt),
	}
}

func (c *Controller) publish(fin finalization) {
	c.listener.OnStatusChange(StatusSubmitting)
	c.listener.OnStatusChange(fin.status)
	c.listener.OnResult(fin.payload.result())
	c.report(fin.payload)
}

func (c *Controller) report(p AttemptPayload) {
	if c.reporter == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.reportTimeout)
		defer cancel()

		if err := c.reporter.Report(ctx, p); err != nil {
			c.log.Error().Err(err).
				Str("session_id", p.SessionID).
				Str("assessment_id", p.AssessmentID).
				Msg("Result report failed")
			c.listener.OnReportError(err)
		}
	}()
}
