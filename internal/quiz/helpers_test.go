package quiz

import (
	"context"
	"sync"
	"testing"
	"time"
)

const waitTimeout = 2 * time.Second

// manualTicker lets a test decide when a second has passed.
type manualTicker struct {
	ch chan time.Time
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) fn(time.Duration) (<-chan time.Time, func()) {
	return m.ch, func() {}
}

// tick blocks until the clock goroutine has taken the tick.
func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(waitTimeout):
		t.Fatal("tick was not consumed")
	}
}

// consumed reports whether a tick is taken within a short window.
func (m *manualTicker) consumed() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(50 * time.Millisecond):
		return false
	}
}

type recorder struct {
	mu       sync.Mutex
	statuses []Status

	ticks      chan int
	results    chan Result
	reportErrs chan error
}

func newRecorder() *recorder {
	return &recorder{
		ticks:      make(chan int, 64),
		results:    make(chan Result, 8),
		reportErrs: make(chan error, 8),
	}
}

func (r *recorder) OnTick(remaining int) { r.ticks <- remaining }

func (r *recorder) OnStatusChange(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
}

func (r *recorder) OnResult(res Result) { r.results <- res }

func (r *recorder) OnReportError(err error) { r.reportErrs <- err }

func (r *recorder) statusLog() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.statuses))
	copy(out, r.statuses)
	return out
}

func (r *recorder) waitTick(t *testing.T) int {
	t.Helper()
	select {
	case v := <-r.ticks:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("no tick event")
		return 0
	}
}

func (r *recorder) waitResult(t *testing.T) Result {
	t.Helper()
	select {
	case v := <-r.results:
		return v
	case <-time.After(waitTimeout):
		t.Fatal("no result event")
		return Result{}
	}
}

func (r *recorder) noMoreResults(t *testing.T) {
	t.Helper()
	select {
	case v := <-r.results:
		t.Fatalf("unexpected extra result %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

// captureReporter records payloads and optionally fails.
type captureReporter struct {
	payloads chan AttemptPayload
	err      error
}

func newCaptureReporter(err error) *captureReporter {
	return &captureReporter{payloads: make(chan AttemptPayload, 8), err: err}
}

func (c *captureReporter) Report(_ context.Context, p AttemptPayload) error {
	c.payloads <- p
	return c.err
}

func (c *captureReporter) wait(t *testing.T) AttemptPayload {
	t.Helper()
	select {
	case p := <-c.payloads:
		return p
	case <-time.After(waitTimeout):
		t.Fatal("no payload reported")
		return AttemptPayload{}
	}
}

// twoQuestions is the two-question fixture used by most scenarios.
// Correct answers: q1 → q1a, q2 → q2b.
func twoQuestions() []Question {
	return []Question{
		{ID: "q1", Prompt: "2 + 2", Choices: []Choice{
			{ID: "q1a", Text: "4", IsCorrect: true},
			{ID: "q1b", Text: "5"},
		}},
		{ID: "q2", Prompt: "Capital of France", Choices: []Choice{
			{ID: "q2a", Text: "Lyon"},
			{ID: "q2b", Text: "Paris", IsCorrect: true},
			{ID: "q2c", Text: "Nice"},
		}},
	}
}

func threeQuestions() []Question {
	qs := twoQuestions()
	return append(qs, Question{ID: "q3", Prompt: "Largest planet", Choices: []Choice{
		{ID: "q3a", Text: "Jupiter", IsCorrect: true},
		{ID: "q3b", Text: "Mars"},
	}})
}
