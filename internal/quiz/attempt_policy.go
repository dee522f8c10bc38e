package quiz

import "sync"

// AttemptPolicy approves new sessions and records finalized ones.
// Implementations must not block; they run inside the controller's lock.
type AttemptPolicy interface {
	CanStart(a *Assessment) error
	RecordAttempt(a *Assessment)
}

// CountingPolicy enforces MaxAttempts and remembers the attempts it has
// recorded per assessment, so a stale AttemptsUsed handed in by the catalog
// cannot re-open an assessment this policy already counted as used.
type CountingPolicy struct {
	mu   sync.Mutex
	used map[string]int
}

// NewCountingPolicy creates an empty policy.
func NewCountingPolicy() *CountingPolicy {
	return &CountingPolicy{used: make(map[string]int)}
}

// CanStart returns ErrAttemptsExhausted when no attempt is left.
func (p *CountingPolicy) CanStart(a *Assessment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.usedLocked(a) >= a.MaxAttempts {
		return ErrAttemptsExhausted
	}
	return nil
}

// RecordAttempt advances AttemptsUsed by exactly one.
func (p *CountingPolicy) RecordAttempt(a *Assessment) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a.AttemptsUsed = p.usedLocked(a) + 1
	p.used[a.ID] = a.AttemptsUsed
}

// Used returns the number of attempts recorded for assessmentID.
func (p *CountingPolicy) Used(assessmentID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.used[assessmentID]
}

func (p *CountingPolicy) usedLocked(a *Assessment) int {
	if n := p.used[a.ID]; n > a.AttemptsUsed {
		return n
	}
	return a.AttemptsUsed
}
