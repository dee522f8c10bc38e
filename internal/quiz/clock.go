package quiz

import (
	"sync"
	"time"
)

// TickerFunc returns a channel delivering one value per interval and a
// function that releases the underlying timer.
type TickerFunc func(interval time.Duration) (<-chan time.Time, func())

// SystemTicker backs the clock with time.Ticker.
func SystemTicker(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// Clock is a cancellable per-second countdown.
//
// onTick and onExpire run on the clock's own goroutine. Each delivery is
// decided under the clock's lock, so once Cancel returns no new tick or
// expiry is started, including a Cancel made during the final onTick.
type Clock struct {
	mu        sync.Mutex
	ticker    TickerFunc
	interval  time.Duration
	running   bool
	remaining int
	stop      chan struct{}
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithTicker replaces the tick source, mainly for tests.
func WithTicker(fn TickerFunc) ClockOption {
	return func(c *Clock) { c.ticker = fn }
}

// NewClock creates a stopped clock.
func NewClock(opts ...ClockOption) *Clock {
	c := &Clock{
		ticker:   SystemTicker,
		interval: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins counting down from durationSeconds.
func (c *Clock) Start(durationSeconds int, onTick func(remaining int), onExpire func()) error {
	if durationSeconds <= 0 {
		return ErrInvalidDuration
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrClockAlreadyRunning
	}

	ticks, release := c.ticker(c.interval)
	stop := make(chan struct{})
	c.running = true
	c.remaining = durationSeconds
	c.stop = stop

	go c.run(ticks, release, stop, onTick, onExpire)
	return nil
}

// Cancel stops the countdown. Safe to call repeatedly and after expiry.
func (c *Clock) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stop)
}

// Running reports whether a countdown is in progress.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Remaining returns the seconds left on the current or last countdown.
func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Clock) run(ticks <-chan time.Time, release func(), stop chan struct{}, onTick func(int), onExpire func()) {
	defer release()

	for {
		select {
		case <-stop:
			return
		case <-ticks:
			remaining, ok := c.advance(stop)
			if !ok {
				return
			}
			if onTick != nil {
				onTick(remaining)
			}
			if remaining > 0 {
				continue
			}
			// A Cancel during the final onTick wins over expiry.
			if c.expire(stop) && onExpire != nil {
				onExpire()
			}
			return
		}
	}
}

// advance consumes one second. ok is false when the run identified by stop
// was cancelled or replaced. The clock stays running at zero until expire.
func (c *Clock) advance(stop chan struct{}) (remaining int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.stop != stop {
		return 0, false
	}

	c.remaining--
	if c.remaining < 0 {
		c.remaining = 0
	}
	return c.remaining, true
}

// expire ends the run identified by stop unless it was cancelled first.
func (c *Clock) expire(stop chan struct{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.stop != stop {
		return false
	}
	c.running = false
	return true
}
