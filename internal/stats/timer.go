package stats

import (
	"sync"
	"time"
)

// Timer brackets a span of work. The zero value is ready to use.
type Timer struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	stopped time.Time
	running bool
}

func (t *Timer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Start begins timing, discarding any previous span.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = t.clock()
	t.stopped = time.Time{}
	t.running = true
}

// Stop ends the span. Stopping a timer that is not running is a no-op.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.stopped = t.clock()
	t.running = false
}

// Elapsed returns the span length; for a running timer, the time so far.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.started.IsZero():
		return 0
	case t.running:
		return t.clock().Sub(t.started)
	default:
		return t.stopped.Sub(t.started)
	}
}

// ElapsedUs returns Elapsed in microseconds.
func (t *Timer) ElapsedUs() int64 {
	return t.Elapsed().Microseconds()
}

// StartedAt returns when the current span began.
func (t *Timer) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}
