package ratelimit

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is the trailing interval the request count covers.
	DefaultWindow = 60 * time.Second
	// DefaultSweepInterval is the cadence of the background eviction sweep.
	DefaultSweepInterval = time.Second
)

// Tracker maintains an append-only sequence of request timestamps and evicts
// entries older than the rolling window on a fixed cadence. CurrentCount is
// O(1) against the already-trimmed sequence.
type Tracker struct {
	mu         sync.RWMutex
	timestamps []time.Time

	window time.Duration
	now    func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// Option customizes tracker construction.
type Option func(*Tracker)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithWindow overrides the rolling window duration.
func WithWindow(window time.Duration) Option {
	return func(t *Tracker) {
		if window > 0 {
			t.window = window
		}
	}
}

// NewTracker constructs a tracker and starts its background sweep.
func NewTracker(sweepInterval time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		window: DefaultWindow,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	go t.sweepLoop(sweepInterval)
	return t
}

// RecordRequest appends a timestamp for a request that is about to be sent.
// Callers record before dispatch so the count reflects requests sent, not
// requests completed.
func (t *Tracker) RecordRequest() {
	now := t.now()
	t.mu.Lock()
	next := make([]time.Time, len(t.timestamps)+1)
	copy(next, t.timestamps)
	next[len(next)-1] = now
	t.timestamps = next
	t.mu.Unlock()
}

// CurrentCount returns the number of requests recorded within the window.
// It reads the trimmed slice length; eviction happens only in the sweep.
func (t *Tracker) CurrentCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.timestamps)
}

// Window returns the rolling interval the count covers.
func (t *Tracker) Window() time.Duration { return t.window }

// Sweep evicts timestamps older than the window, oldest first. Exposed for
// tests; the background loop calls it on a fixed cadence.
func (t *Tracker) Sweep() {
	cutoff := t.now().Add(-t.window)
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := 0
	for idx < len(t.timestamps) && !t.timestamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return
	}
	next := make([]time.Time, len(t.timestamps)-idx)
	copy(next, t.timestamps[idx:])
	t.timestamps = next
}

// Stop halts the background sweep. Safe to call more than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

func (t *Tracker) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.Sweep()
		case <-t.stop:
			return
		}
	}
}
