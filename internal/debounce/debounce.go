// Package debounce coalesces bursts of calls into one trailing call.
package debounce

import (
	"sync"
	"time"
)

// DefaultInterval is the quiet period used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Debouncer runs the most recently triggered callback once no new trigger
// has arrived for the configured interval.
type Debouncer struct {
	interval time.Duration

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// New returns a Debouncer. A non-positive interval uses DefaultInterval.
func New(interval time.Duration) *Debouncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Debouncer{interval: interval}
}

// Trigger schedules fn to run after the interval, replacing any callback
// scheduled earlier that has not run yet.
func (d *Debouncer) Trigger(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	seq := d.seq

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		if !d.claim(seq) {
			return
		}
		fn()
	})
}

// claim reports whether seq is still the latest trigger. A timer that fired
// while Stop raced it must not run a superseded or cancelled callback.
func (d *Debouncer) claim(seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		return false
	}
	d.timer = nil
	return true
}

// Cancel drops any pending callback.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Pending reports whether a callback is scheduled and has not started.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Interval returns the quiet period.
func (d *Debouncer) Interval() time.Duration {
	return d.interval
}
