package controller

import (
	"sync"
	"time"
)

// Timers schedules fn on the loop after d.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) *time.Timer
}

// Debouncer runs fn once keystrokes have been quiet for the delay. Each Call
// restarts the wait. A zero delay disables it, which leaves completions to
// explicit requests.
type Debouncer struct {
	mu     sync.Mutex
	timers Timers
	delay  time.Duration
	fn     func()

	timer *time.Timer
	// gen identifies the armed timer; a timer whose callback was already
	// queued when it got replaced sees a newer gen and does nothing.
	gen   uint64
	armed bool
}

// NewDebouncer creates a debouncer for fn.
func NewDebouncer(timers Timers, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{timers: timers, delay: delay, fn: fn}
}

// Call restarts the quiet period.
func (d *Debouncer) Call() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
	if d.delay <= 0 || d.fn == nil {
		return
	}
	gen := d.gen
	d.armed = true
	d.timer = d.timers.AfterFunc(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.armed, d.timer = false, nil
	fn := d.fn
	d.mu.Unlock()
	fn()
}

// Cancel drops a pending call.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	d.disarm()
	d.mu.Unlock()
}

func (d *Debouncer) disarm() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	d.armed = false
}

// Pending reports whether a call is waiting for its delay.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// SetDelay replaces the delay. A pending call is dropped.
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disarm()
	d.delay = delay
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.delay
}
