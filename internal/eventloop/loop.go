// Package eventloop provides the single-threaded task queue that drives a
// document and everything attached to it. Producers on other goroutines
// (streams, timers, terminal input) post closures; only the loop goroutine
// runs them.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// ErrStopped is returned by Run after Stop.
var ErrStopped = errors.New("event loop stopped")

// Loop is a FIFO task queue run by one goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool
	err     error

	onUnhandled func(error)
	onIdle      func()
}

// Option configures a Loop.
type Option func(*Loop)

// WithUnhandled routes unhandled errors to fn instead of stopping Run.
func WithUnhandled(fn func(error)) Option {
	return func(l *Loop) { l.onUnhandled = fn }
}

// WithIdle sets a function run after each drained batch of tasks.
func WithIdle(fn func()) Option {
	return func(l *Loop) { l.onIdle = fn }
}

// New creates a loop.
func New(opts ...Option) *Loop {
	l := &Loop{wake: make(chan struct{}, 1)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Post queues fn. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Defer queues fn to run on a later turn, after the current task returns.
func (l *Loop) Defer(fn func()) { l.Post(fn) }

// AfterFunc posts fn once d has elapsed. Stopping the returned timer before
// it fires prevents the post.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Unhandled reports an error no handler claimed. Without WithUnhandled the
// first such error stops Run and is returned from it.
func (l *Loop) Unhandled(err error) {
	if err == nil {
		return
	}
	if l.onUnhandled != nil {
		l.onUnhandled(err)
		return
	}
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.signal()
}

// Err returns the first unhandled error, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Stop makes Run return ErrStopped once the current task finishes.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.signal()
}

// Run processes tasks until ctx is done, Stop is called or an unhandled
// error occurs.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.status(); err != nil {
			return err
		}
		if l.Drain() > 0 && l.onIdle != nil {
			l.onIdle()
		}
		if err := l.status(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Drain runs queued tasks, including those queued while draining, until the
// queue is empty or the loop is stopped. It returns the number of tasks run.
func (l *Loop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.queue) == 0 || l.stopped || l.err != nil {
			l.mu.Unlock()
			return n
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(fn)
		n++
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			l.Unhandled(fmt.Errorf("task panic: %v\n%s", r, stack[:n]))
		}
	}()
	fn()
}

func (l *Loop) status() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	if l.stopped {
		return ErrStopped
	}
	return nil
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
