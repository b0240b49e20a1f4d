// Package stream adapts completion sources into cancellable streams that
// deliver text chunks to a callback. Every adapter returns a *Handle: the
// callback is never invoked once Abort has been called, and the handle's Done
// channel closes when the source finishes, fails or is aborted.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// Handle is a running stream.
type Handle struct {
	aborted  atomic.Bool
	finished atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	err      error

	abortOnce sync.Once
	onAbort   func()
}

func newHandle(parent context.Context) (*Handle, context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Handle{cancel: cancel, done: make(chan struct{})}, ctx
}

// start runs fn on its own goroutine and settles the handle when it returns.
// Errors after an abort, and cancellation errors, settle as success.
func (h *Handle) start(ctx context.Context, fn func(ctx context.Context) error) *Handle {
	go func() {
		err := fn(ctx)
		if err != nil && (h.aborted.Load() || IsAbort(err)) {
			err = nil
		}
		h.err = err
		h.finished.Store(err == nil && !h.aborted.Load())
		h.cancel()
		close(h.done)
	}()
	return h
}

// live reports whether chunks may still be delivered.
func (h *Handle) live() bool { return !h.aborted.Load() }

// Abort stops the stream. It sets the aborted flag, cancels the underlying
// request and runs any source-specific cancellation. Calling it again is a
// no-op.
func (h *Handle) Abort() {
	h.abortOnce.Do(func() {
		h.aborted.Store(true)
		h.cancel()
		if h.onAbort != nil {
			h.onAbort()
		}
	})
}

// Aborted reports whether Abort has been called.
func (h *Handle) Aborted() bool { return h.aborted.Load() }

// Done returns a channel closed when the stream has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the failure, if any, once Done is closed.
func (h *Handle) Err() error {
	select {
	case <-h.done:
		return h.err
	default:
		return nil
	}
}

// Finished reports whether the source ran to completion without being
// aborted.
func (h *Handle) Finished() bool { return h.finished.Load() }

// Wait blocks until the stream settles or ctx is done.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
