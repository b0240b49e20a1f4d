package stream

import (
	"context"
)

// Sequence is a pull-style source of values, the shape of the streaming
// iterators returned by the vendor SDKs.
type Sequence[T any] interface {
	Next() bool
	Current() T
	Err() error
}

// FromSeq streams the values of a sequence. acquire obtains the sequence and
// may block; it runs on the stream goroutine. When the stream is aborted,
// cancel is called with the sequence once acquisition has completed, even if
// the abort happened while acquire was still pending.
func FromSeq[T any, S Sequence[T]](ctx context.Context, acquire func(ctx context.Context) (S, error), callback func(T), cancel func(S)) *Handle {
	h, ctx := newHandle(ctx)

	acquired := make(chan struct{})
	var (
		src    S
		acqErr error
	)
	h.onAbort = func() {
		go func() {
			<-acquired
			if acqErr == nil && cancel != nil {
				cancel(src)
			}
		}()
	}

	return h.start(ctx, func(ctx context.Context) error {
		src, acqErr = acquire(ctx)
		close(acquired)
		if acqErr != nil {
			return acqErr
		}
		for h.live() && src.Next() {
			if !h.live() {
				return nil
			}
			callback(src.Current())
		}
		if !h.live() {
			return nil
		}
		return src.Err()
	})
}

// FromFunc streams values produced by run. emit delivers one value and
// reports false once the stream has been aborted; run should then return.
func FromFunc[T any](ctx context.Context, run func(ctx context.Context, emit func(T) bool) error, callback func(T)) *Handle {
	h, ctx := newHandle(ctx)
	return h.start(ctx, func(ctx context.Context) error {
		return run(ctx, func(v T) bool {
			if !h.live() {
				return false
			}
			callback(v)
			return true
		})
	})
}
