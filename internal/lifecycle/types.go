// Package lifecycle implements the completion state machine: it owns the
// single ghost node, runs at most one completion stream at a time, splices
// streamed chunks into the ghost, and turns ghost text into real text on
// acceptance.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/ghostwriter/internal/document"
)

// State is a lifecycle state.
type State uint8

const (
	// StateIdle has no ghost node and no stream.
	StateIdle State = iota
	// StateRequesting has a ghost node while the handler is being called.
	StateRequesting
	// StateStreaming has a ghost node and a live stream.
	StateStreaming
	// StateAccepted is passed through when the last ghost text is accepted.
	StateAccepted
	// StateDiscarded is passed through when a completion is stopped.
	StateDiscarded
	// StateErrored is passed through when a completion fails.
	StateErrored
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateAccepted:
		return "accepted"
	case StateDiscarded:
		return "discarded"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Params is what a Handler receives.
type Params struct {
	// PrecedingText is the text before the cursor, excluding ghost text.
	PrecedingText string
	// FollowingText is the text after the cursor with one trailing newline
	// removed.
	FollowingText string
	// Callback appends a chunk to the ghost node. It may be called from any
	// goroutine; chunks are applied on the event loop in call order.
	Callback func(chunk string)
}

// Stream is a running completion source.
type Stream interface {
	// Abort stops the stream. It must be idempotent.
	Abort()
	// Done is closed when the stream has settled.
	Done() <-chan struct{}
	// Err returns the failure once Done is closed, or nil.
	Err() error
}

// finisher is implemented by streams that can tell a clean end from one cut
// short by cancellation.
type finisher interface {
	Finished() bool
}

// Handler starts a completion. It returns an error when the stream cannot
// be constructed.
type Handler func(ctx context.Context, p Params) (Stream, error)

// ErrorHandler receives completion failures.
type ErrorHandler func(err error)

// Loop is the host event loop.
type Loop interface {
	Post(fn func())
	Defer(fn func())
	Unhandled(err error)
}

// Scroller keeps a document position visible.
type Scroller interface {
	ScrollIntoView(p document.Position)
}

// Sentinel errors.
var (
	// ErrNoHandler is returned when a completion starts without a handler.
	ErrNoHandler = errors.New("no completion handler")
	// ErrNilStream is returned when a handler returns neither a stream nor
	// an error.
	ErrNilStream = errors.New("completion handler returned no stream")
	// ErrMissingDocument is returned by New without a document or container.
	ErrMissingDocument = errors.New("document and container are required")
	// ErrMissingLoop is returned by New without a loop.
	ErrMissingLoop = errors.New("event loop is required")
)

// HandlerError wraps a failure to construct a completion stream.
type HandlerError struct {
	Err error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("completion handler: %v", e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
