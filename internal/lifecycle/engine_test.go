package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/ghostwriter/internal/document"
	"github.com/dshills/ghostwriter/internal/eventloop"
	"github.com/dshills/ghostwriter/internal/extract"
	"github.com/dshills/ghostwriter/internal/logging"
)

// fakeStream is a Stream settled by the test.
type fakeStream struct {
	mu     sync.Mutex
	aborts int
	done   chan struct{}
	once   sync.Once
	err    error
}

func newFakeStream() *fakeStream {
	return &fakeStream{done: make(chan struct{})}
}

func (f *fakeStream) Abort() {
	f.mu.Lock()
	f.aborts++
	f.mu.Unlock()
	f.finish(nil)
}

func (f *fakeStream) Done() <-chan struct{} { return f.done }

func (f *fakeStream) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *fakeStream) finish(err error) {
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		close(f.done)
	})
}

func (f *fakeStream) abortCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

// harness wires an engine to a document holding text with the cursor at
// offset.
type harness struct {
	doc     *document.Document
	loop    *eventloop.Loop
	engine  *Engine
	calls   []Params
	streams []*fakeStream
	errs    []error
	states  []State
}

func newHarness(t *testing.T, text string, offset int, opts ...func(*Options)) *harness {
	t.Helper()
	h := &harness{doc: document.New(), loop: eventloop.New()}
	node := h.doc.CreateText(text)
	h.doc.Root().AppendChild(node)
	h.doc.Collapse(document.Position{Node: node, Offset: offset})

	o := Options{
		Document:  h.doc,
		Container: h.doc.Root(),
		Loop:      h.loop,
		Handler: func(ctx context.Context, p Params) (Stream, error) {
			h.calls = append(h.calls, p)
			s := newFakeStream()
			h.streams = append(h.streams, s)
			return s, nil
		},
		ErrorHandler: func(err error) { h.errs = append(h.errs, err) },
	}
	for _, fn := range opts {
		fn(&o)
	}
	e, err := New(o)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	e.OnTransition(func(_, to State) { h.states = append(h.states, to) })
	h.engine = e
	return h
}

func (h *harness) send(chunks ...string) {
	p := h.calls[len(h.calls)-1]
	for _, c := range chunks {
		p.Callback(c)
	}
	h.loop.Drain()
}

// waitFor drains the loop until cond holds.
func (h *harness) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		h.loop.Drain()
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) raw() string {
	return extract.Extract(h.doc.Root(), extract.Options{})
}

func TestStartPassesCursorContext(t *testing.T) {
	h := newHarness(t, "Hello world\n", 6)
	h.engine.Start()

	if len(h.calls) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(h.calls))
	}
	if h.calls[0].PrecedingText != "Hello " {
		t.Errorf("PrecedingText = %q, want %q", h.calls[0].PrecedingText, "Hello ")
	}
	if h.calls[0].FollowingText != "world" {
		t.Errorf("FollowingText = %q, want %q", h.calls[0].FollowingText, "world")
	}
	if h.engine.State() != StateStreaming {
		t.Errorf("State() = %v, want streaming", h.engine.State())
	}
	if h.engine.Ghost() == nil || h.engine.Ghost().Parent() == nil {
		t.Error("ghost node is not attached")
	}
}

func TestGhostExclusion(t *testing.T) {
	h := newHarness(t, "ab", 2)
	h.engine.Start()
	h.send("one ", "two", "\nthree")

	if got := h.engine.Value(); got != "ab" {
		t.Errorf("Value() = %q, want ab", got)
	}
	if got := h.raw(); got != "abone two\nthree" {
		t.Errorf("unpruned text = %q, want %q", got, "abone two\nthree")
	}
	if got := h.engine.GhostText(); got != "one two\nthree" {
		t.Errorf("GhostText() = %q", got)
	}
}

func TestRestartAbortsPrevious(t *testing.T) {
	h := newHarness(t, "ab", 2)
	var abortsAtSecondCall = -1
	inner := h.engine.handler
	h.engine.SetHandler(func(ctx context.Context, p Params) (Stream, error) {
		if len(h.streams) == 1 {
			abortsAtSecondCall = h.streams[0].abortCount()
		}
		return inner(ctx, p)
	})

	h.engine.Start()
	h.send("stale")
	h.engine.Start()

	if abortsAtSecondCall != 1 {
		t.Errorf("aborts before second handler call = %d, want 1", abortsAtSecondCall)
	}
	if n := len(h.doc.Root().QueryTag(h.engine.Tag())); n != 1 {
		t.Errorf("ghost nodes = %d, want 1", n)
	}
	if got := h.engine.GhostText(); got != "" {
		t.Errorf("GhostText() = %q, want empty", got)
	}

	// A late chunk from the stopped completion is ignored.
	h.calls[0].Callback("late")
	h.loop.Drain()
	if got := h.engine.GhostText(); got != "" {
		t.Errorf("GhostText() after stale chunk = %q, want empty", got)
	}
}

func TestPartialAccept(t *testing.T) {
	h := newHarness(t, "", 0, func(o *Options) { o.Boundary = "," })
	h.doc.Collapse(document.Start(h.doc.Root()))
	h.engine.Start()
	h.send("Hello, world")

	got, ok := h.engine.AcceptChunk()
	h.loop.Drain()
	if !ok || got != "Hello," {
		t.Fatalf("AcceptChunk() = %q, %v, want Hello,", got, ok)
	}
	if h.engine.GhostText() != " world" {
		t.Errorf("GhostText() = %q, want %q", h.engine.GhostText(), " world")
	}
	if h.engine.Value() != "Hello," {
		t.Errorf("Value() = %q, want Hello,", h.engine.Value())
	}

	got, ok = h.engine.AcceptChunk()
	h.loop.Drain()
	if !ok || got != " world" {
		t.Errorf("second AcceptChunk() = %q, %v, want %q", got, ok, " world")
	}
	if h.engine.Value() != "Hello, world" {
		t.Errorf("Value() = %q, want %q", h.engine.Value(), "Hello, world")
	}
	before, _ := extract.BeforeCursor(h.doc, h.doc.Root(), h.engine.ExtractOptions())
	if before != "Hello, world" {
		t.Errorf("cursor context = %q, want cursor after accepted text", before)
	}

	if _, ok := h.engine.AcceptChunk(); ok {
		t.Error("AcceptChunk() on empty ghost = true, want false")
	}
}

func TestAcceptAfterFinishEndsCompletion(t *testing.T) {
	h := newHarness(t, "x", 1)
	h.engine.Start()
	h.send("done")
	h.streams[0].finish(nil)
	h.waitFor(t, func() bool { return h.engine.finished })

	if h.engine.Ghost() == nil {
		t.Fatal("finished stream removed the ghost node")
	}
	h.engine.AcceptChunk()
	h.loop.Drain()

	if h.engine.State() != StateIdle {
		t.Errorf("State() = %v, want idle", h.engine.State())
	}
	if h.states[len(h.states)-2] != StateAccepted {
		t.Errorf("states = %v, want accepted before idle", h.states)
	}
	if h.engine.Value() != "xdone" {
		t.Errorf("Value() = %q, want xdone", h.engine.Value())
	}
}

// cutStream settles cleanly but reports that its source did not finish.
type cutStream struct{ *fakeStream }

func (cutStream) Finished() bool { return false }

func TestCancelledStreamSettles(t *testing.T) {
	var buf bytes.Buffer
	var s cutStream
	var h *harness
	h = newHarness(t, "x", 1, func(o *Options) {
		o.Logger = logging.NewLogger(logging.LoggerConfig{Level: logging.LogLevelDebug, Output: &buf})
		o.Handler = func(_ context.Context, p Params) (Stream, error) {
			h.calls = append(h.calls, p)
			s = cutStream{newFakeStream()}
			return s, nil
		}
	})
	h.engine.Start()
	h.calls[0].Callback("ab")
	h.loop.Drain()
	s.finish(nil)
	h.waitFor(t, func() bool { return h.engine.finished })

	if !strings.Contains(buf.String(), "stream cancelled before completion") {
		t.Errorf("log = %q, want cancellation notice", buf.String())
	}
	h.engine.AcceptChunk()
	if h.engine.State() != StateIdle || h.engine.Value() != "xab" {
		t.Errorf("State() = %v, Value() = %q, want idle and xab", h.engine.State(), h.engine.Value())
	}
}

// stuckStream never settles, even when aborted.
type stuckStream struct{ done chan struct{} }

func (stuckStream) Abort()                  {}
func (s stuckStream) Done() <-chan struct{} { return s.done }
func (stuckStream) Err() error              { return nil }

func TestStopReleasesWatcher(t *testing.T) {
	h := newHarness(t, "x", 1, func(o *Options) {
		o.Handler = func(context.Context, Params) (Stream, error) {
			return stuckStream{done: make(chan struct{})}, nil
		}
	})
	base := runtime.NumGoroutine()
	for i := 0; i < 5; i++ {
		h.engine.Start()
		h.engine.Stop()
	}
	h.waitFor(t, func() bool { return runtime.NumGoroutine() <= base })
}

func TestDiscardRestoresValue(t *testing.T) {
	h := newHarness(t, "some text", 4)
	before := h.raw()

	h.engine.Start()
	h.send("ghost ", "chunks")
	h.engine.Stop()
	h.loop.Drain()

	if got := h.raw(); got != before {
		t.Errorf("text after discard = %q, want %q", got, before)
	}
	if h.streams[0].abortCount() != 1 {
		t.Errorf("aborts = %d, want 1", h.streams[0].abortCount())
	}
	if h.engine.State() != StateIdle || h.engine.Active() {
		t.Errorf("State() = %v, Active() = %v after discard", h.engine.State(), h.engine.Active())
	}
	h.engine.Stop()
	if h.streams[0].abortCount() != 1 {
		t.Error("Stop() while idle aborted again")
	}
}

func TestHandlerErrorRoutesToErrorHandler(t *testing.T) {
	boom := errors.New("network down")
	h := newHarness(t, "ab", 1, func(o *Options) {
		o.Handler = func(context.Context, Params) (Stream, error) { return nil, boom }
	})

	h.engine.Start()

	if len(h.errs) != 1 {
		t.Fatalf("error handler calls = %d, want 1", len(h.errs))
	}
	var he *HandlerError
	if !errors.As(h.errs[0], &he) || !errors.Is(h.errs[0], boom) {
		t.Errorf("error = %v, want HandlerError wrapping boom", h.errs[0])
	}
	if n := len(h.doc.Root().QueryTag(h.engine.Tag())); n != 0 {
		t.Errorf("ghost nodes = %d, want 0", n)
	}
	want := []State{StateRequesting, StateErrored, StateIdle}
	if strings.Join(stateNames(h.states), ",") != strings.Join(stateNames(want), ",") {
		t.Errorf("states = %v, want %v", h.states, want)
	}
}

func TestHandlerPanicIsHandlerError(t *testing.T) {
	h := newHarness(t, "ab", 1, func(o *Options) {
		o.Handler = func(context.Context, Params) (Stream, error) { panic("bad handler") }
	})
	h.engine.Start()

	var he *HandlerError
	if len(h.errs) != 1 || !errors.As(h.errs[0], &he) {
		t.Errorf("errors = %v, want one HandlerError", h.errs)
	}
}

func TestStreamErrorWithoutHandlerIsUnhandled(t *testing.T) {
	h := newHarness(t, "ab", 1, func(o *Options) { o.ErrorHandler = nil })
	h.engine.Start()
	h.send("partial")

	boom := errors.New("reset by peer")
	h.streams[0].finish(boom)
	h.waitFor(t, func() bool { return h.loop.Err() != nil || !h.engine.Active() })

	if !errors.Is(h.loop.Err(), boom) {
		t.Errorf("loop.Err() = %v, want %v", h.loop.Err(), boom)
	}
	if got := h.raw(); got != "ab" {
		t.Errorf("text after error = %q, want ab", got)
	}
}

func TestStartOutsideContainerIsNoop(t *testing.T) {
	h := newHarness(t, "ab", 1)
	inner := h.doc.CreateElement("div")
	h.doc.Root().AppendChild(inner)
	e, err := New(Options{Document: h.doc, Container: inner, Loop: h.loop, Handler: h.engine.handler})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	e.Start()

	if len(h.calls) != 0 {
		t.Errorf("handler calls = %d, want 0", len(h.calls))
	}
	if e.Active() {
		t.Error("Active() = true")
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrMissingDocument) {
		t.Errorf("New() = %v, want ErrMissingDocument", err)
	}
	d := document.New()
	if _, err := New(Options{Document: d, Container: d.Root()}); !errors.Is(err, ErrMissingLoop) {
		t.Errorf("New() = %v, want ErrMissingLoop", err)
	}
}

func TestGhostClassName(t *testing.T) {
	h := newHarness(t, "ab", 1, func(o *Options) { o.GhostClass = "copilot-ghost" })
	if h.engine.Tag().Name() != "copilot-ghost" {
		t.Errorf("Tag().Name() = %q", h.engine.Tag().Name())
	}
}

func stateNames(states []State) []string {
	out := make([]string, len(states))
	for i, s := range states {
		out[i] = s.String()
	}
	return out
}
