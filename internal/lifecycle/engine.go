package lifecycle

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/dshills/ghostwriter/internal/cursor"
	"github.com/dshills/ghostwriter/internal/document"
	"github.com/dshills/ghostwriter/internal/extract"
	"github.com/dshills/ghostwriter/internal/insert"
	"github.com/dshills/ghostwriter/internal/logging"
)

// DefaultGhostPrefix names generated ghost tags.
const DefaultGhostPrefix = "ghostwriter"

// Options configures an Engine.
type Options struct {
	Document  *document.Document
	Container *document.Node
	Loop      Loop

	Handler      Handler
	ErrorHandler ErrorHandler

	// Boundary is the set of characters that end a partial accept.
	// Empty means DefaultBoundary.
	Boundary string
	// GhostClass is the exact tag name for ghost nodes. Empty generates a
	// random name.
	GhostClass string
	// Mode and Renderer select how cursor context text is extracted.
	Mode     extract.Mode
	Renderer extract.Renderer

	Scroller      Scroller
	TrailingBreak bool
	Logger        *logging.Logger
}

// Engine runs completions for one container. All methods must be called on
// the loop goroutine.
type Engine struct {
	doc       *document.Document
	container *document.Node
	loop      Loop
	ins       *insert.Inserter
	tag       *document.Tag
	mode      extract.Mode
	renderer  extract.Renderer
	scroller  Scroller
	logger    *logging.Logger

	handler      Handler
	errorHandler ErrorHandler
	boundary     string

	ghost    *document.Node
	stream   Stream
	release  chan struct{}
	finished bool
	gen      uint64
	state    State

	observers map[int]func(from, to State)
	nextObs   int

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Document == nil || opts.Container == nil {
		return nil, ErrMissingDocument
	}
	if opts.Loop == nil {
		return nil, ErrMissingLoop
	}

	tag := document.NewTag(DefaultGhostPrefix)
	if opts.GhostClass != "" {
		tag = document.NamedTag(opts.GhostClass)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		doc:          opts.Document,
		container:    opts.Container,
		loop:         opts.Loop,
		ins:          insert.New(opts.Document, opts.Loop, insert.WithTrailingBreak(opts.TrailingBreak)),
		tag:          tag,
		mode:         opts.Mode,
		renderer:     opts.Renderer,
		scroller:     opts.Scroller,
		logger:       logging.OrNull(opts.Logger).WithComponent("lifecycle"),
		handler:      opts.Handler,
		errorHandler: opts.ErrorHandler,
		observers:    make(map[int]func(from, to State)),
		ctx:          ctx,
		cancel:       cancel,
	}
	e.SetBoundary(opts.Boundary)
	return e, nil
}

// Tag returns the tag carried by ghost nodes.
func (e *Engine) Tag() *document.Tag { return e.tag }

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Active reports whether a completion is in progress.
func (e *Engine) Active() bool { return e.ghost != nil || e.stream != nil }

// Ghost returns the ghost node, or nil.
func (e *Engine) Ghost() *document.Node { return e.ghost }

// GhostText returns the text currently held by the ghost node.
func (e *Engine) GhostText() string {
	if e.ghost == nil {
		return ""
	}
	return extract.Extract(e.ghost, extract.Options{})
}

// Inserter returns the inserter used for the engine's document.
func (e *Engine) Inserter() *insert.Inserter { return e.ins }

// SetHandler replaces the completion handler.
func (e *Engine) SetHandler(h Handler) { e.handler = h }

// SetErrorHandler replaces the error handler.
func (e *Engine) SetErrorHandler(h ErrorHandler) { e.errorHandler = h }

// SetBoundary replaces the partial-accept boundary set.
func (e *Engine) SetBoundary(set string) {
	if set == "" {
		set = DefaultBoundary
	}
	e.boundary = set
}

// Boundary returns the partial-accept boundary set.
func (e *Engine) Boundary() string { return e.boundary }

// ExtractOptions returns options that read the container without ghost
// content.
func (e *Engine) ExtractOptions() extract.Options {
	return extract.Options{
		Prune:    extract.PruneTag(e.tag),
		Mode:     e.mode,
		Renderer: e.renderer,
	}
}

// Value returns the logical value of the container.
func (e *Engine) Value() string {
	return extract.Value(e.container, e.ExtractOptions())
}

// OnTransition registers fn for state changes. The returned function
// removes it.
func (e *Engine) OnTransition(fn func(from, to State)) (remove func()) {
	id := e.nextObs
	e.nextObs++
	e.observers[id] = fn
	return func() { delete(e.observers, id) }
}

func (e *Engine) transition(to State) {
	from := e.state
	if from == to {
		return
	}
	e.state = to
	e.logger.Debug("state %s -> %s", from, to)
	for id := 0; id < e.nextObs; id++ {
		if fn, ok := e.observers[id]; ok {
			fn(from, to)
		}
	}
}

// Start begins a completion at the cursor, first stopping any completion in
// progress. Nothing happens when the cursor is not inside the container.
func (e *Engine) Start() {
	e.stop(StateDiscarded)

	if !cursor.InContainer(e.doc, e.container) {
		e.logger.Debug("start skipped: cursor outside container")
		return
	}

	ghost := e.doc.CreateElement("span")
	ghost.AddTag(e.tag)
	if e.ins.AfterCursor(insert.Node(ghost), false) == nil {
		return
	}
	e.ghost = ghost
	e.gen++
	gen := e.gen
	e.transition(StateRequesting)

	opts := e.ExtractOptions()
	preceding, _ := extract.BeforeCursor(e.doc, e.container, opts)
	following, _ := extract.AfterCursor(e.doc, e.container, opts)

	params := Params{
		PrecedingText: preceding,
		FollowingText: strings.TrimSuffix(following, "\n"),
		Callback: func(chunk string) {
			e.loop.Post(func() { e.appendChunk(gen, chunk) })
		},
	}

	s, err := e.invoke(params)
	if err != nil {
		e.fail(gen, &HandlerError{Err: err})
		return
	}
	if gen != e.gen {
		// The handler re-entered the engine; its stream is no longer wanted.
		s.Abort()
		return
	}
	e.stream = s
	e.release = make(chan struct{})
	e.transition(StateStreaming)
	go e.watch(gen, s, e.release)
}

// invoke calls the handler, converting a panic into an error.
func (e *Engine) invoke(p Params) (s Stream, err error) {
	if e.handler == nil {
		return nil, ErrNoHandler
	}
	defer func() {
		if r := recover(); r != nil {
			stack := make([]byte, 4096)
			n := runtime.Stack(stack, false)
			e.logger.Error("completion handler panic: %v\n%s", r, stack[:n])
			s, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	s, err = e.handler(e.ctx, p)
	if err == nil && s == nil {
		err = ErrNilStream
	}
	return s, err
}

// watch waits for the stream to settle and reports back on the loop. It
// returns early once release is closed, so a stream whose Done never closes
// after Abort does not hold the goroutine.
func (e *Engine) watch(gen uint64, s Stream, release <-chan struct{}) {
	select {
	case <-s.Done():
	case <-release:
		return
	case <-e.ctx.Done():
		return
	}
	complete := true
	if f, ok := s.(finisher); ok {
		complete = f.Finished()
	}
	err := s.Err()
	e.loop.Post(func() { e.settle(gen, err, complete) })
}

func (e *Engine) settle(gen uint64, err error, complete bool) {
	if gen != e.gen {
		return
	}
	if err != nil {
		e.fail(gen, err)
		return
	}
	e.finished = true
	if !complete {
		e.logger.Info("stream cancelled before completion")
		return
	}
	e.logger.Debug("stream finished")
}

func (e *Engine) appendChunk(gen uint64, chunk string) {
	if gen != e.gen || e.ghost == nil || chunk == "" {
		return
	}
	e.ins.Append(insert.Text(chunk), e.ghost)
	e.scroll(document.End(e.ghost))
}

// Stop discards the completion in progress: the stream is aborted and every
// ghost node in the container is removed. It is a no-op when idle.
func (e *Engine) Stop() { e.stop(StateDiscarded) }

func (e *Engine) stop(through State) {
	if !e.Active() {
		return
	}
	e.gen++
	if e.stream != nil {
		e.stream.Abort()
		e.stream = nil
	}
	if e.release != nil {
		close(e.release)
		e.release = nil
	}
	var parent *document.Node
	if e.ghost != nil {
		parent = e.ghost.Parent()
	}
	for _, n := range e.container.QueryTag(e.tag) {
		n.Remove()
	}
	if parent != nil {
		parent.Normalize()
	}
	e.ghost = nil
	e.finished = false
	e.transition(through)
	e.transition(StateIdle)
}

// fail stops the completion and hands err to the error handler, or to the
// loop's unhandled-error path when there is none.
func (e *Engine) fail(gen uint64, err error) {
	if gen != e.gen {
		return
	}
	e.logger.WithError(err).Warn("completion failed")
	e.stop(StateErrored)
	if e.errorHandler != nil {
		e.errorHandler(err)
		return
	}
	e.loop.Unhandled(err)
}

// AcceptChunk moves ghost text up to and including the next boundary
// character into the document before the ghost node, leaving the cursor
// after it. It returns the accepted text and false when there was nothing
// to accept. When the stream has finished and no ghost text remains, the
// completion ends.
func (e *Engine) AcceptChunk() (string, bool) {
	if e.stream == nil || e.ghost == nil {
		return "", false
	}
	text := e.GhostText()
	if text == "" {
		return "", false
	}

	cut := BoundaryEnd(text, e.boundary)
	accepted, rest := text[:cut], text[cut:]

	e.ghost.SetText(rest)
	p := e.ins.BeforeNode(insert.Text(accepted), e.ghost)
	if nodes := p.Nodes(); len(nodes) > 0 {
		e.scroll(document.After(nodes[len(nodes)-1]))
	}

	if rest == "" && e.finished {
		p.Commit()
		e.stop(StateAccepted)
	}
	return accepted, true
}

func (e *Engine) scroll(p document.Position) {
	if e.scroller != nil && p.Node != nil {
		e.scroller.ScrollIntoView(p)
	}
}

// Close stops any completion and releases the engine.
func (e *Engine) Close() {
	e.stop(StateDiscarded)
	e.cancel()
}
