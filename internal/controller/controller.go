// Package controller binds the events of an editing surface to the
// completion lifecycle: keys start, accept and discard completions, input
// and composition drive change reporting, paste and drop insert plain text,
// and selection moves are reported as text offsets.
package controller

import (
	"time"

	"github.com/dshills/ghostwriter/internal/cursor"
	"github.com/dshills/ghostwriter/internal/document"
	"github.com/dshills/ghostwriter/internal/extract"
	"github.com/dshills/ghostwriter/internal/insert"
	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/surface"
)

// GhostOpacity is the presentation opacity of ghost text.
const GhostOpacity = 0.5

// Loop is the event loop a controller runs on.
type Loop interface {
	lifecycle.Loop
	Timers
}

// SelectionRange is a selection reported as offsets into the logical value.
type SelectionRange struct {
	Start int
	End   int
}

// Options configures a Controller.
type Options struct {
	Surface surface.Surface
	Loop    Loop

	InitialValue string
	// TextOnly forces paste and drop to insert plain text.
	TextOnly bool
	// Delay is the quiet period after a keystroke before a completion starts
	// automatically. Zero disables automatic completion.
	Delay time.Duration

	Handler           lifecycle.Handler
	ErrorHandler      lifecycle.ErrorHandler
	OnChange          func(value string)
	OnSelectionChange func(sel SelectionRange)

	Placeholder   string
	GhostClass    string
	Boundary      string
	TrailingBreak bool
	Logger        *logging.Logger
}

// Controller attaches a completion engine to a surface. All methods must be
// called on the loop goroutine.
type Controller struct {
	surface   surface.Surface
	doc       *document.Document
	container *document.Node
	loop      Loop
	engine    *lifecycle.Engine
	debounce  *Debouncer
	logger    *logging.Logger

	textOnly    bool
	onChange    func(string)
	onSelection func(SelectionRange)

	composing bool
	current   string
	lastSel   SelectionRange
	hasSel    bool
	closed    bool

	removers []func()
}

// New attaches a controller to the surface in opts.
func New(opts Options) (*Controller, error) {
	if opts.Surface == nil {
		return nil, ErrMissingSurface
	}
	if opts.Loop == nil {
		return nil, ErrMissingLoop
	}

	s := opts.Surface
	mode := extract.ModeTraversal
	renderer, ok := s.(extract.Renderer)
	if ok {
		mode = extract.ModeRendered
	}

	logger := logging.OrNull(opts.Logger)
	engine, err := lifecycle.New(lifecycle.Options{
		Document:      s.Document(),
		Container:     s.Container(),
		Loop:          opts.Loop,
		Handler:       opts.Handler,
		ErrorHandler:  opts.ErrorHandler,
		Boundary:      opts.Boundary,
		GhostClass:    opts.GhostClass,
		Mode:          mode,
		Renderer:      renderer,
		Scroller:      s,
		TrailingBreak: opts.TrailingBreak,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	c := &Controller{
		surface:     s,
		doc:         s.Document(),
		container:   s.Container(),
		loop:        opts.Loop,
		engine:      engine,
		logger:      logger.WithComponent("controller"),
		textOnly:    opts.TextOnly,
		onChange:    opts.OnChange,
		onSelection: opts.OnSelectionChange,
	}
	c.debounce = NewDebouncer(opts.Loop, opts.Delay, c.StartCompletion)

	if opts.InitialValue != "" {
		c.container.SetText(opts.InitialValue)
	}
	c.current = engine.Value()

	s.SetEditable(true)
	c.removers = append(c.removers,
		s.InjectStyle(surface.StyleRule{
			Tag:         engine.Tag(),
			Opacity:     GhostOpacity,
			Placeholder: opts.Placeholder,
		}),
		s.Listen(surface.EventKey, c.onKey),
		s.Listen(surface.EventInput, func(*surface.Event) { c.emitChange() }),
		s.Listen(surface.EventPaste, c.onTransfer),
		s.Listen(surface.EventDrop, c.onTransfer),
		s.Listen(surface.EventCompositionStart, func(*surface.Event) { c.composing = true }),
		s.Listen(surface.EventCompositionEnd, func(*surface.Event) {
			c.composing = false
			c.emitChange()
		}),
		c.doc.OnSelectionChange(c.selectionChanged),
	)
	return c, nil
}

// Engine returns the underlying completion engine.
func (c *Controller) Engine() *lifecycle.Engine { return c.engine }

// Value returns the last reported logical value.
func (c *Controller) Value() string { return c.current }

// SetValue replaces the content of the surface when v differs from the
// current value. Any completion in progress is discarded first.
func (c *Controller) SetValue(v string) {
	if v == c.current {
		return
	}
	c.engine.Stop()
	c.container.SetText(v)
	c.current = c.engine.Value()
}

// TextOnly reports whether paste and drop insert plain text only.
func (c *Controller) TextOnly() bool { return c.textOnly }

// StartCompletion begins a completion at the cursor.
func (c *Controller) StartCompletion() {
	if c.closed {
		return
	}
	c.engine.Start()
}

// StopCompletion discards the completion in progress.
func (c *Controller) StopCompletion() {
	c.debounce.Cancel()
	c.engine.Stop()
}

// AcceptChunk commits ghost text up to the next boundary and reports the
// new value and the cursor in front of the remaining ghost.
func (c *Controller) AcceptChunk() (string, bool) {
	accepted, ok := c.engine.AcceptChunk()
	if ok {
		c.emitChange()
		c.ReportCursorBeforeGhost()
	}
	return accepted, ok
}

func (c *Controller) onKey(ev *surface.Event) {
	if c.composing {
		return
	}
	mod := ev.Mod
	switch {
	case ev.Key == surface.KeyEnter && mod.Has(surface.ModCtrl):
		ev.PreventDefault()
		c.debounce.Cancel()
		c.StartCompletion()
	case ev.Key == surface.KeyEnter && !mod.Has(surface.ModAlt) && !mod.Has(surface.ModMeta):
		ev.PreventDefault()
		c.engine.Inserter().BeforeCursor(insert.Text("\n"), true)
		c.emitChange()
		c.scrollToCursor()
	case mod.Has(surface.ModCtrl) || mod.Has(surface.ModAlt) || mod.Has(surface.ModMeta) || mod.Has(surface.ModShift):
	case ev.Key == surface.KeyTab:
		ev.PreventDefault()
		c.AcceptChunk()
	case ev.Key == surface.KeyEscape:
		c.StopCompletion()
	case ev.Key != surface.KeyRune:
		// Named keys move or edit without touching the completion.
	default:
		c.engine.Stop()
		c.debounce.Call()
	}
}

// onTransfer handles paste and drop. Rich content is left to the host
// unless the controller is text-only or a ghost node is present.
func (c *Controller) onTransfer(ev *surface.Event) {
	if !c.textOnly && c.engine.Ghost() == nil {
		return
	}
	ev.PreventDefault()
	if ev.Text == "" {
		return
	}
	c.engine.Inserter().BeforeCursor(insert.Text(ev.Text), true)
	c.emitChange()
}

// scrollToCursor scrolls once pending cursor moves have been committed.
func (c *Controller) scrollToCursor() {
	c.loop.Defer(func() {
		if p, ok := cursor.Current(c.doc); ok && cursor.Contains(c.container, p) {
			c.surface.ScrollIntoView(p)
		}
	})
}

func (c *Controller) emitChange() {
	if c.composing || c.closed {
		return
	}
	v := c.engine.Value()
	if v == c.current {
		return
	}
	c.current = v
	if c.onChange != nil {
		c.onChange(v)
	}
}

func (c *Controller) selectionChanged() {
	if c.closed || c.engine.Active() {
		return
	}
	start, end, ok := cursor.SelectionOffsets(c.doc, c.container, c.engine.ExtractOptions())
	if !ok {
		return
	}
	c.report(SelectionRange{Start: start, End: end})
}

// ReportCursorBeforeGhost reports the position just before the ghost node
// as a collapsed selection. Without a ghost it reports the live selection.
func (c *Controller) ReportCursorBeforeGhost() {
	ghost := c.engine.Ghost()
	if ghost == nil || ghost.Parent() == nil {
		c.hasSel = false
		c.selectionChanged()
		return
	}
	off := cursor.OffsetOf(c.container, document.Before(ghost), c.engine.ExtractOptions())
	c.deliver(SelectionRange{Start: off, End: off})
}

// report delivers sel when it differs from the last reported selection.
func (c *Controller) report(sel SelectionRange) {
	if c.hasSel && sel == c.lastSel {
		return
	}
	c.deliver(sel)
}

func (c *Controller) deliver(sel SelectionRange) {
	c.lastSel, c.hasSel = sel, true
	if c.onSelection != nil {
		c.onSelection(sel)
	}
}

// Option changes a mounted controller.
type Option func(*Controller)

// WithTextOnly sets plain-text-only paste and drop.
func WithTextOnly(on bool) Option {
	return func(c *Controller) { c.textOnly = on }
}

// WithDelay sets the automatic completion delay. Zero disables it.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) { c.debounce.SetDelay(d) }
}

// WithHandler replaces the completion handler.
func WithHandler(h lifecycle.Handler) Option {
	return func(c *Controller) { c.engine.SetHandler(h) }
}

// WithErrorHandler replaces the error handler.
func WithErrorHandler(h lifecycle.ErrorHandler) Option {
	return func(c *Controller) { c.engine.SetErrorHandler(h) }
}

// WithOnChange replaces the change callback.
func WithOnChange(fn func(string)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithOnSelectionChange replaces the selection callback.
func WithOnSelectionChange(fn func(SelectionRange)) Option {
	return func(c *Controller) { c.onSelection = fn }
}

// WithBoundary replaces the partial-accept boundary set.
func WithBoundary(set string) Option {
	return func(c *Controller) { c.engine.SetBoundary(set) }
}

// WithValue replaces the content. See SetValue.
func WithValue(v string) Option {
	return func(c *Controller) { c.SetValue(v) }
}

// Update applies opts without remounting.
func (c *Controller) Update(opts ...Option) error {
	if c.closed {
		return ErrClosed
	}
	for _, opt := range opts {
		opt(c)
	}
	return nil
}

// Close releases every listener and injected style and stops any
// completion. The controller must not be used afterward.
func (c *Controller) Close() error {
	if c.closed {
		return ErrClosed
	}
	c.debounce.Cancel()
	c.engine.Close()
	for i := len(c.removers) - 1; i >= 0; i-- {
		c.removers[i]()
	}
	c.removers = nil
	c.closed = true
	c.logger.Debug("closed")
	return nil
}
