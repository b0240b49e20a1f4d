// Package terminal implements an editing surface on a tcell screen. It
// runs the default editing actions for keys the controller does not
// prevent, draws ghost text faded toward the background and keeps the
// cursor line in view.
package terminal

import (
	"context"
	"strings"
	"sync"

	"github.com/atotto/clipboard"
	"github.com/gdamore/tcell/v2"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/dshills/ghostwriter/internal/cursor"
	"github.com/dshills/ghostwriter/internal/document"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/surface"
)

// Default colors used to compute faded ghost text.
const (
	DefaultForeground = "#d0d0d0"
	DefaultBackground = "#1c1c1c"
)

// Poster runs fn on the loop goroutine.
type Poster interface {
	Post(fn func())
}

// Options configures a Terminal.
type Options struct {
	// Screen is the tcell screen. Nil creates the default screen.
	Screen tcell.Screen
	Loop   Poster
	Logger *logging.Logger

	// Foreground and Background are hex colors.
	Foreground string
	Background string

	// OnQuit is called on Ctrl+C or Ctrl+Q.
	OnQuit func()
	// ReadClipboard returns the clipboard text for Ctrl+V. Nil uses the
	// system clipboard.
	ReadClipboard func() (string, error)
}

// Terminal is a tcell-backed surface.
type Terminal struct {
	*surface.Host

	screen tcell.Screen
	loop   Poster
	logger *logging.Logger
	quit   func()
	clip   func() (string, error)

	fg, bg colorful.Color

	// top is the first laid-out line shown on screen.
	top    int
	status string

	pasting  bool
	pasteBuf strings.Builder

	mu      sync.Mutex
	polling bool
}

// New creates a terminal surface. Init must be called before use.
func New(opts Options) (*Terminal, error) {
	screen := opts.Screen
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return nil, err
		}
		screen = s
	}

	fg, err := colorful.Hex(orDefault(opts.Foreground, DefaultForeground))
	if err != nil {
		return nil, err
	}
	bg, err := colorful.Hex(orDefault(opts.Background, DefaultBackground))
	if err != nil {
		return nil, err
	}

	clip := opts.ReadClipboard
	if clip == nil {
		clip = clipboard.ReadAll
	}

	return &Terminal{
		Host:   surface.NewHost(),
		screen: screen,
		loop:   opts.Loop,
		logger: logging.OrNull(opts.Logger).WithComponent("terminal"),
		quit:   opts.OnQuit,
		clip:   clip,
		fg:     fg,
		bg:     bg,
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Init initializes the screen.
func (t *Terminal) Init() error {
	if err := t.screen.Init(); err != nil {
		return err
	}
	t.screen.EnablePaste()
	t.Draw()
	return nil
}

// Shutdown restores the terminal.
func (t *Terminal) Shutdown() {
	t.screen.Fini()
}

// Start polls screen events on a goroutine and posts each one to the loop
// until ctx is done or the screen is finalized.
func (t *Terminal) Start(ctx context.Context) {
	t.mu.Lock()
	if t.polling {
		t.mu.Unlock()
		return
	}
	t.polling = true
	t.mu.Unlock()

	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil || ctx.Err() != nil {
				return
			}
			t.loop.Post(func() { t.HandleEvent(ev) })
		}
	}()
}

// SetStatus shows msg in the status line.
func (t *Terminal) SetStatus(msg string) {
	t.status = msg
	t.Draw()
}

// HandleEvent converts a tcell event, dispatches it and redraws.
func (t *Terminal) HandleEvent(ev tcell.Event) {
	switch e := ev.(type) {
	case *tcell.EventKey:
		t.handleKey(e)
	case *tcell.EventPaste:
		if e.Start() {
			t.pasting = true
			t.pasteBuf.Reset()
			return
		}
		t.pasting = false
		t.Dispatch(&surface.Event{Type: surface.EventPaste, Text: t.pasteBuf.String()})
	case *tcell.EventResize:
		w, h := e.Size()
		t.screen.Sync()
		t.Dispatch(&surface.Event{Type: surface.EventResize, Width: w, Height: h})
	case *tcell.EventFocus:
		t.Dispatch(&surface.Event{Type: surface.EventFocus, Focused: e.Focused})
	default:
		return
	}
	t.Draw()
}

func (t *Terminal) handleKey(e *tcell.EventKey) {
	if t.pasting {
		switch e.Key() {
		case tcell.KeyRune:
			t.pasteBuf.WriteRune(e.Rune())
		case tcell.KeyEnter, tcell.KeyCtrlJ:
			t.pasteBuf.WriteByte('\n')
		case tcell.KeyTab:
			t.pasteBuf.WriteByte('\t')
		}
		return
	}

	switch e.Key() {
	case tcell.KeyCtrlC, tcell.KeyCtrlQ:
		if t.quit != nil {
			t.quit()
		}
		return
	case tcell.KeyCtrlV:
		text, err := t.clip()
		if err != nil {
			t.logger.WithError(err).Warn("clipboard read failed")
			t.status = "clipboard unavailable"
			return
		}
		t.Dispatch(&surface.Event{Type: surface.EventPaste, Text: text})
		return
	}

	key, mod := convertKey(e)
	if key == surface.KeyNone {
		return
	}
	ev := &surface.Event{Type: surface.EventKey, Key: key, Mod: mod}
	if key == surface.KeyRune {
		ev.Rune = e.Rune()
	}
	t.Dispatch(ev)
}

// ScrollIntoView scrolls so that the line holding p is visible, centering
// it when it was off screen.
func (t *Terminal) ScrollIntoView(p document.Position) {
	lay := surface.Lay(t.Container(), t.Styles().Ghosted)
	line, _ := lay.Locate(p)
	rows := t.rows()
	if line < t.top || line >= t.top+rows {
		t.top = line - rows/2
	}
	t.clampTop(len(lay.Lines))
}

func (t *Terminal) clampTop(lines int) {
	if limit := lines - t.rows(); t.top > limit {
		t.top = limit
	}
	if t.top < 0 {
		t.top = 0
	}
}

// rows returns the number of text rows above the status line.
func (t *Terminal) rows() int {
	_, h := t.screen.Size()
	if h <= 1 {
		return 1
	}
	return h - 1
}

// RenderedText returns the text of n as the terminal lays it out.
func (t *Terminal) RenderedText(n *document.Node) string {
	return surface.Lay(n, nil).Text()
}

// ghostStyle fades the foreground toward the background by opacity.
func (t *Terminal) ghostStyle(opacity float64) tcell.Style {
	c := t.bg.BlendRgb(t.fg, opacity)
	r, g, b := c.RGB255()
	return tcell.StyleDefault.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b)))
}

// Draw redraws the screen.
func (t *Terminal) Draw() {
	t.screen.Clear()
	width, _ := t.screen.Size()
	rows := t.rows()
	styles := t.Styles()
	lay := surface.Lay(t.Container(), styles.Ghosted)
	t.clampTop(len(lay.Lines))

	base := tcell.StyleDefault
	empty := lay.Text() == ""
	if ph := styles.Placeholder(); empty && ph != "" {
		t.drawString(0, 0, ph, t.ghostStyle(0.5))
	}

	for row := 0; row < rows && t.top+row < len(lay.Lines); row++ {
		x := 0
		for _, c := range lay.Lines[t.top+row].Cells {
			if x >= width {
				break
			}
			style := base
			if c.Ghost {
				if rule, ok := styles.Match(c.Pos.Node); ok {
					style = t.ghostStyle(rule.Opacity)
				}
			}
			r := c.Rune
			if r == '\t' {
				r = ' '
			}
			t.screen.SetContent(x, row, r, nil, style)
			x += max(c.Width, 1)
		}
	}

	if p, ok := cursor.Current(t.Document()); ok && cursor.Contains(t.Container(), p) {
		line, col := lay.Locate(p)
		if line >= t.top && line < t.top+rows {
			t.screen.ShowCursor(lay.Column(line, col), line-t.top)
		} else {
			t.screen.HideCursor()
		}
	} else {
		t.screen.ShowCursor(0, 0)
	}

	t.drawStatus(width, rows)
	t.screen.Show()
}

func (t *Terminal) drawStatus(width, row int) {
	style := tcell.StyleDefault.Reverse(true)
	for x := 0; x < width; x++ {
		t.screen.SetContent(x, row, ' ', nil, style)
	}
	msg := t.status
	if msg == "" {
		msg = "Ctrl+Space complete  Tab accept  Esc dismiss  Ctrl+Q quit"
	}
	t.drawString(0, row, msg, style)
}

func (t *Terminal) drawString(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

var _ surface.Surface = (*Terminal)(nil)
