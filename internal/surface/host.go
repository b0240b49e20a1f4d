package surface

import (
	"sync"

	"github.com/dshills/ghostwriter/internal/document"
)

// Host holds the state every surface implementation shares and runs the
// default action for events its listeners do not prevent. Hosts embed it
// and add presentation.
type Host struct {
	doc       *document.Document
	container *document.Node
	listeners Listeners
	styles    Styles
	editor    *Editor

	mu       sync.Mutex
	editable bool
}

// NewHost creates a host over a fresh document whose root is the container.
func NewHost() *Host {
	doc := document.New()
	h := &Host{doc: doc, container: doc.Root(), editable: true}
	h.editor = &Editor{Doc: doc, Container: h.container, Ghost: h.styles.Ghosted}
	return h
}

// Document returns the host document.
func (h *Host) Document() *document.Document { return h.doc }

// Container returns the editable root.
func (h *Host) Container() *document.Node { return h.container }

// Listen registers fn for events of type t.
func (h *Host) Listen(t EventType, fn Listener) (remove func()) { return h.listeners.Add(t, fn) }

// Listeners returns the listener registry.
func (h *Host) Listeners() *Listeners { return &h.listeners }

// InjectStyle registers a presentation rule.
func (h *Host) InjectStyle(rule StyleRule) (remove func()) { return h.styles.Add(rule) }

// Styles returns the style registry.
func (h *Host) Styles() *Styles { return &h.styles }

// Editor returns the editor applying default actions.
func (h *Host) Editor() *Editor { return h.editor }

// SetEditable toggles whether default editing actions run.
func (h *Host) SetEditable(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.editable = on
}

// Editable reports whether default editing actions run.
func (h *Host) Editable() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.editable
}

// Dispatch delivers ev to listeners and, unless prevented, applies the
// default action. An input event follows any default action that changed
// the document. It reports whether the document changed.
func (h *Host) Dispatch(ev *Event) bool {
	h.listeners.Dispatch(ev)
	if ev.DefaultPrevented() || !h.Editable() {
		return false
	}
	if !h.defaultAction(ev) {
		return false
	}
	h.listeners.Dispatch(&Event{Type: EventInput})
	return true
}

// defaultAction applies the host's own handling of ev and reports whether
// the document changed.
func (h *Host) defaultAction(ev *Event) bool {
	ed := h.editor
	switch ev.Type {
	case EventKey:
		switch ev.Key {
		case KeyRune:
			if ev.Mod.Has(ModCtrl) || ev.Mod.Has(ModAlt) || ev.Mod.Has(ModMeta) {
				return false
			}
			ed.InsertText(string(ev.Rune))
			return true
		case KeyEnter:
			ed.InsertText("\n")
			return true
		case KeyTab:
			ed.InsertText("\t")
			return true
		case KeyBackspace:
			return ed.DeleteBackward()
		case KeyDelete:
			return ed.DeleteForward()
		case KeyLeft:
			ed.Move(-1)
		case KeyRight:
			ed.Move(1)
		case KeyUp:
			ed.MoveLine(-1)
		case KeyDown:
			ed.MoveLine(1)
		case KeyHome:
			ed.Home()
		case KeyEnd:
			ed.End()
		}
	case EventPaste, EventDrop:
		if ev.Text == "" {
			return false
		}
		ed.InsertText(ev.Text)
		return true
	}
	return false
}

// Compose runs an input-method composition that commits text.
func (h *Host) Compose(text string) {
	h.listeners.Dispatch(&Event{Type: EventCompositionStart})
	if h.Editable() && text != "" {
		h.editor.InsertText(text)
		h.listeners.Dispatch(&Event{Type: EventInput})
	}
	h.listeners.Dispatch(&Event{Type: EventCompositionEnd, Text: text})
}

// Memory is a headless surface. It records scroll requests instead of
// drawing.
type Memory struct {
	*Host

	mu       sync.Mutex
	scrolled []document.Position
}

// NewMemory creates a headless surface.
func NewMemory() *Memory {
	return &Memory{Host: NewHost()}
}

// ScrollIntoView records p.
func (m *Memory) ScrollIntoView(p document.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrolled = append(m.scrolled, p)
}

// Scrolled returns the recorded scroll requests.
func (m *Memory) Scrolled() []document.Position {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]document.Position(nil), m.scrolled...)
}

// Type dispatches a key event for each rune of s.
func (m *Memory) Type(s string) {
	for _, r := range s {
		m.Dispatch(&Event{Type: EventKey, Key: KeyRune, Rune: r})
	}
}

// Press dispatches a key event for a named key.
func (m *Memory) Press(k Key, mod ModMask) *Event {
	ev := &Event{Type: EventKey, Key: k, Mod: mod}
	m.Dispatch(ev)
	return ev
}

// Paste dispatches a paste event.
func (m *Memory) Paste(text string, rich bool) *Event {
	ev := &Event{Type: EventPaste, Text: text, Rich: rich}
	m.Dispatch(ev)
	return ev
}

var _ Surface = (*Memory)(nil)
