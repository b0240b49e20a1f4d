package document

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Tag is a scoped node marker. Tags compare by identity, so two engines
// mounted on the same document never see each other's nodes.
type Tag struct {
	name string
}

// NewTag creates a tag whose name is prefix followed by a random suffix.
// Hosts use the name as a style class.
func NewTag(prefix string) *Tag {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return &Tag{name: id[:12]}
	}
	return &Tag{name: prefix + "-" + id[:12]}
}

// NamedTag creates a tag with an exact name.
func NamedTag(name string) *Tag {
	return &Tag{name: name}
}

// Name returns the tag name.
func (t *Tag) Name() string { return t.name }

// Document owns an editable tree, a hidden staging container and the
// selection. It is not safe for concurrent use; hosts drive it from a single
// event loop.
type Document struct {
	root    *Node
	staging *Node

	sel    Selection
	hasSel bool

	depth   int
	changed bool

	mu        sync.Mutex
	listeners map[int]func()
	nextID    int
}

// New creates a document with an empty block root.
func New() *Document {
	d := &Document{listeners: make(map[int]func())}
	d.root = d.CreateElement("div")
	d.staging = d.CreateElement("div")
	return d
}

// Root returns the root container.
func (d *Document) Root() *Node { return d.root }

// Staging returns the hidden container used for rendered-text extraction.
// Nodes attached to it are never visible.
func (d *Document) Staging() *Node { return d.staging }

// CreateElement creates an element owned by d.
func (d *Document) CreateElement(name string) *Node {
	n := NewElement(name)
	n.owner = d
	return n
}

// CreateText creates a text node owned by d.
func (d *Document) CreateText(s string) *Node {
	n := NewText(s)
	n.owner = d
	return n
}

// CreateBreak creates a line-break node owned by d.
func (d *Document) CreateBreak() *Node {
	n := NewBreak()
	n.owner = d
	return n
}

// Selection returns the current selection. ok is false when nothing is
// selected.
func (d *Document) Selection() (sel Selection, ok bool) {
	return d.sel, d.hasSel
}

// SetSelection sets the selection anchor and focus.
func (d *Document) SetSelection(anchor, focus Position) {
	d.mutate(func() {
		if d.hasSel && d.sel.Anchor == anchor && d.sel.Focus == focus {
			return
		}
		d.sel = Selection{Anchor: anchor, Focus: focus}
		d.hasSel = true
		d.changed = true
	})
}

// Collapse places a collapsed selection at p.
func (d *Document) Collapse(p Position) {
	d.SetSelection(p, p)
}

// SelectRange selects r with the anchor at its start.
func (d *Document) SelectRange(r Range) {
	d.SetSelection(r.Start, r.End)
}

// ClearSelection removes the selection.
func (d *Document) ClearSelection() {
	d.mutate(func() {
		if !d.hasSel {
			return
		}
		d.sel = Selection{}
		d.hasSel = false
		d.changed = true
	})
}

// OnSelectionChange registers fn to run after any call that changed the
// selection, including mutations that moved it. The returned function
// removes the listener.
func (d *Document) OnSelectionChange(fn func()) (remove func()) {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

// mutate runs fn as one mutation. Listeners run once, after the outermost
// mutation finishes, if the selection changed.
func (d *Document) mutate(fn func()) {
	d.depth++
	fn()
	d.depth--
	if d.depth > 0 || !d.changed {
		return
	}
	d.changed = false

	d.mu.Lock()
	listeners := make([]func(), 0, len(d.listeners))
	for id := 0; id < d.nextID; id++ {
		if l, ok := d.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	d.mu.Unlock()

	for _, l := range listeners {
		l()
	}
}

// adjust applies fn to both selection boundaries.
func (d *Document) adjust(fn func(p *Position)) {
	if !d.hasSel {
		return
	}
	before := d.sel
	fn(&d.sel.Anchor)
	fn(&d.sel.Focus)
	if d.sel != before {
		d.changed = true
	}
}
