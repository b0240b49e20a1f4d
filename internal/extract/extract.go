// Package extract converts document subtrees to plain text the way a user
// sees them, optionally excluding tagged (ghost) nodes.
package extract

import (
	"strings"

	"github.com/dshills/ghostwriter/internal/document"
)

// Mode selects how text is produced.
type Mode uint8

const (
	// ModeTraversal walks the tree: block boundaries and line breaks become
	// single newlines.
	ModeTraversal Mode = iota
	// ModeRendered asks the host to lay out the content. The copy is attached
	// to the document's hidden staging container while it is read.
	ModeRendered
)

// Renderer is implemented by hosts that can report rendered text for a node
// attached to the document.
type Renderer interface {
	RenderedText(n *document.Node) string
}

// Pruner removes nodes from a detached copy before text is read.
type Pruner func(root *document.Node)

// PruneTag returns a pruner that removes every node carrying one of tags.
func PruneTag(tags ...*document.Tag) Pruner {
	return func(root *document.Node) {
		for _, tag := range tags {
			for _, n := range root.QueryTag(tag) {
				n.Remove()
			}
		}
	}
}

// Options configures extraction.
type Options struct {
	Prune    Pruner
	Mode     Mode
	Renderer Renderer
}

// Extract returns the text of n. The live tree is never modified.
func Extract(n *document.Node, opts Options) string {
	if n == nil {
		return ""
	}
	return read(n.Clone(true), opts)
}

// Value returns the logical value of a container: its text with a single
// trailing newline removed.
func Value(container *document.Node, opts Options) string {
	return strings.TrimSuffix(Extract(container, opts), "\n")
}

// Before returns the text of container preceding p.
func Before(container *document.Node, p document.Position, opts Options) string {
	r := document.Range{Start: document.Start(container), End: p}
	return read(r.CloneContents(), opts)
}

// After returns the text of container following p.
func After(container *document.Node, p document.Position, opts Options) string {
	r := document.Range{Start: p, End: document.End(container)}
	return read(r.CloneContents(), opts)
}

// BeforeCursor returns the text before the end of the current selection.
// ok is false when the document has no selection.
func BeforeCursor(doc *document.Document, container *document.Node, opts Options) (string, bool) {
	sel, ok := doc.Selection()
	if !ok {
		return "", false
	}
	return Before(container, sel.Range().End, opts), true
}

// AfterCursor returns the text after the end of the current selection.
// ok is false when the document has no selection.
func AfterCursor(doc *document.Document, container *document.Node, opts Options) (string, bool) {
	sel, ok := doc.Selection()
	if !ok {
		return "", false
	}
	return After(container, sel.Range().End, opts), true
}

// BeforeSelectionStart returns the text before the start of the current
// selection. ok is false when the document has no selection.
func BeforeSelectionStart(doc *document.Document, container *document.Node, opts Options) (string, bool) {
	sel, ok := doc.Selection()
	if !ok {
		return "", false
	}
	return Before(container, sel.Range().Start, opts), true
}

// read prunes a detached copy and produces its text.
func read(n *document.Node, opts Options) string {
	if opts.Prune != nil {
		opts.Prune(n)
	}
	if opts.Mode == ModeRendered && opts.Renderer != nil {
		if doc := n.Owner(); doc != nil {
			doc.Staging().AppendChild(n)
			defer n.Remove()
			return opts.Renderer.RenderedText(n)
		}
	}
	return Text(n)
}

// Text walks n and returns its plain text. Block elements are separated by
// exactly one newline, leading and trailing block separators are dropped,
// and each line break contributes one newline.
func Text(n *document.Node) string {
	var w writer
	w.walk(n)
	return w.b.String()
}

type writer struct {
	b       strings.Builder
	started bool
	pending bool
}

func (w *writer) walk(n *document.Node) {
	switch n.Kind() {
	case document.KindText:
		w.write(n.Data())
	case document.KindBreak:
		w.flush()
		w.b.WriteByte('\n')
		w.started = true
	case document.KindElement:
		if n.IsBlock() {
			w.separate()
		}
		for i := 0; i < n.ChildCount(); i++ {
			w.walk(n.Child(i))
		}
		if n.IsBlock() {
			w.separate()
		}
	}
}

func (w *writer) write(s string) {
	if s == "" {
		return
	}
	w.flush()
	w.b.WriteString(s)
	w.started = true
}

func (w *writer) flush() {
	if w.pending {
		w.b.WriteByte('\n')
		w.pending = false
	}
}

func (w *writer) separate() {
	if w.started && !strings.HasSuffix(w.b.String(), "\n") {
		w.pending = true
	}
}
