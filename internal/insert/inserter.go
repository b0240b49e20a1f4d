package insert

import (
	"github.com/dshills/ghostwriter/internal/cursor"
	"github.com/dshills/ghostwriter/internal/document"
)

// Scheduler runs a function on a later turn of the host event loop.
type Scheduler interface {
	Defer(fn func())
}

// Inserter inserts content into one document and schedules the commits.
type Inserter struct {
	doc   *document.Document
	sched Scheduler

	// TrailingBreak makes cursor insertions inside text ensure the parent
	// ends with a line break, for hosts that drop a trailing newline
	// otherwise.
	TrailingBreak bool
}

// Option configures an Inserter.
type Option func(*Inserter)

// WithTrailingBreak sets the TrailingBreak host option.
func WithTrailingBreak(on bool) Option {
	return func(in *Inserter) { in.TrailingBreak = on }
}

// New creates an Inserter. A nil scheduler commits immediately.
func New(doc *document.Document, sched Scheduler, opts ...Option) *Inserter {
	in := &Inserter{doc: doc, sched: sched}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Insert stages content at t and schedules the commit.
func (in *Inserter) Insert(c Content, t Target) *Pending {
	p := Stage(in.doc, c, t)
	if p == nil {
		return nil
	}
	if in.sched == nil {
		p.Commit()
	} else {
		in.sched.Defer(p.Commit)
	}
	return p
}

// AtCursor inserts content at the end of the current selection range. A text
// leaf holding the cursor is split so the content lands between the halves.
// It returns nil when there is no selection.
func (in *Inserter) AtCursor(c Content, policy CursorPolicy) *Pending {
	pos, ok := cursor.Current(in.doc)
	if !ok || pos.Node == nil {
		return nil
	}
	n := pos.Node
	switch n.Kind() {
	case document.KindText:
		parent := n.Parent()
		if parent == nil {
			return nil
		}
		if in.TrailingBreak {
			if last := parent.LastChild(); last == nil || !last.IsBreak() {
				parent.AppendChild(in.doc.CreateBreak())
			}
		}
		if pos.Offset < n.Len() {
			n.SplitText(pos.Offset)
		}
		return in.Insert(c, Target{Parent: parent, Before: n.NextSibling(), Cursor: policy})
	case document.KindBreak:
		if n.Parent() == nil {
			return nil
		}
		return in.Insert(c, Target{Parent: n.Parent(), Before: n, Cursor: policy})
	default:
		return in.Insert(c, Target{Parent: n, Before: n.Child(pos.Offset), Cursor: policy})
	}
}

// BeforeCursor inserts content so the cursor ends up after it. With collapse
// set, a non-empty selection is deleted first.
func (in *Inserter) BeforeCursor(c Content, collapse bool) *Pending {
	if collapse {
		in.collapse()
	}
	return in.AtCursor(c, CursorAfter)
}

// AfterCursor inserts content so the cursor stays before it. With collapse
// set, a non-empty selection is deleted first.
func (in *Inserter) AfterCursor(c Content, collapse bool) *Pending {
	if collapse {
		in.collapse()
	}
	return in.AtCursor(c, CursorBefore)
}

// BeforeNode inserts content before ref with the cursor after the content.
func (in *Inserter) BeforeNode(c Content, ref *document.Node) *Pending {
	if ref == nil {
		return nil
	}
	return in.Insert(c, Target{Parent: ref.Parent(), Before: ref, Cursor: CursorAfter})
}

// Append adds content as the last children of parent without moving the
// cursor.
func (in *Inserter) Append(c Content, parent *document.Node) *Pending {
	return in.Insert(c, Target{Parent: parent})
}

func (in *Inserter) collapse() {
	r, ok := cursor.Selection(in.doc)
	if !ok || r.Collapsed() {
		return
	}
	in.doc.Collapse(r.DeleteContents())
}
