// Package insert splices content into a document at the cursor or relative
// to a node.
//
// Insertion happens in two phases. Staging places the nodes into the tree
// synchronously, so the document is immediately consistent. Committing moves
// the cursor next to the inserted content and normalizes the parent; the
// Inserter hands the commit to its Scheduler so it runs on the next loop
// turn, after the host has finished handling the current event.
package insert

import (
	"github.com/dshills/ghostwriter/internal/document"
)

// CursorPolicy says where the cursor goes once an insertion commits.
type CursorPolicy uint8

const (
	// CursorNone leaves the cursor alone.
	CursorNone CursorPolicy = iota
	// CursorBefore places the cursor before the first inserted node.
	CursorBefore
	// CursorAfter places the cursor after the last inserted node.
	CursorAfter
)

// String returns the policy name.
func (c CursorPolicy) String() string {
	switch c {
	case CursorBefore:
		return "before"
	case CursorAfter:
		return "after"
	default:
		return "none"
	}
}

// Content is what gets inserted: a string, a node or a sequence of nodes.
type Content struct {
	text   string
	nodes  []*document.Node
	isText bool
}

// Text returns string content. Newlines become line breaks.
func Text(s string) Content { return Content{text: s, isText: true} }

// Node returns single-node content.
func Node(n *document.Node) Content { return Content{nodes: []*document.Node{n}} }

// Nodes returns multi-node content.
func Nodes(ns ...*document.Node) Content { return Content{nodes: ns} }

// IsEmpty reports whether the content would insert nothing.
func (c Content) IsEmpty() bool {
	if c.isText {
		return c.text == ""
	}
	return len(c.nodes) == 0
}

func (c Content) materialize() []*document.Node {
	if c.isText {
		return document.TextNodes(c.text)
	}
	out := make([]*document.Node, 0, len(c.nodes))
	for _, n := range c.nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Target says where content goes: into Parent before Before (appended when
// Before is nil) with a cursor policy applied on commit.
type Target struct {
	Parent *document.Node
	Before *document.Node
	Cursor CursorPolicy
}

// Pending is a staged insertion awaiting commit.
type Pending struct {
	doc       *document.Document
	parent    *document.Node
	nodes     []*document.Node
	cursor    CursorPolicy
	committed bool
}

// Stage inserts content into the tree and returns the pending commit. It
// returns nil when the target has no parent or the content is empty.
func Stage(doc *document.Document, c Content, t Target) *Pending {
	if t.Parent == nil || c.IsEmpty() {
		return nil
	}
	nodes := c.materialize()
	if len(nodes) == 0 {
		return nil
	}
	ref := t.Before
	if ref != nil && ref.Parent() != t.Parent {
		ref = nil
	}
	for _, n := range nodes {
		t.Parent.InsertBefore(n, ref)
	}
	return &Pending{doc: doc, parent: t.Parent, nodes: nodes, cursor: t.Cursor}
}

// Nodes returns the inserted nodes.
func (p *Pending) Nodes() []*document.Node {
	if p == nil {
		return nil
	}
	return p.nodes
}

// Committed reports whether Commit has run.
func (p *Pending) Committed() bool { return p != nil && p.committed }

// Commit places the cursor and normalizes the parent. It runs at most once;
// a nil Pending is a no-op.
func (p *Pending) Commit() {
	if p == nil || p.committed {
		return
	}
	p.committed = true

	switch p.cursor {
	case CursorBefore:
		p.moveCursor(p.nodes[0], false)
	case CursorAfter:
		p.moveCursor(p.nodes[len(p.nodes)-1], true)
	}
	p.parent.Normalize()
}

// moveCursor collapses the selection at the start or end of n: inside n
// when it is text, otherwise beside it in its parent.
func (p *Pending) moveCursor(n *document.Node, after bool) {
	if p.doc == nil || n.Parent() == nil {
		return
	}
	if n.IsText() {
		off := 0
		if after {
			off = n.Len()
		}
		p.doc.Collapse(document.Position{Node: n, Offset: off})
		return
	}
	if after {
		p.doc.Collapse(document.After(n))
		return
	}
	p.doc.Collapse(document.Before(n))
}
