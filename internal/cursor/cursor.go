// Package cursor answers where the cursor is: its boundary position, the
// ordered selection range, containment in an editing container and its
// offset in extracted text.
package cursor

import (
	"unicode/utf8"

	"github.com/dshills/ghostwriter/internal/document"
	"github.com/dshills/ghostwriter/internal/extract"
)

// Current returns the cursor position, which is the end of the current
// selection range. ok is false when nothing is selected.
func Current(doc *document.Document) (document.Position, bool) {
	sel, ok := doc.Selection()
	if !ok {
		return document.Position{}, false
	}
	return sel.Range().End, true
}

// Selection returns the ordered range of the current selection.
func Selection(doc *document.Document) (document.Range, bool) {
	sel, ok := doc.Selection()
	if !ok {
		return document.Range{}, false
	}
	return sel.Range(), true
}

// Contains reports whether p lies inside container.
func Contains(container *document.Node, p document.Position) bool {
	return p.Node != nil && container.Contains(p.Node)
}

// InContainer reports whether the whole selection lies inside container.
func InContainer(doc *document.Document, container *document.Node) bool {
	r, ok := Selection(doc)
	return ok && Contains(container, r.Start) && Contains(container, r.End)
}

// OffsetOf returns the rune length of the text of container preceding p.
func OffsetOf(container *document.Node, p document.Position, opts extract.Options) int {
	return utf8.RuneCountInString(extract.Before(container, p, opts))
}

// SelectionOffsets returns the text offsets of the selection start and end
// within container. ok is false without a selection or when either end lies
// outside container.
func SelectionOffsets(doc *document.Document, container *document.Node, opts extract.Options) (start, end int, ok bool) {
	r, ok := Selection(doc)
	if !ok || !Contains(container, r.Start) || !Contains(container, r.End) {
		return 0, 0, false
	}
	before, _ := extract.BeforeSelectionStart(doc, container, opts)
	start = utf8.RuneCountInString(before)
	if r.Collapsed() {
		return start, start, true
	}
	return start, OffsetOf(container, r.End, opts), true
}
