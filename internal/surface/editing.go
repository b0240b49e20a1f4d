package surface

import (
	"strings"

	"github.com/dshills/ghostwriter/internal/cursor"
	"github.com/dshills/ghostwriter/internal/document"
)

// Editor applies the default editing actions of a host to its container.
// Ghost reports presentation-only nodes, which the caret skips.
type Editor struct {
	Doc       *document.Document
	Container *document.Node
	Ghost     func(*document.Node) bool
}

// Layout lays out the container.
func (e *Editor) Layout() *Layout { return Lay(e.Container, e.Ghost) }

// caret returns the cursor, placing it at the end of the container when
// there is no selection inside it.
func (e *Editor) caret() document.Range {
	r, ok := cursor.Selection(e.Doc)
	if !ok || !cursor.Contains(e.Container, r.Start) || !cursor.Contains(e.Container, r.End) {
		stops := e.Layout().Stops()
		p := stops[len(stops)-1]
		e.Doc.Collapse(p)
		return document.Range{Start: p, End: p}
	}
	return r
}

// InsertText replaces the selection with s, converting newlines to breaks,
// and leaves the cursor after it.
func (e *Editor) InsertText(s string) {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if s == "" {
		return
	}
	r := e.caret()
	p := r.Start
	if !r.Collapsed() {
		p = r.DeleteContents()
	}
	p = Canonical(p, e.Ghost)

	for i, seg := range strings.Split(s, "\n") {
		if i > 0 {
			p = e.insertBreak(p)
		}
		if seg != "" {
			p = e.insertRun(p, seg)
		}
	}
	e.Doc.Collapse(p)
}

func (e *Editor) insertRun(p document.Position, s string) document.Position {
	if p.Node.IsText() {
		p.Node.InsertData(p.Offset, s)
		return document.Position{Node: p.Node, Offset: p.Offset + len([]rune(s))}
	}
	t := e.Doc.CreateText(s)
	p.Node.InsertBefore(t, p.Node.Child(p.Offset))
	return document.End(t)
}

func (e *Editor) insertBreak(p document.Position) document.Position {
	br := e.Doc.CreateBreak()
	if p.Node.IsText() {
		n := p.Node
		if p.Offset < n.Len() {
			n.SplitText(p.Offset)
		}
		n.Parent().InsertBefore(br, n.NextSibling())
	} else {
		p.Node.InsertBefore(br, p.Node.Child(p.Offset))
	}
	return document.After(br)
}

// DeleteBackward removes the selection, or the character before the cursor.
func (e *Editor) DeleteBackward() bool {
	r := e.caret()
	if !r.Collapsed() {
		e.Doc.Collapse(r.DeleteContents())
		return true
	}
	lay := e.Layout()
	i, _ := lay.StopIndex(r.Start)
	if i == 0 {
		return false
	}
	from := lay.Stops()[i-1]
	e.remove(document.Range{Start: from, End: r.Start})
	return true
}

// DeleteForward removes the selection, or the character after the cursor.
func (e *Editor) DeleteForward() bool {
	r := e.caret()
	if !r.Collapsed() {
		e.Doc.Collapse(r.DeleteContents())
		return true
	}
	lay := e.Layout()
	stops := lay.Stops()
	i, exact := lay.StopIndex(r.Start)
	if i+1 >= len(stops) {
		return false
	}
	from := r.Start
	if !exact {
		from = stops[i]
	}
	e.remove(document.Range{Start: from, End: stops[i+1]})
	return true
}

func (e *Editor) remove(r document.Range) {
	p := r.DeleteContents()
	if p.Node != nil {
		e.Doc.Collapse(p)
	}
	e.Container.Normalize()
}

// Move moves the cursor by delta caret stops and collapses the selection.
func (e *Editor) Move(delta int) {
	r := e.caret()
	from := r.End
	if delta < 0 {
		from = r.Start
	}
	lay := e.Layout()
	stops := lay.Stops()
	i, exact := lay.StopIndex(from)
	if delta < 0 {
		i += delta
	} else if exact {
		i += delta
	} else {
		i += delta - 1
	}
	e.Doc.Collapse(stops[clampIndex(i, len(stops))])
}

// MoveLine moves the cursor delta lines up or down, keeping its column.
func (e *Editor) MoveLine(delta int) {
	r := e.caret()
	lay := e.Layout()
	line, col := lay.Locate(r.End)
	x := lay.Column(line, col)
	target := clampIndex(line+delta, len(lay.Lines))
	e.Doc.Collapse(lay.At(target, x))
}

// Home moves the cursor to the start of its line.
func (e *Editor) Home() {
	lay := e.Layout()
	line, _ := lay.Locate(e.caret().End)
	e.Doc.Collapse(lay.At(line, 0))
}

// End moves the cursor to the end of its line.
func (e *Editor) End() {
	lay := e.Layout()
	line, _ := lay.Locate(e.caret().End)
	e.Doc.Collapse(lay.Lines[line].End)
}

// At returns the caret stop on line nearest display column x.
func (lay *Layout) At(line, x int) document.Position {
	ln := lay.Lines[line]
	w := 0
	for _, c := range ln.Cells {
		if c.Ghost {
			continue
		}
		if w >= x {
			return c.Pos
		}
		w += c.Width
	}
	return ln.End
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
