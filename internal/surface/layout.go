package surface

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/dshills/ghostwriter/internal/document"
)

// Cell is one rune of laid-out text.
type Cell struct {
	Rune  rune
	Width int
	// Pos is the boundary point just before the rune.
	Pos   document.Position
	Ghost bool
}

// Line is a row of cells. End is the caret position at the end of the row.
type Line struct {
	Cells []Cell
	End   document.Position
}

// Width returns the display width of the line.
func (l Line) Width() int {
	w := 0
	for _, c := range l.Cells {
		w += c.Width
	}
	return w
}

// Layout is a container broken into display lines.
type Layout struct {
	Lines []Line
	ghost func(*document.Node) bool
	stops []document.Position
}

// Lay breaks container into lines the way text extraction does: block
// elements and breaks start new lines. ghost marks nodes whose text is
// presentation only; their cells are drawn but are never caret stops.
func Lay(container *document.Node, ghost func(*document.Node) bool) *Layout {
	if ghost == nil {
		ghost = func(*document.Node) bool { return false }
	}
	l := &layouter{ghost: ghost}
	l.last = Canonical(document.Start(container), ghost)
	l.walk(container, false)
	l.cur.End = l.last
	l.lines = append(l.lines, l.cur)

	out := &Layout{Lines: l.lines, ghost: ghost}
	for _, ln := range out.Lines {
		for _, c := range ln.Cells {
			if !c.Ghost {
				out.stops = append(out.stops, c.Pos)
			}
		}
		out.stops = append(out.stops, ln.End)
	}
	return out
}

type layouter struct {
	ghost   func(*document.Node) bool
	lines   []Line
	cur     Line
	last    document.Position
	started bool
	pending bool
}

func (l *layouter) walk(n *document.Node, inGhost bool) {
	inGhost = inGhost || l.ghost(n)
	switch n.Kind() {
	case document.KindText:
		data := []rune(n.Data())
		if len(data) == 0 {
			return
		}
		l.flush()
		for i, r := range data {
			l.cur.Cells = append(l.cur.Cells, Cell{
				Rune:  r,
				Width: uniseg.StringWidth(string(r)),
				Pos:   document.Position{Node: n, Offset: i},
				Ghost: inGhost,
			})
			if !inGhost {
				l.last = document.Position{Node: n, Offset: i + 1}
			}
		}
		l.started = true
	case document.KindBreak:
		l.flush()
		l.newline()
		if !inGhost {
			l.last = Canonical(document.After(n), l.ghost)
		}
		l.started = true
	case document.KindElement:
		if n.IsBlock() {
			l.separate()
		}
		for i := 0; i < n.ChildCount(); i++ {
			l.walk(n.Child(i), inGhost)
		}
		if n.IsBlock() {
			l.separate()
		}
	}
}

func (l *layouter) newline() {
	l.cur.End = l.last
	l.lines = append(l.lines, l.cur)
	l.cur = Line{}
}

func (l *layouter) flush() {
	if l.pending {
		l.newline()
		l.pending = false
	}
}

func (l *layouter) separate() {
	if l.started && len(l.cur.Cells) > 0 {
		l.pending = true
	}
}

// Text returns the laid-out text, lines joined by newlines.
func (lay *Layout) Text() string {
	var b strings.Builder
	for i, ln := range lay.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		for _, c := range ln.Cells {
			b.WriteRune(c.Rune)
		}
	}
	return b.String()
}

// Stops returns every caret stop in document order.
func (lay *Layout) Stops() []document.Position { return lay.stops }

// StopIndex returns the index of the first stop at or after p, and whether
// that stop is p itself.
func (lay *Layout) StopIndex(p document.Position) (int, bool) {
	p = Canonical(p, lay.ghost)
	for i, s := range lay.stops {
		switch document.Compare(s, p) {
		case 0:
			return i, true
		case 1:
			return i, false
		}
	}
	return len(lay.stops) - 1, false
}

// Locate returns the line and cell index at which a caret at p is drawn.
// The column equals len(Cells) when the caret sits at the end of the line.
func (lay *Layout) Locate(p document.Position) (line, col int) {
	p = Canonical(p, lay.ghost)
	for li, ln := range lay.Lines {
		for ci, c := range ln.Cells {
			if document.Compare(c.Pos, p) >= 0 {
				return li, ci
			}
		}
		if document.Compare(ln.End, p) >= 0 {
			return li, len(ln.Cells)
		}
	}
	last := len(lay.Lines) - 1
	return last, len(lay.Lines[last].Cells)
}

// Column returns the display column of the cell index col on line.
func (lay *Layout) Column(line, col int) int {
	w := 0
	for _, c := range lay.Lines[line].Cells[:col] {
		w += c.Width
	}
	return w
}

// Canonical moves a position between children of an element to the adjacent
// text, preferring the text before it. Positions are never moved into nodes
// marked by ghost.
func Canonical(p document.Position, ghost func(*document.Node) bool) document.Position {
	if p.Node != nil && p.Node.IsBreak() && p.Node.Parent() != nil {
		p = document.Before(p.Node)
	}
	for p.Node != nil && p.Node.Kind() == document.KindElement {
		if prev := p.Node.Child(p.Offset - 1); prev != nil && !isGhost(prev, ghost) && prev.Kind() != document.KindBreak && !prev.IsBlock() {
			p = document.End(prev)
			continue
		}
		if next := p.Node.Child(p.Offset); next != nil && !isGhost(next, ghost) && next.Kind() != document.KindBreak && !next.IsBlock() {
			p = document.Start(next)
			continue
		}
		break
	}
	return p
}

func isGhost(n *document.Node, ghost func(*document.Node) bool) bool {
	return ghost != nil && ghost(n)
}
