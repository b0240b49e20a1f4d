package document

// Position is a boundary point: a node and an offset into it. For text nodes
// the offset counts runes; for elements it counts children.
type Position struct {
	Node   *Node
	Offset int
}

// Before returns the position immediately before n in its parent.
func Before(n *Node) Position {
	return Position{Node: n.Parent(), Offset: n.Index()}
}

// After returns the position immediately after n in its parent.
func After(n *Node) Position {
	return Position{Node: n.Parent(), Offset: n.Index() + 1}
}

// Start returns the position at the start of n.
func Start(n *Node) Position {
	return Position{Node: n, Offset: 0}
}

// End returns the position at the end of n.
func End(n *Node) Position {
	return Position{Node: n, Offset: n.Len()}
}

// IsZero reports whether p has no node.
func (p Position) IsZero() bool { return p.Node == nil }

// Valid reports whether the offset lies within the node.
func (p Position) Valid() bool {
	return p.Node != nil && p.Offset >= 0 && p.Offset <= p.Node.Len()
}

// path returns the child-index path from the root down to the position.
func (p Position) path() []int {
	var rev []int
	rev = append(rev, p.Offset)
	for n := p.Node; n.parent != nil; n = n.parent {
		rev = append(rev, n.Index())
	}
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

// Compare orders two positions in the same tree: -1 when a is before b, 0
// when equal, +1 when after. Positions in different trees compare as 0.
func Compare(a, b Position) int {
	if a == b {
		return 0
	}
	if a.Node == nil || b.Node == nil || a.Node.Root() != b.Node.Root() {
		return 0
	}
	pa, pb := a.path(), b.path()
	for i := 0; i < len(pa) && i < len(pb); i++ {
		switch {
		case pa[i] < pb[i]:
			return -1
		case pa[i] > pb[i]:
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	}
	return 0
}

// Range is an ordered pair of positions with Start never after End.
type Range struct {
	Start Position
	End   Position
}

// NewRange builds a range from two positions in either order.
func NewRange(a, b Position) Range {
	if Compare(a, b) > 0 {
		a, b = b, a
	}
	return Range{Start: a, End: b}
}

// Contents returns the range spanning all of n's contents.
func Contents(n *Node) Range {
	return Range{Start: Start(n), End: End(n)}
}

// Collapsed reports whether the range is empty.
func (r Range) Collapsed() bool { return r.Start == r.End }

// CommonAncestor returns the deepest node containing both boundaries.
func (r Range) CommonAncestor() *Node {
	if r.Start.Node == nil || r.End.Node == nil {
		return nil
	}
	for n := r.Start.Node; n != nil; n = n.parent {
		if n.Contains(r.End.Node) {
			return n
		}
	}
	return nil
}

// CloneContents copies the content of the range into a new detached
// fragment. Partially covered elements are copied shallowly with only their
// covered descendants; partially covered text is trimmed.
func (r Range) CloneContents() *Node {
	frag := NewFragment()
	frag.owner = r.ownerDoc()
	ca := r.CommonAncestor()
	if ca == nil || r.Collapsed() {
		return frag
	}
	if ca.kind == KindText {
		s, e := clamp(r.Start.Offset, 0, len(ca.data)), clamp(r.End.Offset, 0, len(ca.data))
		if s < e {
			t := ca.Clone(false)
			t.data = append([]rune(nil), ca.data[s:e]...)
			frag.AppendChild(t)
		}
		return frag
	}
	r.cloneInto(frag, ca)
	return frag
}

func (r Range) cloneInto(dst, n *Node) {
	for i, c := range n.children {
		switch r.cover(n, i) {
		case coverNone:
		case coverFull:
			dst.AppendChild(c.Clone(true))
		case coverPartial:
			switch c.kind {
			case KindText:
				s, e := r.textSpan(c)
				if s < e {
					t := c.Clone(false)
					t.data = append([]rune(nil), c.data[s:e]...)
					dst.AppendChild(t)
				}
			case KindElement:
				cc := c.Clone(false)
				r.cloneInto(cc, c)
				dst.AppendChild(cc)
			}
		}
	}
}

// DeleteContents removes the content of the range from the tree and returns
// the position where the range collapses.
func (r Range) DeleteContents() Position {
	if r.Collapsed() {
		return r.Start
	}
	ca := r.CommonAncestor()
	if ca == nil {
		return r.Start
	}
	if ca.kind == KindText {
		s, e := clamp(r.Start.Offset, 0, len(ca.data)), clamp(r.End.Offset, 0, len(ca.data))
		ca.DeleteData(s, e-s)
		return Position{Node: ca, Offset: s}
	}

	collapse := r.Start
	if !r.Start.Node.Contains(r.End.Node) {
		ref := r.Start.Node
		for !ref.parent.Contains(r.End.Node) {
			ref = ref.parent
		}
		collapse = Position{Node: ref.parent, Offset: ref.Index() + 1}
	}

	apply := func() { r.deleteWithin(ca) }
	if d := ca.owner; d != nil {
		d.mutate(apply)
	} else {
		apply()
	}
	return collapse
}

func (r Range) deleteWithin(n *Node) {
	var remove []*Node
	type trim struct {
		node       *Node
		start, end int
	}
	var trims []trim
	var partial []*Node

	for i, c := range n.children {
		switch r.cover(n, i) {
		case coverFull:
			remove = append(remove, c)
		case coverPartial:
			switch c.kind {
			case KindText:
				s, e := r.textSpan(c)
				trims = append(trims, trim{c, s, e})
			case KindElement:
				partial = append(partial, c)
			}
		}
	}
	for _, c := range partial {
		r.deleteWithin(c)
	}
	for _, t := range trims {
		if t.start < t.end {
			t.node.DeleteData(t.start, t.end-t.start)
		}
	}
	for _, c := range remove {
		n.RemoveChild(c)
	}
}

type coverage uint8

const (
	coverNone coverage = iota
	coverPartial
	coverFull
)

// cover classifies child i of n against the range.
func (r Range) cover(n *Node, i int) coverage {
	before := Position{Node: n, Offset: i}
	after := Position{Node: n, Offset: i + 1}
	if Compare(after, r.Start) <= 0 || Compare(before, r.End) >= 0 {
		return coverNone
	}
	if Compare(r.Start, before) <= 0 && Compare(after, r.End) <= 0 {
		return coverFull
	}
	return coverPartial
}

// textSpan returns the covered rune span of a partially covered text node.
func (r Range) textSpan(t *Node) (start, end int) {
	start, end = 0, len(t.data)
	if r.Start.Node == t {
		start = clamp(r.Start.Offset, 0, end)
	}
	if r.End.Node == t {
		end = clamp(r.End.Offset, start, end)
	}
	return start, end
}

func (r Range) ownerDoc() *Document {
	if r.Start.Node != nil {
		return r.Start.Node.owner
	}
	return nil
}

// Selection is the user's selection: the anchor is where it started and the
// focus is where it ends, in either document order.
type Selection struct {
	Anchor Position
	Focus  Position
}

// Collapsed reports whether anchor and focus coincide.
func (s Selection) Collapsed() bool { return s.Anchor == s.Focus }

// Range returns the selection as an ordered range.
func (s Selection) Range() Range { return NewRange(s.Anchor, s.Focus) }
