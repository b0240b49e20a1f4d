// Package document provides the editable tree model edited by the completion
// engine: element, text and line-break nodes, boundary positions, ranges and a
// single live selection that follows tree mutations.
package document

import "strings"

// Kind identifies the type of a node.
type Kind uint8

const (
	// KindElement is a container node with children.
	KindElement Kind = iota
	// KindText is a leaf holding character data.
	KindText
	// KindBreak is an explicit line-break leaf.
	KindBreak
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindElement:
		return "element"
	case KindText:
		return "text"
	case KindBreak:
		return "break"
	default:
		return "unknown"
	}
}

// blockNames are element names that render on their own line.
var blockNames = map[string]bool{
	"div": true, "p": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"pre": true, "blockquote": true, "section": true, "article": true,
	"header": true, "footer": true, "table": true, "tr": true,
	"#fragment": true,
}

// Node is a single node of an editable tree.
// Text offsets are measured in runes.
type Node struct {
	kind     Kind
	name     string
	block    bool
	data     []rune
	tags     []*Tag
	parent   *Node
	children []*Node
	owner    *Document
}

// NewElement creates a detached element. Well-known block names such as
// "div" and "p" are block-level; everything else is inline.
func NewElement(name string) *Node {
	name = strings.ToLower(name)
	return &Node{kind: KindElement, name: name, block: blockNames[name]}
}

// NewText creates a detached text node.
func NewText(s string) *Node {
	return &Node{kind: KindText, name: "#text", data: []rune(s)}
}

// NewBreak creates a detached line-break node.
func NewBreak() *Node {
	return &Node{kind: KindBreak, name: "br"}
}

// NewFragment creates a detached block container used for range copies.
func NewFragment() *Node {
	return NewElement("#fragment")
}

// Kind returns the node kind.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the element name.
func (n *Node) Name() string { return n.name }

// IsBlock reports whether the node is a block-level element.
func (n *Node) IsBlock() bool { return n.kind == KindElement && n.block }

// SetBlock overrides the block-level flag of an element.
func (n *Node) SetBlock(block bool) {
	if n.kind == KindElement {
		n.block = block
	}
}

// IsText reports whether the node is a text leaf.
func (n *Node) IsText() bool { return n.kind == KindText }

// IsBreak reports whether the node is a line-break leaf.
func (n *Node) IsBreak() bool { return n.kind == KindBreak }

// Owner returns the document the node belongs to, or nil.
func (n *Node) Owner() *Document { return n.owner }

// Parent returns the parent node, or nil when detached.
func (n *Node) Parent() *Node { return n.parent }

// Root returns the topmost ancestor of n (n itself when detached).
func (n *Node) Root() *Node {
	for n.parent != nil {
		n = n.parent
	}
	return n
}

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// Child returns the child at index i, or nil when out of range.
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// FirstChild returns the first child or nil.
func (n *Node) FirstChild() *Node { return n.Child(0) }

// LastChild returns the last child or nil.
func (n *Node) LastChild() *Node { return n.Child(len(n.children) - 1) }

// Index returns the position of n within its parent, or -1 when detached.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	return -1
}

// NextSibling returns the following sibling or nil.
func (n *Node) NextSibling() *Node {
	if n.parent == nil {
		return nil
	}
	return n.parent.Child(n.Index() + 1)
}

// PrevSibling returns the preceding sibling or nil.
func (n *Node) PrevSibling() *Node {
	if n.parent == nil {
		return nil
	}
	return n.parent.Child(n.Index() - 1)
}

// Len returns the boundary length of the node: the rune count for text,
// the child count for elements and zero for breaks.
func (n *Node) Len() int {
	switch n.kind {
	case KindText:
		return len(n.data)
	case KindElement:
		return len(n.children)
	default:
		return 0
	}
}

// Data returns the character data of a text node.
func (n *Node) Data() string { return string(n.data) }

// Contains reports whether other is n or one of its descendants.
func (n *Node) Contains(other *Node) bool {
	for ; other != nil; other = other.parent {
		if other == n {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in document order. Returning false from
// fn skips the children of the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children() {
		c.Walk(fn)
	}
}

// AddTag marks the node with tag.
func (n *Node) AddTag(tag *Tag) {
	if tag == nil || n.HasTag(tag) {
		return
	}
	n.tags = append(n.tags, tag)
}

// RemoveTag removes tag from the node.
func (n *Node) RemoveTag(tag *Tag) {
	for i, t := range n.tags {
		if t == tag {
			n.tags = append(n.tags[:i], n.tags[i+1:]...)
			return
		}
	}
}

// HasTag reports whether the node carries tag.
func (n *Node) HasTag(tag *Tag) bool {
	for _, t := range n.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Tags returns the tags on the node.
func (n *Node) Tags() []*Tag {
	out := make([]*Tag, len(n.tags))
	copy(out, n.tags)
	return out
}

// TaggedAncestor returns the nearest inclusive ancestor carrying tag.
func (n *Node) TaggedAncestor(tag *Tag) *Node {
	for ; n != nil; n = n.parent {
		if n.HasTag(tag) {
			return n
		}
	}
	return nil
}

// QueryTag returns every descendant of n (excluding n) carrying tag,
// in document order.
func (n *Node) QueryTag(tag *Tag) []*Node {
	var out []*Node
	for _, c := range n.children {
		c.Walk(func(d *Node) bool {
			if d.HasTag(tag) {
				out = append(out, d)
			}
			return true
		})
	}
	return out
}

// Clone copies the node. A deep clone copies the whole subtree. Clones are
// detached but keep the owner document and tags.
func (n *Node) Clone(deep bool) *Node {
	c := &Node{
		kind:  n.kind,
		name:  n.name,
		block: n.block,
		owner: n.owner,
	}
	if n.data != nil {
		c.data = append([]rune(nil), n.data...)
	}
	if len(n.tags) > 0 {
		c.tags = append([]*Tag(nil), n.tags...)
	}
	if deep {
		for _, child := range n.children {
			cc := child.Clone(true)
			cc.parent = c
			c.children = append(c.children, cc)
		}
	}
	return c
}

// AppendChild appends child to n. See InsertBefore.
func (n *Node) AppendChild(child *Node) *Node {
	return n.InsertBefore(child, nil)
}

// InsertBefore inserts child before ref, or at the end when ref is nil or
// not a child of n. A child attached elsewhere is moved. Inserting into a
// leaf is a no-op.
func (n *Node) InsertBefore(child, ref *Node) *Node {
	if child == nil || n.kind != KindElement || child.Contains(n) {
		return child
	}
	if child.parent != nil {
		child.Remove()
	}
	idx := len(n.children)
	if ref != nil && ref.parent == n {
		idx = ref.Index()
	}
	n.children = append(n.children, nil)
	copy(n.children[idx+1:], n.children[idx:])
	n.children[idx] = child
	child.parent = n
	child.adopt(n.owner)

	if d := n.owner; d != nil {
		d.mutate(func() {
			d.adjust(func(p *Position) {
				if p.Node == n && p.Offset > idx {
					p.Offset++
				}
			})
		})
	}
	return child
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) {
	if child == nil || child.parent != n {
		return
	}
	idx := child.Index()
	if d := n.owner; d != nil {
		d.mutate(func() {
			d.adjust(func(p *Position) {
				if child.Contains(p.Node) {
					*p = Position{Node: n, Offset: idx}
				} else if p.Node == n && p.Offset > idx {
					p.Offset--
				}
			})
		})
	}
	n.children = append(n.children[:idx], n.children[idx+1:]...)
	child.parent = nil
}

// Remove detaches n from its parent.
func (n *Node) Remove() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// RemoveChildren detaches every child of n.
func (n *Node) RemoveChildren() {
	for len(n.children) > 0 {
		n.RemoveChild(n.children[len(n.children)-1])
	}
}

// SetData replaces the character data of a text node.
func (n *Node) SetData(s string) {
	if n.kind != KindText {
		return
	}
	n.ReplaceData(0, len(n.data), s)
}

// InsertData inserts s at offset in a text node.
func (n *Node) InsertData(offset int, s string) {
	n.ReplaceData(offset, 0, s)
}

// DeleteData removes count runes starting at offset from a text node.
func (n *Node) DeleteData(offset, count int) {
	n.ReplaceData(offset, count, "")
}

// ReplaceData replaces count runes starting at offset with s. Positions in
// the replaced span collapse to offset; later positions shift.
func (n *Node) ReplaceData(offset, count int, s string) {
	if n.kind != KindText {
		return
	}
	offset = clamp(offset, 0, len(n.data))
	count = clamp(count, 0, len(n.data)-offset)
	ins := []rune(s)

	out := make([]rune, 0, len(n.data)-count+len(ins))
	out = append(out, n.data[:offset]...)
	out = append(out, ins...)
	out = append(out, n.data[offset+count:]...)
	n.data = out

	if d := n.owner; d != nil {
		d.mutate(func() {
			d.adjust(func(p *Position) {
				if p.Node != n {
					return
				}
				switch {
				case p.Offset > offset+count:
					p.Offset += len(ins) - count
				case p.Offset > offset:
					p.Offset = offset
				}
			})
		})
	}
}

// SplitText splits a text node at offset. The remainder moves to a new text
// node inserted right after n, which is returned. Positions past offset move
// into the new node.
func (n *Node) SplitText(offset int) *Node {
	if n.kind != KindText {
		return nil
	}
	offset = clamp(offset, 0, len(n.data))
	rest := &Node{kind: KindText, name: "#text", owner: n.owner}
	rest.data = append([]rune(nil), n.data[offset:]...)
	if len(n.tags) > 0 {
		rest.tags = append([]*Tag(nil), n.tags...)
	}

	parent := n.parent
	if d := n.owner; d != nil && parent != nil {
		d.mutate(func() {
			idx := n.Index()
			parent.InsertBefore(rest, n.NextSibling())
			d.adjust(func(p *Position) {
				switch {
				case p.Node == n && p.Offset > offset:
					*p = Position{Node: rest, Offset: p.Offset - offset}
				case p.Node == parent && p.Offset == idx+1:
					p.Offset++
				}
			})
			n.data = n.data[:offset]
		})
		return rest
	}
	if parent != nil {
		parent.InsertBefore(rest, n.NextSibling())
	}
	n.data = n.data[:offset]
	return rest
}

// Normalize merges adjacent text nodes and removes empty ones throughout the
// subtree. Positions inside merged nodes are remapped.
func (n *Node) Normalize() {
	d := n.owner
	run := func() {
		for i := 0; i < len(n.children); {
			c := n.children[i]
			if c.kind != KindText {
				c.Normalize()
				i++
				continue
			}
			if len(c.data) == 0 {
				n.RemoveChild(c)
				continue
			}
			for next := c.NextSibling(); next != nil && next.kind == KindText; next = c.NextSibling() {
				base := len(c.data)
				nextIdx := next.Index()
				c.data = append(c.data, next.data...)
				if d != nil {
					d.adjust(func(p *Position) {
						switch {
						case p.Node == next:
							*p = Position{Node: c, Offset: base + p.Offset}
						case p.Node == n && p.Offset == nextIdx:
							*p = Position{Node: c, Offset: base}
						}
					})
				}
				n.RemoveChild(next)
			}
			i++
		}
	}
	if d != nil {
		d.mutate(run)
		return
	}
	run()
}

// SetText replaces the children of an element with text and line-break
// nodes for s: each "\n" becomes a break, and runs between them become text.
func (n *Node) SetText(s string) {
	if n.kind == KindText {
		n.SetData(s)
		return
	}
	if n.kind != KindElement {
		return
	}
	apply := func() {
		n.RemoveChildren()
		for _, c := range TextNodes(s) {
			n.AppendChild(c)
		}
	}
	if d := n.owner; d != nil {
		d.mutate(apply)
		return
	}
	apply()
}

// TextNodes converts s into a sequence of detached text and break nodes.
func TextNodes(s string) []*Node {
	var out []*Node
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			break
		}
		if i > 0 {
			out = append(out, NewText(s[:i]))
		}
		out = append(out, NewBreak())
		s = s[i+1:]
	}
	if s != "" {
		out = append(out, NewText(s))
	}
	return out
}

// String renders a compact debugging form of the subtree.
func (n *Node) String() string {
	var b strings.Builder
	n.debug(&b)
	return b.String()
}

func (n *Node) debug(b *strings.Builder) {
	switch n.kind {
	case KindText:
		b.WriteString("\"")
		b.WriteString(string(n.data))
		b.WriteString("\"")
	case KindBreak:
		b.WriteString("<br>")
	default:
		b.WriteString("<")
		b.WriteString(n.name)
		for _, t := range n.tags {
			b.WriteString(" .")
			b.WriteString(t.Name())
		}
		b.WriteString(">")
		for _, c := range n.children {
			c.debug(b)
		}
		b.WriteString("</")
		b.WriteString(n.name)
		b.WriteString(">")
	}
}

func (n *Node) adopt(d *Document) {
	if n.owner == d {
		return
	}
	n.owner = d
	for _, c := range n.children {
		c.adopt(d)
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
