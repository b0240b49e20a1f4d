package surface

import (
	"testing"

	"github.com/dshills/ghostwriter/internal/document"
	"github.com/dshills/ghostwriter/internal/extract"
)

func value(m *Memory) string {
	return extract.Value(m.Container(), extract.Options{})
}

func TestTypeAndNewline(t *testing.T) {
	m := NewMemory()
	m.Type("ab")
	m.Press(KeyEnter, ModNone)
	m.Type("c")

	if got := value(m); got != "ab\nc" {
		t.Errorf("value = %q, want %q", got, "ab\nc")
	}
	lay := Lay(m.Container(), nil)
	if len(lay.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lay.Lines))
	}
	sel, _ := m.Document().Selection()
	if line, col := lay.Locate(sel.Focus); line != 1 || col != 1 {
		t.Errorf("Locate() = %d,%d, want 1,1", line, col)
	}
}

func TestBackspaceJoinsLines(t *testing.T) {
	m := NewMemory()
	m.Type("ab")
	m.Press(KeyEnter, ModNone)
	m.Press(KeyBackspace, ModNone)
	m.Type("c")

	if got := value(m); got != "abc" {
		t.Errorf("value = %q, want abc", got)
	}
}

func TestDeleteForwardAndMove(t *testing.T) {
	m := NewMemory()
	m.Type("abc")
	m.Press(KeyLeft, ModNone)
	m.Press(KeyLeft, ModNone)
	m.Press(KeyDelete, ModNone)

	if got := value(m); got != "ac" {
		t.Errorf("value = %q, want ac", got)
	}
	m.Press(KeyEnd, ModNone)
	m.Type("!")
	if got := value(m); got != "ac!" {
		t.Errorf("value = %q, want ac!", got)
	}
	m.Press(KeyHome, ModNone)
	m.Type(">")
	if got := value(m); got != ">ac!" {
		t.Errorf("value = %q, want >ac!", got)
	}
}

func TestPreventDefaultSkipsAction(t *testing.T) {
	m := NewMemory()
	inputs := 0
	m.Listen(EventKey, func(ev *Event) {
		if ev.Rune == 'x' {
			ev.PreventDefault()
		}
	})
	m.Listen(EventInput, func(*Event) { inputs++ })

	m.Type("axb")

	if got := value(m); got != "ab" {
		t.Errorf("value = %q, want ab", got)
	}
	if inputs != 2 {
		t.Errorf("input events = %d, want 2", inputs)
	}
}

func TestSetEditable(t *testing.T) {
	m := NewMemory()
	m.SetEditable(false)
	m.Type("a")
	if got := value(m); got != "" {
		t.Errorf("value = %q, want empty", got)
	}
}

func TestPasteInsertsText(t *testing.T) {
	m := NewMemory()
	m.Paste("one\r\ntwo", false)
	if got := value(m); got != "one\ntwo" {
		t.Errorf("value = %q, want %q", got, "one\ntwo")
	}
}

func TestCompose(t *testing.T) {
	m := NewMemory()
	var order []EventType
	for _, et := range []EventType{EventCompositionStart, EventInput, EventCompositionEnd} {
		m.Listen(et, func(ev *Event) { order = append(order, ev.Type) })
	}
	m.Compose("日本")

	want := []EventType{EventCompositionStart, EventInput, EventCompositionEnd}
	if len(order) != len(want) {
		t.Fatalf("events = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("event[%d] = %v, want %v", i, order[i], want[i])
		}
	}
	if got := value(m); got != "日本" {
		t.Errorf("value = %q", got)
	}
}

func TestListenerRemove(t *testing.T) {
	m := NewMemory()
	calls := 0
	remove := m.Listen(EventKey, func(*Event) { calls++ })
	m.Type("a")
	remove()
	m.Type("b")
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if m.Listeners().Count(EventKey) != 0 {
		t.Errorf("Count() = %d, want 0", m.Listeners().Count(EventKey))
	}
}

func TestLayoutGhostCells(t *testing.T) {
	doc := document.New()
	tag := document.NamedTag("ghost")
	a := doc.CreateText("ab")
	g := doc.CreateElement("span")
	g.AddTag(tag)
	g.AppendChild(doc.CreateText("xy"))
	c := doc.CreateText("cd")
	doc.Root().AppendChild(a)
	doc.Root().AppendChild(g)
	doc.Root().AppendChild(c)

	ghost := func(n *document.Node) bool { return n.TaggedAncestor(tag) != nil }
	lay := Lay(doc.Root(), ghost)

	if lay.Text() != "abxycd" {
		t.Errorf("Text() = %q", lay.Text())
	}
	if n := len(lay.Stops()); n != 5 {
		t.Errorf("stops = %d, want 5", n)
	}
	if _, col := lay.Locate(document.Position{Node: a, Offset: 2}); col != 2 {
		t.Errorf("caret before ghost drawn at col %d, want 2", col)
	}
	// Between children resolves to the text before the ghost.
	if _, col := lay.Locate(document.Before(g)); col != 2 {
		t.Errorf("caret at element offset drawn at col %d, want 2", col)
	}
}

func TestLayoutBlocks(t *testing.T) {
	doc := document.New()
	for _, s := range []string{"one", "two"} {
		p := doc.CreateElement("p")
		p.AppendChild(doc.CreateText(s))
		doc.Root().AppendChild(p)
	}
	lay := Lay(doc.Root(), nil)
	if lay.Text() != "one\ntwo" {
		t.Errorf("Text() = %q, want %q", lay.Text(), "one\ntwo")
	}
}

func TestStylesMatch(t *testing.T) {
	var s Styles
	tag := document.NamedTag("ghost")
	remove := s.Add(StyleRule{Tag: tag, Opacity: 0.5, Placeholder: "Type here"})

	n := document.NewElement("span")
	n.AddTag(tag)
	child := document.NewText("x")
	n.AppendChild(child)

	if r, ok := s.Match(child); !ok || r.Opacity != 0.5 {
		t.Errorf("Match() = %v, %v", r, ok)
	}
	if s.Placeholder() != "Type here" {
		t.Errorf("Placeholder() = %q", s.Placeholder())
	}
	remove()
	if s.Ghosted(child) {
		t.Error("Ghosted() after remove = true")
	}
}
