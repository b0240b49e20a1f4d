package extract

import (
	"strings"
	"testing"

	"github.com/dshills/ghostwriter/internal/document"
)

func TestTextBlocksAndBreaks(t *testing.T) {
	tests := []struct {
		name  string
		build func(d *document.Document)
		want  string
	}{
		{
			name: "plain text",
			build: func(d *document.Document) {
				d.Root().AppendChild(d.CreateText("hello"))
			},
			want: "hello",
		},
		{
			name: "line breaks",
			build: func(d *document.Document) {
				d.Root().SetText("line1\nline2")
			},
			want: "line1\nline2",
		},
		{
			name: "nested blocks collapse to one newline",
			build: func(d *document.Document) {
				outer := d.CreateElement("div")
				p1 := d.CreateElement("p")
				p1.AppendChild(d.CreateText("a"))
				p2 := d.CreateElement("p")
				p2.AppendChild(d.CreateText("b"))
				outer.AppendChild(p1)
				outer.AppendChild(p2)
				d.Root().AppendChild(outer)
			},
			want: "a\nb",
		},
		{
			name: "inline elements add nothing",
			build: func(d *document.Document) {
				span := d.CreateElement("span")
				span.AppendChild(d.CreateText("bold"))
				d.Root().AppendChild(d.CreateText("a "))
				d.Root().AppendChild(span)
				d.Root().AppendChild(d.CreateText(" b"))
			},
			want: "a bold b",
		},
		{
			name: "trailing break kept",
			build: func(d *document.Document) {
				d.Root().AppendChild(d.CreateText("abc"))
				d.Root().AppendChild(d.CreateBreak())
			},
			want: "abc\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := document.New()
			tt.build(d)
			if got := Extract(d.Root(), Options{}); got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValueTrimsOneNewline(t *testing.T) {
	d := document.New()
	d.Root().SetText("abc\n\n")
	if got := Value(d.Root(), Options{}); got != "abc\n" {
		t.Errorf("Value() = %q, want %q", got, "abc\n")
	}
}

func ghostDoc() (*document.Document, *document.Tag, *document.Node) {
	d := document.New()
	tag := document.NewTag("ghost")
	ghost := d.CreateElement("span")
	ghost.AddTag(tag)
	ghost.AppendChild(d.CreateText("PENDING"))
	d.Root().AppendChild(d.CreateText("Hello "))
	d.Root().AppendChild(ghost)
	d.Root().AppendChild(d.CreateText("world"))
	return d, tag, ghost
}

func TestPruneExcludesGhost(t *testing.T) {
	d, tag, ghost := ghostDoc()
	opts := Options{Prune: PruneTag(tag)}

	if got := Extract(d.Root(), opts); got != "Hello world" {
		t.Errorf("Extract() = %q, want %q", got, "Hello world")
	}
	if ghost.Parent() == nil {
		t.Error("pruning detached the live ghost node")
	}
	if got := Extract(d.Root(), Options{}); !strings.Contains(got, "PENDING") {
		t.Errorf("unpruned Extract() = %q, want ghost text", got)
	}
}

func TestCursorContext(t *testing.T) {
	d, tag, ghost := ghostDoc()
	opts := Options{Prune: PruneTag(tag)}
	d.Collapse(document.Before(ghost))

	before, ok := BeforeCursor(d, d.Root(), opts)
	if !ok || before != "Hello " {
		t.Errorf("BeforeCursor() = %q, %v, want %q", before, ok, "Hello ")
	}
	after, ok := AfterCursor(d, d.Root(), opts)
	if !ok || after != "world" {
		t.Errorf("AfterCursor() = %q, %v, want %q", after, ok, "world")
	}
}

func TestCursorContextWithoutSelection(t *testing.T) {
	d, _, _ := ghostDoc()
	if got, ok := BeforeCursor(d, d.Root(), Options{}); ok || got != "" {
		t.Errorf("BeforeCursor() = %q, %v, want empty and false", got, ok)
	}
	if got, ok := AfterCursor(d, d.Root(), Options{}); ok || got != "" {
		t.Errorf("AfterCursor() = %q, %v, want empty and false", got, ok)
	}
	if got, ok := BeforeSelectionStart(d, d.Root(), Options{}); ok || got != "" {
		t.Errorf("BeforeSelectionStart() = %q, %v, want empty and false", got, ok)
	}
}

func TestBeforeSelectionStart(t *testing.T) {
	d := document.New()
	text := d.CreateText("abcdef")
	d.Root().AppendChild(text)
	d.SetSelection(document.Position{Node: text, Offset: 4}, document.Position{Node: text, Offset: 2})

	start, _ := BeforeSelectionStart(d, d.Root(), Options{})
	end, _ := BeforeCursor(d, d.Root(), Options{})
	if start != "ab" {
		t.Errorf("BeforeSelectionStart() = %q, want ab", start)
	}
	if end != "abcd" {
		t.Errorf("BeforeCursor() = %q, want abcd", end)
	}
}

type upperRenderer struct {
	attached bool
}

func (r *upperRenderer) RenderedText(n *document.Node) string {
	r.attached = n.Parent() != nil && n.Parent() == n.Owner().Staging()
	return strings.ToUpper(Text(n))
}

func TestRenderedModeUsesStaging(t *testing.T) {
	d, tag, _ := ghostDoc()
	r := &upperRenderer{}
	opts := Options{Prune: PruneTag(tag), Mode: ModeRendered, Renderer: r}

	if got := Extract(d.Root(), opts); got != "HELLO WORLD" {
		t.Errorf("Extract() = %q, want HELLO WORLD", got)
	}
	if !r.attached {
		t.Error("copy was not attached to the staging container while rendered")
	}
	if d.Staging().ChildCount() != 0 {
		t.Errorf("staging ChildCount() = %d, want 0", d.Staging().ChildCount())
	}
}
