package lifecycle

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// DefaultBoundary ends a partial accept at clause punctuation in Latin and
// CJK scripts, closing braces, spaces and newlines.
const DefaultBoundary = "。、！,」｝.,!} \n"

// BoundaryEnd returns the byte offset just past the first grapheme of s that
// starts with a character in set, or len(s) when there is none.
func BoundaryEnd(s, set string) int {
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		r, _ := utf8.DecodeRuneInString(g.Str())
		if strings.ContainsRune(set, r) {
			_, end := g.Positions()
			return end
		}
	}
	return len(s)
}
