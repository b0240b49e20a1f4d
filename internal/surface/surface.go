// Package surface defines the editing surface a completion controller
// attaches to and provides the pieces hosts share: listener registries,
// injected styles, line layout and the default editing actions a host runs
// when a listener does not prevent them.
package surface

import (
	"sort"
	"sync"

	"github.com/dshills/ghostwriter/internal/document"
)

// Listener handles a surface event. Listeners run on the loop goroutine.
type Listener func(ev *Event)

// Surface is an editable region backed by a document.
type Surface interface {
	// Document returns the document holding the container.
	Document() *document.Document
	// Container returns the editable root.
	Container() *document.Node
	// Listen registers fn for events of type t.
	Listen(t EventType, fn Listener) (remove func())
	// InjectStyle registers a presentation rule.
	InjectStyle(rule StyleRule) (remove func())
	// SetEditable toggles whether the surface accepts input.
	SetEditable(on bool)
	// ScrollIntoView brings p into view.
	ScrollIntoView(p document.Position)
}

// StyleRule describes how nodes carrying Tag are presented. Opacity scales
// the foreground toward the background; Placeholder is drawn when the
// container has no text.
type StyleRule struct {
	Tag         *document.Tag
	Opacity     float64
	Placeholder string
}

// Listeners is a registry of listeners keyed by event type. Dispatch calls
// them in registration order.
type Listeners struct {
	mu   sync.Mutex
	next int
	m    map[EventType]map[int]Listener
}

// Add registers fn for t.
func (l *Listeners) Add(t EventType, fn Listener) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[EventType]map[int]Listener)
	}
	if l.m[t] == nil {
		l.m[t] = make(map[int]Listener)
	}
	id := l.next
	l.next++
	l.m[t][id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.m[t], id)
	}
}

// Count returns the number of listeners for t.
func (l *Listeners) Count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m[t])
}

// Dispatch calls every listener for ev.Type.
func (l *Listeners) Dispatch(ev *Event) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.m[ev.Type]))
	for id := range l.m[ev.Type] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.m[ev.Type][id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Styles is a registry of injected style rules.
type Styles struct {
	mu    sync.Mutex
	next  int
	rules map[int]StyleRule
}

// Add registers rule.
func (s *Styles) Add(rule StyleRule) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rules == nil {
		s.rules = make(map[int]StyleRule)
	}
	id := s.next
	s.next++
	s.rules[id] = rule
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.rules, id)
	}
}

// Rules returns the registered rules in registration order.
func (s *Styles) Rules() []StyleRule {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.rules))
	for id := range s.rules {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]StyleRule, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.rules[id])
	}
	return out
}

// Match returns the rule for the first tag carried by n or one of its
// ancestors.
func (s *Styles) Match(n *document.Node) (StyleRule, bool) {
	for _, r := range s.Rules() {
		if r.Tag != nil && n.TaggedAncestor(r.Tag) != nil {
			return r, true
		}
	}
	return StyleRule{}, false
}

// Placeholder returns the placeholder of the last rule that sets one.
func (s *Styles) Placeholder() string {
	var p string
	for _, r := range s.Rules() {
		if r.Placeholder != "" {
			p = r.Placeholder
		}
	}
	return p
}

// Ghosted reports whether n lies under a node matched by any rule.
func (s *Styles) Ghosted(n *document.Node) bool {
	_, ok := s.Match(n)
	return ok
}
