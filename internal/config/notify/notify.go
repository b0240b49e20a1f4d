// Package notify delivers configuration change records to subscribers.
package notify

import (
	"sort"
	"strings"
	"sync"
)

// ChangeType represents the type of configuration change.
type ChangeType int

const (
	// ChangeSet indicates a value was added or updated.
	ChangeSet ChangeType = iota
	// ChangeDelete indicates a value was removed.
	ChangeDelete
	// ChangeReload ends a batch of changes caused by reloading a source.
	ChangeReload
)

// String returns the change type name.
func (c ChangeType) String() string {
	switch c {
	case ChangeSet:
		return "set"
	case ChangeDelete:
		return "delete"
	case ChangeReload:
		return "reload"
	default:
		return "unknown"
	}
}

// Change is one configuration change.
type Change struct {
	// Path is the dot-separated setting path. Empty for reload events.
	Path     string
	Type     ChangeType
	OldValue any
	NewValue any
	// Source names the layer or file the change came from.
	Source string
}

// Observer is called for each change.
type Observer func(change Change)

type subscriber struct {
	path     string
	observer Observer
}

// Subscription is an active observer registration.
type Subscription struct {
	id       uint64
	notifier *Notifier
}

// Unsubscribe removes the observer. Calling it again does nothing.
func (s *Subscription) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier fans changes out to observers synchronously, in subscription
// order.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[uint64]subscriber
	nextID uint64
	closed bool
}

// New creates a notifier.
func New() *Notifier {
	return &Notifier{subs: make(map[uint64]subscriber)}
}

// Subscribe registers an observer for every change.
func (n *Notifier) Subscribe(observer Observer) *Subscription {
	return n.SubscribePath("", observer)
}

// SubscribePath registers an observer for path and everything below it.
// Reload events reach every observer.
func (n *Notifier) SubscribePath(path string, observer Observer) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = subscriber{path: path, observer: observer}
	return &Subscription{id: id, notifier: n}
}

// Notify delivers change to matching observers.
func (n *Notifier) Notify(change Change) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	ids := make([]uint64, 0, len(n.subs))
	for id, sub := range n.subs {
		if matches(sub.path, change) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer, len(ids))
	for i, id := range ids {
		observers[i] = n.subs[id].observer
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(change)
	}
}

// NotifySet reports an added or updated value.
func (n *Notifier) NotifySet(path string, oldValue, newValue any, source string) {
	n.Notify(Change{Path: path, Type: ChangeSet, OldValue: oldValue, NewValue: newValue, Source: source})
}

// NotifyDelete reports a removed value.
func (n *Notifier) NotifyDelete(path string, oldValue any, source string) {
	n.Notify(Change{Path: path, Type: ChangeDelete, OldValue: oldValue, Source: source})
}

// NotifyReload reports that source was reloaded.
func (n *Notifier) NotifyReload(source string) {
	n.Notify(Change{Type: ChangeReload, Source: source})
}

// Close stops delivery. It is safe to call more than once.
func (n *Notifier) Close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
}

func (n *Notifier) unsubscribe(id uint64) {
	n.mu.Lock()
	delete(n.subs, id)
	n.mu.Unlock()
}

// matches reports whether a subscriber for path receives change. "ai"
// matches "ai" and "ai.model" but not "aim".
func matches(path string, change Change) bool {
	if path == "" || change.Path == "" {
		return true
	}
	return change.Path == path || strings.HasPrefix(change.Path, path+".")
}
