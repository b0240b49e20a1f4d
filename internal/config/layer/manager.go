package layer

import (
	"sort"
	"sync"
)

// Manager holds layers and caches their merge.
type Manager struct {
	mu     sync.Mutex
	layers []*Layer
	merged map[string]any
	dirty  bool
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{dirty: true}
}

// Put adds l, replacing any layer with the same name.
func (m *Manager) Put(l *Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.layers {
		if existing.Name == l.Name {
			m.layers[i] = l
			m.dirty = true
			return
		}
	}
	m.layers = append(m.layers, l)
	sort.SliceStable(m.layers, func(i, j int) bool {
		return m.layers[i].Source.Priority() < m.layers[j].Source.Priority()
	})
	m.dirty = true
}

// Remove drops the named layer. It reports whether the layer existed.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.layers {
		if l.Name == name {
			m.layers = append(m.layers[:i], m.layers[i+1:]...)
			m.dirty = true
			return true
		}
	}
	return false
}

// Layer returns the named layer, or nil.
func (m *Manager) Layer(name string) *Layer {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// Names returns the layer names from lowest to highest priority.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.layers))
	for i, l := range m.layers {
		names[i] = l.Name
	}
	return names
}

// Set writes value at path in the named layer, creating a session layer
// when the name is unknown.
func (m *Manager) Set(name, path string, value any) {
	m.mu.Lock()
	var target *Layer
	for _, l := range m.layers {
		if l.Name == name {
			target = l
			break
		}
	}
	m.mu.Unlock()
	if target == nil {
		target = New(name, SourceSession, nil)
		m.Put(target)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	SetByPath(target.Data, path, value)
	m.dirty = true
}

// Merge returns a copy of all layers merged in priority order.
func (m *Manager) Merge() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dirty || m.merged == nil {
		merged := make(map[string]any)
		for _, l := range m.layers {
			merged = DeepMerge(merged, l.Data)
		}
		m.merged = merged
		m.dirty = false
	}
	return Clone(m.merged)
}

// Which returns the name of the highest priority layer defining path.
func (m *Manager) Which(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.layers) - 1; i >= 0; i-- {
		if _, ok := GetByPath(m.layers[i].Data, path); ok {
			return m.layers[i].Name
		}
	}
	return ""
}
