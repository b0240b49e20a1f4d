// Package layer merges configuration sources by priority. Higher priority
// layers override lower ones; nested tables merge key by key.
package layer

// Source indicates where a configuration layer came from.
type Source uint8

const (
	// SourceBuiltin is the built-in defaults.
	SourceBuiltin Source = iota
	// SourceFile is the user's TOML file.
	SourceFile
	// SourceEnv is environment variables.
	SourceEnv
	// SourceArgs is command-line flags.
	SourceArgs
	// SourceSession is in-memory overrides made while running.
	SourceSession
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceBuiltin:
		return "builtin"
	case SourceFile:
		return "file"
	case SourceEnv:
		return "environment"
	case SourceArgs:
		return "arguments"
	case SourceSession:
		return "session"
	default:
		return "unknown"
	}
}

// Priority returns the merge priority of the source.
func (s Source) Priority() int {
	switch s {
	case SourceFile:
		return 100
	case SourceEnv:
		return 500
	case SourceArgs:
		return 600
	case SourceSession:
		return 1000
	default:
		return 0
	}
}

// Layer is a single configuration source.
type Layer struct {
	Name   string
	Source Source
	// Path is the file the layer was read from, if any.
	Path string
	Data map[string]any
}

// New creates a layer holding data.
func New(name string, source Source, data map[string]any) *Layer {
	if data == nil {
		data = make(map[string]any)
	}
	return &Layer{Name: name, Source: source, Data: data}
}

// Clone returns a deep copy of the layer.
func (l *Layer) Clone() *Layer {
	return &Layer{Name: l.Name, Source: l.Source, Path: l.Path, Data: Clone(l.Data)}
}
