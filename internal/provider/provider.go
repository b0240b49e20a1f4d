// Package provider builds completion handlers backed by language model
// services, plain HTTP endpoints and local scripts.
//
// Each source lives in its own subpackage and exposes a Factory. A Registry
// maps configured provider names to factories so the application can build
// and rebuild its handler when configuration changes.
package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/stream"
)

// DefaultInstruction asks the model to continue the document.
const DefaultInstruction = "Continue the text naturally. Reply with the continuation only."

// Settings configures a completion source.
type Settings struct {
	Provider    string
	Model       string
	MaxTokens   int
	Temperature float64
	Instruction string

	APIKey  string
	BaseURL string

	// Endpoint, StreamMode and TextPath configure the HTTP source.
	Endpoint   string
	StreamMode string
	TextPath   string
	SSE        stream.SSEOptions

	// Script is the path of a Lua completion script.
	Script string
}

// Factory builds a handler from settings.
type Factory func(s Settings, logger *logging.Logger) (lifecycle.Handler, error)

// ErrUnknownProvider is returned when no factory is registered for a name.
var ErrUnknownProvider = errors.New("unknown completion provider")

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = f
}

// Names returns the registered names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build creates the handler for s.Provider.
func (r *Registry) Build(s Settings, logger *logging.Logger) (lifecycle.Handler, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(s.Provider)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrUnknownProvider, s.Provider, strings.Join(r.Names(), ", "))
	}
	logger = logging.OrNull(logger).WithComponent("provider").WithField("provider", s.Provider)
	return f(s, logger)
}

// Prompt is the text sent to a model.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt lays out the cursor context for a model: the instruction,
// the text following the cursor when there is any, and finally the text
// preceding the cursor so that the reply continues it.
func BuildPrompt(instruction string, p lifecycle.Params) Prompt {
	if instruction == "" {
		instruction = DefaultInstruction
	}
	var b strings.Builder
	b.WriteString("#instruction\n")
	b.WriteString(instruction)
	b.WriteString("\n")
	if p.FollowingText != "" {
		b.WriteString("#suffix\n")
		b.WriteString(p.FollowingText)
		b.WriteString("\n")
	}
	b.WriteString("#output\n")
	b.WriteString(p.PrecedingText)
	return Prompt{
		System: "You complete text at the cursor. Text after #output is what precedes the cursor; " +
			"text after #suffix follows it. Reply with only the text to insert.",
		User: b.String(),
	}
}

// FilterLeadingNewlines wraps callback so that leading newlines are dropped
// until the first non-empty chunk. The filter is disabled when the cursor
// has preceding text, where a leading newline is meaningful.
func FilterLeadingNewlines(callback func(string), hasPreceding bool) func(string) {
	if hasPreceding {
		return callback
	}
	first := true
	return func(chunk string) {
		if first {
			chunk = strings.TrimLeft(chunk, "\n")
			if chunk == "" {
				return
			}
			first = false
		}
		callback(chunk)
	}
}
