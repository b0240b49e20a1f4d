package loader

import (
	"os"
	"strconv"
	"strings"

	"github.com/dshills/ghostwriter/internal/config/layer"
)

// DefaultPrefix is the prefix of scanned environment variables.
const DefaultPrefix = "GHOSTWRITER_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string
	mapping map[string]string
	lookup  func() []string
}

// NewEnvLoader creates a loader that scans variables with prefix and
// applies the default explicit mappings.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(),
		lookup:  os.Environ,
	}
}

// defaultEnvMapping maps well-known variables to config paths.
func defaultEnvMapping() map[string]string {
	return map[string]string{
		"GHOSTWRITER_LOG_LEVEL": "logging.level",
		"GHOSTWRITER_LOG_FILE":  "logging.file",
		// Sensitive settings
		"OPENAI_API_KEY":    "ai.openaiApiKey",
		"ANTHROPIC_API_KEY": "ai.anthropicApiKey",
		"GEMINI_API_KEY":    "ai.geminiApiKey",
	}
}

// AddMapping maps envVar to a config path.
func (l *EnvLoader) AddMapping(envVar, path string) {
	l.mapping[envVar] = path
}

// Load returns the configured values. Explicit mappings win over the
// prefix scan.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)
	env := make(map[string]string)
	for _, kv := range l.lookup() {
		if name, value, ok := strings.Cut(kv, "="); ok {
			env[name] = value
		}
	}

	for name, value := range env {
		if _, mapped := l.mapping[name]; mapped || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if path := l.envToPath(name); path != "" {
			layer.SetByPath(config, path, parseValue(value))
		}
	}
	for name, path := range l.mapping {
		if value, ok := env[name]; ok {
			layer.SetByPath(config, path, parseValue(value))
		}
	}
	return config, nil
}

// envToPath converts GHOSTWRITER_AI_MAX_TOKENS to ai.maxTokens: the first
// word names the section and the rest form a camelCase key.
func (l *EnvLoader) envToPath(env string) string {
	parts := strings.Split(strings.TrimPrefix(env, l.prefix), "_")
	if len(parts) < 2 || parts[0] == "" {
		return ""
	}
	key := strings.ToLower(parts[1])
	for _, part := range parts[2:] {
		if part != "" {
			key += strings.ToUpper(part[:1]) + strings.ToLower(part[1:])
		}
	}
	return strings.ToLower(parts[0]) + "." + key
}

// parseValue converts booleans and numbers, leaving everything else as a
// string. Durations such as "300ms" stay strings for the typed getters.
func parseValue(s string) any {
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}
