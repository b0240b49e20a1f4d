package config

import (
	"strings"
	"time"

	"github.com/dshills/ghostwriter/internal/lifecycle"
)

// Section accessors return snapshot structs. Mutating a returned struct
// does not modify the configuration; use Config.Set.

// DefaultBoundary ends a partial accept after any of these characters.
const DefaultBoundary = lifecycle.DefaultBoundary

// CompletionConfig configures the completion controller.
type CompletionConfig struct {
	// Delay is the quiet period before an automatic completion. Zero means
	// completions only start on request.
	Delay time.Duration

	// TextOnly forces paste and drop to insert plain text.
	TextOnly bool

	// Boundary is the set of characters ending an accepted chunk.
	Boundary string

	// Placeholder is shown while the document is empty.
	Placeholder string

	// GhostClass names the ghost marker. Empty picks a random name.
	GhostClass string

	// TrailingBreak keeps a trailing line break after inserted text.
	TrailingBreak bool
}

// SSEConfig configures event-stream framing for the HTTP provider.
type SSEConfig struct {
	FieldPrefix string
	Sentinel    string
}

// AIConfig configures the completion provider.
type AIConfig struct {
	// Provider is one of "openai", "anthropic", "gemini", "http" or "lua".
	Provider string

	// Model is the model name. Empty uses the provider's default.
	Model string

	MaxTokens   int
	Temperature float64

	// Instruction is sent ahead of the cursor context.
	Instruction string

	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string

	// BaseURL overrides the API location of openai or anthropic.
	BaseURL string

	// Endpoint, Stream and TextPath configure the http provider. Stream is
	// "sse" or "text"; TextPath locates the chunk text in each payload.
	Endpoint string
	Stream   string
	TextPath string

	// Script is the Lua script for the lua provider.
	Script string
}

// APIKey returns the key for the configured provider.
func (a AIConfig) APIKey() string {
	switch strings.ToLower(a.Provider) {
	case "openai":
		return a.OpenAIAPIKey
	case "anthropic":
		return a.AnthropicAPIKey
	case "gemini":
		return a.GeminiAPIKey
	case "http":
		// An HTTP endpoint may sit behind an OpenAI-style gateway.
		return a.OpenAIAPIKey
	default:
		return ""
	}
}

// UIConfig configures the terminal.
type UIConfig struct {
	// Foreground and Background are hex colors used to fade ghost text.
	Foreground string
	Background string
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string

	// Format is "text" or "json".
	Format string

	// File is the log file. Empty disables logging.
	File string
}

// Completion returns the completion settings.
func (c *Config) Completion() CompletionConfig {
	return CompletionConfig{
		Delay:         c.getDurationOr("completion.delay", 500*time.Millisecond),
		TextOnly:      c.getBoolOr("completion.textOnly", true),
		Boundary:      c.getStringOr("completion.boundary", DefaultBoundary),
		Placeholder:   c.getStringOr("completion.placeholder", ""),
		GhostClass:    c.getStringOr("completion.ghostClass", ""),
		TrailingBreak: c.getBoolOr("completion.trailingBreak", false),
	}
}

// SSE returns the event-stream framing settings.
func (c *Config) SSE() SSEConfig {
	return SSEConfig{
		FieldPrefix: c.getStringOr("sse.fieldPrefix", "data:"),
		Sentinel:    c.getStringOr("sse.sentinel", "[DONE]"),
	}
}

// AI returns the provider settings.
func (c *Config) AI() AIConfig {
	return AIConfig{
		Provider:        c.getStringOr("ai.provider", "lua"),
		Model:           c.getStringOr("ai.model", ""),
		MaxTokens:       c.getIntOr("ai.maxTokens", 200),
		Temperature:     c.getFloatOr("ai.temperature", 0.5),
		Instruction:     c.getStringOr("ai.instruction", ""),
		OpenAIAPIKey:    c.getStringOr("ai.openaiApiKey", ""),
		AnthropicAPIKey: c.getStringOr("ai.anthropicApiKey", ""),
		GeminiAPIKey:    c.getStringOr("ai.geminiApiKey", ""),
		BaseURL:         c.getStringOr("ai.baseURL", ""),
		Endpoint:        c.getStringOr("ai.endpoint", ""),
		Stream:          c.getStringOr("ai.stream", "sse"),
		TextPath:        c.getStringOr("ai.textPath", ""),
		Script:          c.getStringOr("ai.script", ""),
	}
}

// UI returns the terminal settings.
func (c *Config) UI() UIConfig {
	return UIConfig{
		Foreground: c.getStringOr("ui.foreground", "#d0d0d0"),
		Background: c.getStringOr("ui.background", "#1c1c1c"),
	}
}

// Logging returns the logging settings.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{
		Level:  c.getStringOr("logging.level", "info"),
		Format: c.getStringOr("logging.format", "text"),
		File:   c.getStringOr("logging.file", ""),
	}
}

// defaultConfig returns the built-in layer.
func defaultConfig() map[string]any {
	return map[string]any{
		"completion": map[string]any{
			"delay":         int64(500),
			"textOnly":      true,
			"boundary":      DefaultBoundary,
			"placeholder":   "Start typing; Ctrl+Space asks for a completion.",
			"trailingBreak": false,
		},
		"sse": map[string]any{
			"fieldPrefix": "data:",
			"sentinel":    "[DONE]",
		},
		"ai": map[string]any{
			"provider":    "lua",
			"maxTokens":   int64(200),
			"temperature": 0.5,
			"stream":      "sse",
		},
		"ui": map[string]any{
			"foreground": "#d0d0d0",
			"background": "#1c1c1c",
		},
		"logging": map[string]any{
			"level":  "info",
			"format": "text",
		},
	}
}

func (c *Config) getStringOr(path string, defaultValue string) string {
	v, err := c.GetString(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getIntOr(path string, defaultValue int) int {
	v, err := c.GetInt(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getBoolOr(path string, defaultValue bool) bool {
	v, err := c.GetBool(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getFloatOr(path string, defaultValue float64) float64 {
	v, err := c.GetFloat(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}

func (c *Config) getDurationOr(path string, defaultValue time.Duration) time.Duration {
	v, err := c.GetDuration(path)
	if err != nil {
		if err != ErrSettingNotFound {
			c.recordConfigError(path, err)
		}
		return defaultValue
	}
	return v
}
