package app

import (
	"github.com/dshills/ghostwriter/internal/config"
	"github.com/dshills/ghostwriter/internal/controller"
	"github.com/dshills/ghostwriter/internal/provider"
	"github.com/dshills/ghostwriter/internal/provider/anthropic"
	"github.com/dshills/ghostwriter/internal/provider/gemini"
	"github.com/dshills/ghostwriter/internal/provider/httpsse"
	"github.com/dshills/ghostwriter/internal/provider/luascript"
	"github.com/dshills/ghostwriter/internal/provider/openai"
	"github.com/dshills/ghostwriter/internal/stream"
)

// NewRegistry returns a registry holding every built-in provider.
func NewRegistry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register(openai.Name, openai.New)
	r.Register(anthropic.Name, anthropic.New)
	r.Register(gemini.Name, gemini.New)
	r.Register(httpsse.Name, httpsse.New)
	r.Register(luascript.Name, luascript.New)
	return r
}

// providerSettings maps the ai and sse configuration sections to provider
// settings.
func providerSettings(ai config.AIConfig, sse config.SSEConfig) provider.Settings {
	return provider.Settings{
		Provider:    ai.Provider,
		Model:       ai.Model,
		MaxTokens:   ai.MaxTokens,
		Temperature: ai.Temperature,
		Instruction: ai.Instruction,
		APIKey:      ai.APIKey(),
		BaseURL:     ai.BaseURL,
		Endpoint:    ai.Endpoint,
		StreamMode:  ai.Stream,
		TextPath:    ai.TextPath,
		SSE: stream.SSEOptions{
			FieldPrefix: sse.FieldPrefix,
			Sentinel:    sse.Sentinel,
		},
		Script: ai.Script,
	}
}

// controllerUpdates returns the options that apply reloadable completion
// settings to a mounted controller.
func controllerUpdates(c config.CompletionConfig) []controller.Option {
	return []controller.Option{
		controller.WithDelay(c.Delay),
		controller.WithTextOnly(c.TextOnly),
		controller.WithBoundary(c.Boundary),
	}
}
