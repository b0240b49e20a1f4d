// Package openai streams completions from the OpenAI chat completions API
// or any server that speaks it.
package openai

import (
	"context"
	"errors"

	"github.com/hashicorp/go-cleanhttp"
	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/provider"
	"github.com/dshills/ghostwriter/internal/stream"
)

// Name is the registry name of this provider.
const Name = "openai"

// DefaultModel is used when settings name no model.
const DefaultModel = "gpt-4o-mini"

// New builds a handler from settings. A base URL without an API key is
// allowed for local OpenAI-compatible servers.
func New(s provider.Settings, logger *logging.Logger) (lifecycle.Handler, error) {
	if s.APIKey == "" && s.BaseURL == "" {
		return nil, provider.ErrMissingAPIKey
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	logger = logging.OrNull(logger)

	opts := []option.RequestOption{
		option.WithHTTPClient(cleanhttp.DefaultPooledClient()),
	}
	if s.APIKey != "" {
		opts = append(opts, option.WithAPIKey(s.APIKey))
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	client := oa.NewClient(opts...)

	return func(ctx context.Context, p lifecycle.Params) (lifecycle.Stream, error) {
		prompt := provider.BuildPrompt(s.Instruction, p)
		params := oa.ChatCompletionNewParams{
			Model: oa.ChatModel(s.Model),
			Messages: []oa.ChatCompletionMessageParamUnion{
				oa.SystemMessage(prompt.System),
				oa.UserMessage(prompt.User),
			},
		}
		if s.MaxTokens > 0 {
			params.MaxCompletionTokens = oa.Int(int64(s.MaxTokens))
		}
		if s.Temperature > 0 {
			params.Temperature = oa.Float(s.Temperature)
		}

		callback := provider.FilterLeadingNewlines(p.Callback, p.PrecedingText != "")
		logger.Debug("requesting completion from %s", s.Model)

		return stream.FromSeq(ctx,
			func(ctx context.Context) (*chunks, error) {
				return &chunks{src: client.Chat.Completions.NewStreaming(ctx, params)}, nil
			},
			func(text string) {
				if text != "" {
					callback(text)
				}
			},
			func(c *chunks) { _ = c.src.Close() },
		), nil
	}, nil
}

// chunks yields the text deltas of a chat completion stream.
type chunks struct {
	src *ssestream.Stream[oa.ChatCompletionChunk]
}

func (c *chunks) Next() bool { return c.src.Next() }

func (c *chunks) Current() string {
	chunk := c.src.Current()
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}

func (c *chunks) Err() error {
	err := c.src.Err()
	_ = c.src.Close()
	var apiErr *oa.Error
	if errors.As(err, &apiErr) {
		return provider.APIError(apiErr.StatusCode, apiErr.RawJSON(), err)
	}
	return err
}
