// Package anthropic streams completions from the Anthropic messages API.
package anthropic

import (
	"context"
	"errors"

	an "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/hashicorp/go-cleanhttp"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/provider"
	"github.com/dshills/ghostwriter/internal/stream"
)

// Name is the registry name of this provider.
const Name = "anthropic"

// Defaults applied when settings leave them unset.
const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 1024
)

// New builds a handler from settings.
func New(s provider.Settings, logger *logging.Logger) (lifecycle.Handler, error) {
	if s.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = DefaultMaxTokens
	}
	logger = logging.OrNull(logger)

	opts := []option.RequestOption{
		option.WithAPIKey(s.APIKey),
		option.WithHTTPClient(cleanhttp.DefaultPooledClient()),
	}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	client := an.NewClient(opts...)

	return func(ctx context.Context, p lifecycle.Params) (lifecycle.Stream, error) {
		prompt := provider.BuildPrompt(s.Instruction, p)
		params := an.MessageNewParams{
			Model:     an.Model(s.Model),
			MaxTokens: int64(s.MaxTokens),
			System:    []an.TextBlockParam{{Text: prompt.System}},
			Messages: []an.MessageParam{
				an.NewUserMessage(an.NewTextBlock(prompt.User)),
			},
		}
		if s.Temperature > 0 {
			params.Temperature = an.Float(s.Temperature)
		}

		callback := provider.FilterLeadingNewlines(p.Callback, p.PrecedingText != "")
		logger.Debug("requesting completion from %s", s.Model)

		return stream.FromSeq(ctx,
			func(ctx context.Context) (*deltas, error) {
				return &deltas{src: client.Messages.NewStreaming(ctx, params)}, nil
			},
			func(text string) {
				if text != "" {
					callback(text)
				}
			},
			func(d *deltas) { _ = d.src.Close() },
		), nil
	}, nil
}

// deltas yields the text of content block deltas. Other events yield "".
type deltas struct {
	src *ssestream.Stream[an.MessageStreamEventUnion]
}

func (d *deltas) Next() bool { return d.src.Next() }

func (d *deltas) Current() string {
	ev, ok := d.src.Current().AsAny().(an.ContentBlockDeltaEvent)
	if !ok {
		return ""
	}
	if text, ok := ev.Delta.AsAny().(an.TextDelta); ok {
		return text.Text
	}
	return ""
}

func (d *deltas) Err() error {
	err := d.src.Err()
	_ = d.src.Close()
	var apiErr *an.Error
	if errors.As(err, &apiErr) {
		return provider.APIError(apiErr.StatusCode, apiErr.RawJSON(), err)
	}
	return err
}
