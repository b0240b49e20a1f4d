// Package gemini streams completions from the Gemini API.
package gemini

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/provider"
	"github.com/dshills/ghostwriter/internal/stream"
)

// Name is the registry name of this provider.
const Name = "gemini"

// DefaultModel is used when settings name no model.
const DefaultModel = "gemini-1.5-flash"

// New builds a handler from settings. A client is opened per completion
// and closed when its stream ends or is aborted.
func New(s provider.Settings, logger *logging.Logger) (lifecycle.Handler, error) {
	if s.APIKey == "" {
		return nil, provider.ErrMissingAPIKey
	}
	if s.Model == "" {
		s.Model = DefaultModel
	}
	logger = logging.OrNull(logger)

	return func(ctx context.Context, p lifecycle.Params) (lifecycle.Stream, error) {
		prompt := provider.BuildPrompt(s.Instruction, p)
		callback := provider.FilterLeadingNewlines(p.Callback, p.PrecedingText != "")
		logger.Debug("requesting completion from %s", s.Model)

		return stream.FromSeq(ctx,
			func(ctx context.Context) (*responses, error) {
				client, err := genai.NewClient(ctx, option.WithAPIKey(s.APIKey))
				if err != nil {
					return nil, err
				}
				model := client.GenerativeModel(s.Model)
				model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(prompt.System)}}
				if s.MaxTokens > 0 {
					model.SetMaxOutputTokens(int32(s.MaxTokens))
				}
				if s.Temperature > 0 {
					model.SetTemperature(float32(s.Temperature))
				}
				return &responses{
					client: client,
					it:     model.GenerateContentStream(ctx, genai.Text(prompt.User)),
				}, nil
			},
			func(text string) {
				if text != "" {
					callback(text)
				}
			},
			func(r *responses) { r.close() },
		), nil
	}, nil
}

// responses adapts the generated content iterator to a stream sequence.
type responses struct {
	client *genai.Client
	it     *genai.GenerateContentResponseIterator
	cur    string
	err    error
	once   sync.Once
}

func (r *responses) Next() bool {
	resp, err := r.it.Next()
	if err != nil {
		if !errors.Is(err, iterator.Done) {
			r.err = err
		}
		r.close()
		return false
	}
	r.cur = text(resp)
	return true
}

func (r *responses) Current() string { return r.cur }

func (r *responses) Err() error {
	var apiErr *googleapi.Error
	if errors.As(r.err, &apiErr) {
		return provider.APIError(apiErr.Code, apiErr.Body, r.err)
	}
	return r.err
}

func (r *responses) close() {
	r.once.Do(func() { _ = r.client.Close() })
}

// text concatenates the text parts of the first candidate.
func text(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
