// Package httpsse streams completions from a plain HTTP endpoint. The
// endpoint receives the cursor context as JSON and answers either with an
// event stream of JSON payloads or with a plain text body.
package httpsse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/provider"
	"github.com/dshills/ghostwriter/internal/stream"
)

// Name is the registry name of this provider.
const Name = "http"

// Stream modes.
const (
	ModeSSE  = "sse"
	ModeText = "text"
)

// DefaultTextPath locates the chunk text in an OpenAI-style payload.
const DefaultTextPath = "choices.0.delta.content"

// ErrMissingEndpoint is returned when no endpoint is configured.
var ErrMissingEndpoint = errors.New("endpoint is required")

// Transport posts completion requests to an endpoint.
type Transport struct {
	client   *http.Client
	endpoint string
	mode     string
	textPath string
	sse      stream.SSEOptions
	settings provider.Settings
	logger   *logging.Logger
}

// NewTransport creates a transport from settings.
func NewTransport(s provider.Settings, logger *logging.Logger) (*Transport, error) {
	if s.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	mode := strings.ToLower(s.StreamMode)
	switch mode {
	case "":
		mode = ModeSSE
	case ModeSSE, ModeText:
	default:
		return nil, fmt.Errorf("unknown stream mode %q", s.StreamMode)
	}
	textPath := s.TextPath
	if textPath == "" {
		textPath = DefaultTextPath
	}
	return &Transport{
		client:   cleanhttp.DefaultPooledClient(),
		endpoint: s.Endpoint,
		mode:     mode,
		textPath: textPath,
		sse:      s.SSE,
		settings: s,
		logger:   logging.OrNull(logger),
	}, nil
}

// New builds a handler from settings.
func New(s provider.Settings, logger *logging.Logger) (lifecycle.Handler, error) {
	t, err := NewTransport(s, logger)
	if err != nil {
		return nil, err
	}
	return t.Handle, nil
}

// Handle starts a completion.
func (t *Transport) Handle(ctx context.Context, p lifecycle.Params) (lifecycle.Stream, error) {
	body, err := t.body(p)
	if err != nil {
		return nil, err
	}
	do := func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if t.mode == ModeSSE {
			req.Header.Set("Accept", "text/event-stream")
		}
		if t.settings.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+t.settings.APIKey)
		}
		return t.client.Do(req)
	}

	callback := provider.FilterLeadingNewlines(p.Callback, p.PrecedingText != "")
	t.logger.Debug("posting completion request to %s (%s)", t.endpoint, t.mode)

	if t.mode == ModeText {
		return stream.FromResponse(ctx, do, callback), nil
	}
	return stream.FromSSE(ctx, do, t.sse, func(payload gjson.Result) {
		if text := payload.Get(t.textPath); text.Exists() && text.String() != "" {
			callback(text.String())
		}
	}), nil
}

// body builds the request payload.
func (t *Transport) body(p lifecycle.Params) ([]byte, error) {
	prompt := provider.BuildPrompt(t.settings.Instruction, p)
	body := []byte(`{}`)
	fields := []struct {
		path  string
		value any
		skip  bool
	}{
		{"precedingText", p.PrecedingText, false},
		{"followingText", p.FollowingText, false},
		{"instruction", t.settings.Instruction, t.settings.Instruction == ""},
		{"model", t.settings.Model, t.settings.Model == ""},
		{"max_tokens", t.settings.MaxTokens, t.settings.MaxTokens <= 0},
		{"temperature", t.settings.Temperature, t.settings.Temperature <= 0},
		{"stream", t.mode == ModeSSE, false},
		{"messages.0.role", "system", false},
		{"messages.0.content", prompt.System, false},
		{"messages.1.role", "user", false},
		{"messages.1.content", prompt.User, false},
	}
	var err error
	for _, f := range fields {
		if f.skip {
			continue
		}
		if body, err = sjson.SetBytes(body, f.path, f.value); err != nil {
			return nil, err
		}
	}
	return body, nil
}
