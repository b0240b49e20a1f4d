package gemini

import (
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/dshills/ghostwriter/internal/provider"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		resp *genai.GenerateContentResponse
		want string
	}{
		{"nil", nil, ""},
		{"no candidates", &genai.GenerateContentResponse{}, ""},
		{"parts", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("a"), genai.Blob{}, genai.Text("b")}},
		}}}, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := text(tt.resp); got != tt.want {
				t.Errorf("text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(provider.Settings{}, nil); !errors.Is(err, provider.ErrMissingAPIKey) {
		t.Errorf("New() = %v, want ErrMissingAPIKey", err)
	}
}
