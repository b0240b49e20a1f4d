package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
)

func TestFilterLeadingNewlines(t *testing.T) {
	tests := []struct {
		name      string
		preceding bool
		chunks    []string
		want      string
	}{
		{"drops leading newlines", false, []string{"\n", "\n\nHello", "\nworld"}, "Hello\nworld"},
		{"disabled with preceding text", true, []string{"\n", "Hi"}, "\nHi"},
		{"only first chunk trimmed", false, []string{"a", "\nb"}, "a\nb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got strings.Builder
			f := FilterLeadingNewlines(func(s string) { got.WriteString(s) }, tt.preceding)
			for _, c := range tt.chunks {
				f(c)
			}
			if got.String() != tt.want {
				t.Errorf("filtered = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("", lifecycle.Params{PrecedingText: "Dear Bob,", FollowingText: "Regards"})
	if !strings.HasSuffix(p.User, "#output\nDear Bob,") {
		t.Errorf("User does not end with the preceding text: %q", p.User)
	}
	if !strings.Contains(p.User, "#suffix\nRegards\n") {
		t.Errorf("User missing suffix: %q", p.User)
	}
	if !strings.Contains(p.User, DefaultInstruction) {
		t.Errorf("User missing default instruction: %q", p.User)
	}

	p = BuildPrompt("Write a poem", lifecycle.Params{})
	if strings.Contains(p.User, "#suffix") {
		t.Errorf("User has suffix without following text: %q", p.User)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	var built Settings
	r.Register("Fake", func(s Settings, _ *logging.Logger) (lifecycle.Handler, error) {
		built = s
		return func(context.Context, lifecycle.Params) (lifecycle.Stream, error) { return nil, nil }, nil
	})

	if _, err := r.Build(Settings{Provider: "fake", Model: "m"}, nil); err != nil {
		t.Fatalf("Build() = %v", err)
	}
	if built.Model != "m" {
		t.Errorf("factory got Model %q, want m", built.Model)
	}
	if _, err := r.Build(Settings{Provider: "nope"}, nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("Build() = %v, want ErrUnknownProvider", err)
	}
	if names := r.Names(); len(names) != 1 || names[0] != "fake" {
		t.Errorf("Names() = %v", names)
	}
}
