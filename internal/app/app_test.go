package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/ghostwriter/internal/config"
	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/stream"
)

type testApp struct {
	*Application
	screen tcell.SimulationScreen
	dir    string
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
}

// newTestApp starts an application whose lua provider emits "world".
func newTestApp(t *testing.T, extra string, opts ...func(*Options)) *testApp {
	t.Helper()
	dir := t.TempDir()
	script := filepath.Join(dir, "complete.lua")
	writeFile(t, script, `emit("world")`)
	cfg := filepath.Join(dir, "config.toml")
	writeFile(t, cfg, fmt.Sprintf("[ai]\nprovider = \"lua\"\nscript = %q\n\n[completion]\ndelay = 0\n%s", script, extra))

	screen := tcell.NewSimulationScreen("UTF-8")
	o := Options{ConfigPath: cfg, Screen: screen}
	for _, fn := range opts {
		fn(&o)
	}
	a, err := New(o)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if err := a.initScreen(); err != nil {
		t.Fatalf("initScreen() = %v", err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return &testApp{Application: a, screen: screen, dir: dir}
}

func (a *testApp) key(k tcell.Key, r rune, mod tcell.ModMask) {
	a.term.HandleEvent(tcell.NewEventKey(k, r, mod))
}

func (a *testApp) typeString(s string) {
	for _, r := range s {
		a.key(tcell.KeyRune, r, tcell.ModNone)
	}
}

// drainUntil runs loop tasks until cond holds or a second passes.
func (a *testApp) drainUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		a.loop.Drain()
		time.Sleep(5 * time.Millisecond)
	}
}

func (a *testApp) statusLine() string {
	w, h := a.screen.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := a.screen.GetContent(x, h-1) //nolint:staticcheck // GetContent is the correct API
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func TestNewRegistry(t *testing.T) {
	got := strings.Join(NewRegistry().Names(), ",")
	if want := "anthropic,gemini,http,lua,openai"; got != want {
		t.Errorf("Names() = %q, want %q", got, want)
	}
}

func TestProviderSettings(t *testing.T) {
	ai := config.AIConfig{
		Provider:        "anthropic",
		Model:           "m",
		MaxTokens:       42,
		Temperature:     0.2,
		OpenAIAPIKey:    "oa",
		AnthropicAPIKey: "an",
		Stream:          "text",
	}
	s := providerSettings(ai, config.SSEConfig{FieldPrefix: "chunk:", Sentinel: "END"})
	if s.APIKey != "an" {
		t.Errorf("APIKey = %q, want an", s.APIKey)
	}
	if s.Model != "m" || s.MaxTokens != 42 || s.Temperature != 0.2 || s.StreamMode != "text" {
		t.Errorf("settings = %+v", s)
	}
	if s.SSE.FieldPrefix != "chunk:" || s.SSE.Sentinel != "END" {
		t.Errorf("SSE = %+v", s.SSE)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transport", &stream.TransportError{StatusCode: 429, Body: []byte("slow down")}, "completion failed (429): slow down"},
		{"handler", &lifecycle.HandlerError{Err: errors.New("no key")}, "completion failed: no key"},
		{"no handler", &lifecycle.HandlerError{Err: lifecycle.ErrNoHandler}, "no completion provider configured"},
		{"other", errors.New("boom"), "completion failed: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(tt.err); got != tt.want {
				t.Errorf("describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInitError(t *testing.T) {
	cause := errors.New("bad")
	err := &InitError{Component: "config", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("InitError does not unwrap")
	}
	if got := err.Error(); got != "failed to initialize config: bad" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNewMalformedConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, cfg, "[ai\nprovider=")
	_, err := New(Options{ConfigPath: cfg, Screen: tcell.NewSimulationScreen("UTF-8")})
	var ie *InitError
	if !errors.As(err, &ie) || ie.Component != "config" {
		t.Errorf("New() = %v, want config InitError", err)
	}
}

func TestApplication_CompleteAndAccept(t *testing.T) {
	out := ""
	a := newTestApp(t, "", func(o *Options) {
		out = filepath.Join(filepath.Dir(o.ConfigPath), "out.txt")
		o.OutputFile = out
	})

	a.typeString("hello ")
	a.key(tcell.KeyCtrlSpace, 0, tcell.ModCtrl)
	a.drainUntil(t, func() bool { return a.ctrl.Engine().GhostText() == "world" })

	if got := a.Value(); got != "hello " {
		t.Errorf("Value() with ghost text = %q, want %q", got, "hello ")
	}

	a.key(tcell.KeyTab, 0, tcell.ModNone)
	if got := a.Value(); got != "hello world" {
		t.Errorf("Value() after accept = %q, want %q", got, "hello world")
	}

	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown() = %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("output = %q, want %q", data, "hello world")
	}
}

func TestApplication_InputFile(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.txt")
	writeFile(t, in, "draft")
	a := newTestApp(t, "", func(o *Options) { o.InputFile = in })
	if got := a.Value(); got != "draft" {
		t.Errorf("Value() = %q, want draft", got)
	}
}

func TestApplication_ProviderOverride(t *testing.T) {
	a := newTestApp(t, "", func(o *Options) { o.Provider = "nope" })

	a.typeString("hi")
	a.key(tcell.KeyCtrlSpace, 0, tcell.ModCtrl)
	a.drainUntil(t, func() bool { return strings.HasPrefix(a.statusLine(), "no completion provider") })
}

func TestApplication_ReloadAppliesSettings(t *testing.T) {
	a := newTestApp(t, "boundary = \"x\"\n")
	if got := a.ctrl.Engine().Boundary(); got != "x" {
		t.Fatalf("Boundary() = %q, want x", got)
	}

	cfg := a.config.Path()
	writeFile(t, cfg, "[ai]\nprovider = \"nope\"\n\n[completion]\nboundary = \"-\"\n")
	if err := a.config.Reload(); err != nil {
		t.Fatalf("Reload() = %v", err)
	}
	a.loop.Drain()

	if got := a.ctrl.Engine().Boundary(); got != "-" {
		t.Errorf("Boundary() after reload = %q, want -", got)
	}
	if got := a.statusLine(); !strings.HasPrefix(got, "provider:") {
		t.Errorf("status = %q, want provider error", got)
	}

	// The previous lua handler is still in place.
	a.typeString("a")
	a.key(tcell.KeyCtrlSpace, 0, tcell.ModCtrl)
	a.drainUntil(t, func() bool { return a.ctrl.Engine().GhostText() == "world" })
}

func TestApplication_RunStopsOnQuit(t *testing.T) {
	a := newTestApp(t, "")
	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	a.Quit()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Quit")
	}
}

func TestApplication_RunTwice(t *testing.T) {
	a := newTestApp(t, "")
	a.running.Store(true)
	if err := a.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("Run() = %v, want ErrAlreadyRunning", err)
	}
	a.running.Store(false)
}
