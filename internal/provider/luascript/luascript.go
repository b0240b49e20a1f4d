// Package luascript produces completions from a Lua script, which makes an
// offline source for demos and tests.
//
// The script runs once per completion in a fresh state with the base, table,
// string and math libraries. It sees the globals preceding, following and
// instruction, and streams text with two functions:
//
//	emit(text)  appends text to the ghost; returns false once aborted
//	sleep(ms)   pauses; returns false once aborted
package luascript

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/logging"
	"github.com/dshills/ghostwriter/internal/provider"
	"github.com/dshills/ghostwriter/internal/stream"
)

// Name is the registry name of this provider.
const Name = "lua"

// DefaultScript streams a fixed sentence one word at a time.
const DefaultScript = `
local words = {"the", "quick", "brown", "fox", "jumps", "over", "the", "lazy", "dog."}
local sep = ""
if preceding ~= "" and not preceding:match("%s$") then
  sep = " "
end
for _, w in ipairs(words) do
  if not emit(sep .. w) then return end
  sep = " "
  if not sleep(40) then return end
end
`

// Script is a compiled completion script.
type Script struct {
	name   string
	proto  *lua.FunctionProto
	logger *logging.Logger
}

// Compile parses src.
func Compile(name, src string) (*Script, error) {
	chunk, err := parse.Parse(strings.NewReader(src), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Script{name: name, proto: proto, logger: logging.NullLogger()}, nil
}

// New builds a handler from settings. Without a script path the default
// script is used.
func New(s provider.Settings, logger *logging.Logger) (lifecycle.Handler, error) {
	name, src := "default", DefaultScript
	if s.Script != "" {
		data, err := os.ReadFile(s.Script)
		if err != nil {
			return nil, err
		}
		name, src = s.Script, string(data)
	}
	script, err := Compile(name, src)
	if err != nil {
		return nil, err
	}
	script.logger = logging.OrNull(logger)
	instruction := s.Instruction
	return func(ctx context.Context, p lifecycle.Params) (lifecycle.Stream, error) {
		return script.Start(ctx, instruction, p), nil
	}, nil
}

// Start runs the script on its own goroutine.
func (s *Script) Start(ctx context.Context, instruction string, p lifecycle.Params) *stream.Handle {
	callback := provider.FilterLeadingNewlines(p.Callback, p.PrecedingText != "")
	return stream.FromFunc(ctx, func(ctx context.Context, emit func(string) bool) error {
		return s.run(ctx, instruction, p, emit)
	}, callback)
}

func (s *Script) run(ctx context.Context, instruction string, p lifecycle.Params, emit func(string) bool) error {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetContext(ctx)

	L.SetGlobal("preceding", lua.LString(p.PrecedingText))
	L.SetGlobal("following", lua.LString(p.FollowingText))
	L.SetGlobal("instruction", lua.LString(instruction))
	L.SetGlobal("emit", L.NewFunction(func(L *lua.LState) int {
		ok := ctx.Err() == nil && emit(L.CheckString(1))
		L.Push(lua.LBool(ok))
		return 1
	}))
	L.SetGlobal("sleep", L.NewFunction(func(L *lua.LState) int {
		d := time.Duration(L.CheckInt(1)) * time.Millisecond
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			L.Push(lua.LTrue)
		case <-ctx.Done():
			L.Push(lua.LFalse)
		}
		return 1
	}))

	L.Push(L.NewFunctionFromProto(s.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.WithError(err).Warn("script %s failed", s.name)
		return fmt.Errorf("script %s: %w", s.name, err)
	}
	return nil
}
