package app

import (
	"errors"
	"fmt"

	"github.com/dshills/ghostwriter/internal/lifecycle"
	"github.com/dshills/ghostwriter/internal/stream"
)

// Application errors.
var (
	// ErrQuit signals that the application should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrAlreadyRunning indicates Run was called twice.
	ErrAlreadyRunning = errors.New("application already running")
)

// InitError represents an error during application initialization.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// describe turns a completion failure into a short status line.
func describe(err error) string {
	var te *stream.TransportError
	if errors.As(err, &te) {
		return fmt.Sprintf("completion failed (%d): %s", te.StatusCode, te.Message())
	}
	if errors.Is(err, lifecycle.ErrNoHandler) {
		return "no completion provider configured"
	}
	var he *lifecycle.HandlerError
	if errors.As(err, &he) {
		return "completion failed: " + he.Err.Error()
	}
	return "completion failed: " + err.Error()
}
