package controller

import "errors"

var (
	// ErrMissingSurface is returned when no surface is configured.
	ErrMissingSurface = errors.New("controller: surface is required")

	// ErrMissingLoop is returned when no loop is configured.
	ErrMissingLoop = errors.New("controller: loop is required")

	// ErrClosed is returned when a closed controller is used.
	ErrClosed = errors.New("controller: closed")
)
