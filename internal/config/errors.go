package config

import (
	"errors"
	"fmt"
)

var (
	// ErrSettingNotFound is returned for a path no layer defines.
	ErrSettingNotFound = errors.New("setting not found")

	// ErrTypeMismatch matches every *TypeError.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidPath is returned for an empty or malformed dot path.
	ErrInvalidPath = errors.New("invalid setting path")

	// ErrClosed is returned by Reload after Close.
	ErrClosed = errors.New("configuration closed")
)

// TypeError reports a setting whose value cannot be read as Expected.
type TypeError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: want %s, have %s", e.Path, e.Expected, e.Actual)
}

func (e *TypeError) Is(target error) bool { return target == ErrTypeMismatch }
