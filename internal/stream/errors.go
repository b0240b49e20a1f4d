package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrAborted marks a source that stopped because the stream was aborted.
var ErrAborted = errors.New("stream aborted")

// maxErrorBody caps how much of a failed response body is read.
const maxErrorBody = 1 << 20

// IsAbort reports whether err is a cancellation rather than a failure.
func IsAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled)
}

// TransportError reports a non-success response from a completion source.
type TransportError struct {
	StatusCode int
	Status     string
	Header     http.Header
	// Body is the raw response body, truncated to 1 MiB.
	Body []byte
	// Data is the parsed body when it was JSON; otherwise it does not exist.
	Data gjson.Result
	Err  error
}

// NewTransportError builds a TransportError from resp, reading its body.
func NewTransportError(resp *http.Response) *TransportError {
	e := &TransportError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
	}
	if resp.Body == nil {
		return e
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		e.Err = err
	}
	e.Body = body
	if gjson.ValidBytes(body) {
		e.Data = gjson.ParseBytes(body)
	}
	return e
}

// Message returns the most useful description of the failure: an error
// message from a structured body, otherwise the body text, otherwise the
// status.
func (e *TransportError) Message() string {
	for _, path := range []string{"error.message", "error", "message"} {
		if v := e.Data.Get(path); v.Exists() && v.Type == gjson.String {
			return v.String()
		}
	}
	if text := strings.TrimSpace(string(e.Body)); text != "" && len(text) < 512 {
		return text
	}
	if e.Status != "" {
		return e.Status
	}
	return http.StatusText(e.StatusCode)
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("completion source returned %d: %s", e.StatusCode, e.Message())
}

func (e *TransportError) Unwrap() error { return e.Err }

// PayloadError reports an event-stream payload that is not valid JSON.
type PayloadError struct {
	Line string
}

func (e *PayloadError) Error() string {
	line := e.Line
	if r := []rune(line); len(r) > 80 {
		line = string(r[:80]) + "..."
	}
	return fmt.Sprintf("malformed event payload: %q", line)
}
