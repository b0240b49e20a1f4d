package stream

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"
)

// Default event-stream framing.
const (
	DefaultFieldPrefix = "data:"
	DefaultSentinel    = "[DONE]"
)

// SSEOptions configures event-stream framing.
type SSEOptions struct {
	// FieldPrefix is stripped from payload lines, along with one following
	// space. A line without it is taken whole as the payload.
	FieldPrefix string
	// Sentinel ends the stream when it appears as a payload.
	Sentinel string
}

// DefaultSSEOptions returns the OpenAI-style framing.
func DefaultSSEOptions() SSEOptions {
	return SSEOptions{FieldPrefix: DefaultFieldPrefix, Sentinel: DefaultSentinel}
}

// Framer splits an event-stream body, arriving in arbitrary chunks, into
// JSON payloads. Partial lines are buffered until their newline arrives.
type Framer struct {
	opts SSEOptions
	emit func(gjson.Result) error
	buf  string
	done bool
}

// NewFramer creates a framer that passes each payload to emit. Empty option
// fields take the defaults.
func NewFramer(opts SSEOptions, emit func(gjson.Result) error) *Framer {
	if opts.FieldPrefix == "" {
		opts.FieldPrefix = DefaultFieldPrefix
	}
	if opts.Sentinel == "" {
		opts.Sentinel = DefaultSentinel
	}
	return &Framer{opts: opts, emit: emit}
}

// Done reports whether the sentinel has been seen.
func (f *Framer) Done() bool { return f.done }

// Write consumes a chunk of the body. It returns a *PayloadError for a
// payload that is not valid JSON, or the error returned by emit.
func (f *Framer) Write(chunk string) error {
	if f.done {
		return nil
	}
	f.buf += chunk
	for {
		i := strings.IndexByte(f.buf, '\n')
		if i < 0 {
			return nil
		}
		line := strings.TrimSuffix(f.buf[:i], "\r")
		f.buf = f.buf[i+1:]

		payload, ok := f.payload(line)
		if !ok {
			continue
		}
		if payload == f.opts.Sentinel {
			f.done = true
			f.buf = ""
			return nil
		}
		if !gjson.Valid(payload) {
			return &PayloadError{Line: line}
		}
		if err := f.emit(gjson.Parse(payload)); err != nil {
			return err
		}
	}
}

// skipFields are event-stream fields that never carry a payload.
var skipFields = []string{"event:", "id:", "retry:"}

// payload extracts the data of a line. The field prefix is optional: a line
// without it is a payload of its own. Blank lines, comments and the other
// named fields are skipped.
func (f *Framer) payload(line string) (string, bool) {
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}
	for _, field := range skipFields {
		if strings.HasPrefix(line, field) {
			return "", false
		}
	}
	p := line
	if strings.HasPrefix(line, f.opts.FieldPrefix) {
		p = strings.TrimPrefix(line, f.opts.FieldPrefix)
		p = strings.TrimPrefix(p, " ")
	}
	if p == "" {
		return "", false
	}
	return p, true
}

// FromSSE streams an event-stream response, passing each JSON payload to
// callback. The stream ends at the sentinel or the end of the body.
func FromSSE(ctx context.Context, do RequestFunc, opts SSEOptions, callback func(gjson.Result)) *Handle {
	h, ctx := newHandle(ctx)
	framer := NewFramer(opts, func(r gjson.Result) error {
		if !h.live() {
			return ErrAborted
		}
		callback(r)
		return nil
	})
	return h.start(ctx, func(ctx context.Context) error {
		return readResponse(ctx, h, do, func(chunk string) error {
			if err := framer.Write(chunk); err != nil {
				return err
			}
			if framer.Done() {
				return errStop
			}
			return nil
		})
	})
}
