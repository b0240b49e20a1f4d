package stream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// collector gathers chunks from a stream goroutine.
type collector struct {
	mu     sync.Mutex
	chunks []string
}

func (c *collector) add(s string) {
	c.mu.Lock()
	c.chunks = append(c.chunks, s)
	c.mu.Unlock()
}

func (c *collector) joined() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.Join(c.chunks, "")
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

func get(url string) RequestFunc {
	return func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		return http.DefaultClient.Do(req)
	}
}

func wait(t *testing.T, h *Handle) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := h.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("stream did not settle")
	}
	return err
}

func TestFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, part := range []string{"Hello", ", ", "world"} {
			fmt.Fprint(w, part)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	var c collector
	h := FromResponse(context.Background(), get(srv.URL), c.add)
	if err := wait(t, h); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := c.joined(); got != "Hello, world" {
		t.Errorf("chunks = %q, want %q", got, "Hello, world")
	}
	if !h.Finished() {
		t.Error("Finished() = false, want true")
	}
}

func TestFromResponseDecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=iso-8859-1")
		w.Write([]byte{'c', 'a', 'f', 0xe9})
	}))
	defer srv.Close()

	var c collector
	h := FromResponse(context.Background(), get(srv.URL), c.add)
	if err := wait(t, h); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := c.joined(); got != "café" {
		t.Errorf("chunks = %q, want café", got)
	}
}

func TestFromResponseTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	}))
	defer srv.Close()

	var c collector
	h := FromResponse(context.Background(), get(srv.URL), c.add)
	err := wait(t, h)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Wait() = %v, want *TransportError", err)
	}
	if te.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", te.StatusCode)
	}
	if te.Message() != "slow down" {
		t.Errorf("Message() = %q, want slow down", te.Message())
	}
	if c.count() != 0 {
		t.Errorf("callbacks = %d, want 0", c.count())
	}
	if h.Finished() {
		t.Error("Finished() = true for a failed stream")
	}
}

func TestTransportErrorPlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := wait(t, FromResponse(context.Background(), get(srv.URL), func(string) {}))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("Wait() = %v, want *TransportError", err)
	}
	if te.Data.Exists() {
		t.Error("Data.Exists() = true for a text body")
	}
	if te.Message() != "backend down" {
		t.Errorf("Message() = %q, want backend down", te.Message())
	}
}

func TestAbortStopsCallbacks(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "first")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		fmt.Fprint(w, "second")
	}))
	defer srv.Close()
	defer close(release)

	var c collector
	h := FromResponse(context.Background(), get(srv.URL), c.add)

	deadline := time.Now().Add(2 * time.Second)
	for c.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Abort()
	h.Abort()

	if err := wait(t, h); err != nil {
		t.Errorf("Wait() after abort = %v, want nil", err)
	}
	if got := c.joined(); got != "first" {
		t.Errorf("chunks = %q, want first", got)
	}
	if h.Finished() {
		t.Error("Finished() = true after abort")
	}
	if !h.Aborted() {
		t.Error("Aborted() = false")
	}
}

func TestFramerSplitsAcrossChunks(t *testing.T) {
	var got []int64
	f := NewFramer(DefaultSSEOptions(), func(r gjson.Result) error {
		got = append(got, r.Get("a").Int())
		return nil
	})

	for _, chunk := range []string{"data: {\"a\":1}\n", "data: {\"a\"", ":2}\n\n", "data: [DONE]\n", "data: {\"a\":3}\n"} {
		if err := f.Write(chunk); err != nil {
			t.Fatalf("Write(%q) = %v", chunk, err)
		}
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("payloads = %v, want [1 2]", got)
	}
	if !f.Done() {
		t.Error("Done() = false after sentinel")
	}
}

func TestFramerSkipsOtherFields(t *testing.T) {
	n := 0
	f := NewFramer(SSEOptions{}, func(gjson.Result) error { n++; return nil })
	body := ": keepalive\r\nevent: delta\r\nid: 7\r\ndata:{\"x\":true}\r\n\r\n"
	if err := f.Write(body); err != nil {
		t.Fatalf("Write() = %v", err)
	}
	if n != 1 {
		t.Errorf("payloads = %d, want 1", n)
	}
}

func TestFramerOptionalPrefix(t *testing.T) {
	var got []int64
	f := NewFramer(DefaultSSEOptions(), func(r gjson.Result) error {
		got = append(got, r.Get("a").Int())
		return nil
	})
	for _, chunk := range []string{"{\"a\":1}\n", "data: {\"a\":2}\n\n", "retry: 100\n", "[DONE]\n"} {
		if err := f.Write(chunk); err != nil {
			t.Fatalf("Write(%q) = %v", chunk, err)
		}
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("payloads = %v, want [1 2]", got)
	}
	if !f.Done() {
		t.Error("Done() = false after bare sentinel")
	}
}

func TestPayloadErrorTruncatesRunes(t *testing.T) {
	e := &PayloadError{Line: strings.Repeat("é", 100)}
	msg := e.Error()
	if !utf8.ValidString(msg) {
		t.Errorf("Error() = %q is not valid UTF-8", msg)
	}
	if want := strings.Repeat("é", 80) + "..."; !strings.Contains(msg, want) {
		t.Errorf("Error() = %q, want 80 runes then ...", msg)
	}
}

func TestFramerCustomFraming(t *testing.T) {
	var got []string
	f := NewFramer(SSEOptions{FieldPrefix: "chunk:", Sentinel: "END"}, func(r gjson.Result) error {
		got = append(got, r.Get("t").String())
		return nil
	})
	f.Write("chunk: {\"t\":\"a\"}\nchunk: END\n")
	if len(got) != 1 || got[0] != "a" || !f.Done() {
		t.Errorf("payloads = %v, done = %v", got, f.Done())
	}
}

func TestFramerPayloadError(t *testing.T) {
	f := NewFramer(DefaultSSEOptions(), func(gjson.Result) error { return nil })
	err := f.Write("data: {not json}\n")
	var pe *PayloadError
	if !errors.As(err, &pe) {
		t.Fatalf("Write() = %v, want *PayloadError", err)
	}
	if !strings.Contains(pe.Line, "not json") {
		t.Errorf("Line = %q", pe.Line)
	}
}

func TestFromSSE(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"text\":\"Hel\"}\n\n")
		w.(http.Flusher).Flush()
		fmt.Fprint(w, "data: {\"text\":\"lo\"}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()

	var c collector
	h := FromSSE(context.Background(), get(srv.URL), DefaultSSEOptions(), func(r gjson.Result) {
		c.add(r.Get("text").String())
	})
	if err := wait(t, h); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := c.joined(); got != "Hello" {
		t.Errorf("chunks = %q, want Hello", got)
	}
	if !h.Finished() {
		t.Error("Finished() = false")
	}
}

func TestFromSSEMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: oops\n\n")
	}))
	defer srv.Close()

	err := wait(t, FromSSE(context.Background(), get(srv.URL), DefaultSSEOptions(), func(gjson.Result) {}))
	var pe *PayloadError
	if !errors.As(err, &pe) {
		t.Errorf("Wait() = %v, want *PayloadError", err)
	}
}

// sliceSeq is a Sequence over fixed values.
type sliceSeq struct {
	values []string
	i      int
	err    error
	closed chan struct{}
}

func (s *sliceSeq) Next() bool {
	if s.i >= len(s.values) {
		return false
	}
	s.i++
	return true
}

func (s *sliceSeq) Current() string { return s.values[s.i-1] }
func (s *sliceSeq) Err() error      { return s.err }

func TestFromSeq(t *testing.T) {
	var c collector
	h := FromSeq(context.Background(), func(ctx context.Context) (*sliceSeq, error) {
		return &sliceSeq{values: []string{"a", "b", "c"}}, nil
	}, c.add, nil)

	if err := wait(t, h); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := c.joined(); got != "abc" {
		t.Errorf("chunks = %q, want abc", got)
	}
}

func TestFromSeqError(t *testing.T) {
	boom := errors.New("boom")
	h := FromSeq(context.Background(), func(ctx context.Context) (*sliceSeq, error) {
		return &sliceSeq{values: []string{"a"}, err: boom}, nil
	}, func(string) {}, nil)
	if err := wait(t, h); !errors.Is(err, boom) {
		t.Errorf("Wait() = %v, want boom", err)
	}
}

func TestFromSeqAbortDuringAcquire(t *testing.T) {
	gate := make(chan struct{})
	cancelled := make(chan *sliceSeq, 1)
	var c collector

	h := FromSeq(context.Background(), func(ctx context.Context) (*sliceSeq, error) {
		<-gate
		return &sliceSeq{values: []string{"late"}}, nil
	}, c.add, func(s *sliceSeq) { cancelled <- s })

	h.Abort()
	close(gate)

	select {
	case s := <-cancelled:
		if s == nil {
			t.Error("cancel hook got nil sequence")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancel hook never ran")
	}
	if err := wait(t, h); err != nil {
		t.Errorf("Wait() = %v, want nil", err)
	}
	if c.count() != 0 {
		t.Errorf("callbacks = %d after abort, want 0", c.count())
	}
}

func TestFromFunc(t *testing.T) {
	var c collector
	h := FromFunc(context.Background(), func(ctx context.Context, emit func(string) bool) error {
		for _, s := range []string{"x", "y"} {
			if !emit(s) {
				return nil
			}
		}
		return nil
	}, c.add)
	if err := wait(t, h); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := c.joined(); got != "xy" {
		t.Errorf("chunks = %q, want xy", got)
	}
}

func TestIsAbort(t *testing.T) {
	if !IsAbort(context.Canceled) || !IsAbort(fmt.Errorf("wrapped: %w", ErrAborted)) {
		t.Error("IsAbort() = false for cancellation")
	}
	if IsAbort(errors.New("other")) {
		t.Error("IsAbort() = true for a plain error")
	}
}
