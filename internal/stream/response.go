package stream

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// RequestFunc issues the request for a stream. It must honor ctx.
type RequestFunc func(ctx context.Context) (*http.Response, error)

const readSize = 4096

// errStop ends a read loop early without failing the stream.
var errStop = errors.New("stop reading")

// FromResponse streams a text response body. Each decoded read is passed to
// callback as a chunk. A non-2xx status fails the stream with a
// *TransportError.
func FromResponse(ctx context.Context, do RequestFunc, callback func(chunk string)) *Handle {
	h, ctx := newHandle(ctx)
	return h.start(ctx, func(ctx context.Context) error {
		return readResponse(ctx, h, do, func(chunk string) error {
			callback(chunk)
			return nil
		})
	})
}

// readResponse performs the request and feeds decoded chunks to fn while the
// handle is live.
func readResponse(ctx context.Context, h *Handle, do RequestFunc, fn func(string) error) error {
	resp, err := do(ctx)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewTransportError(resp)
	}

	body := decoder(resp.Header.Get("Content-Type")).Reader(resp.Body)
	buf := make([]byte, readSize)
	for {
		if !h.live() {
			return nil
		}
		n, rerr := body.Read(buf)
		if n > 0 && h.live() {
			if err := fn(string(buf[:n])); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
		}
		if errors.Is(rerr, io.EOF) {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// decoder returns a streaming decoder for the charset named in contentType,
// falling back to UTF-8. Multi-byte sequences split across reads are held
// until complete.
func decoder(contentType string) *encoding.Decoder {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if cs := params["charset"]; cs != "" {
			if enc, err := htmlindex.Get(cs); err == nil {
				return enc.NewDecoder()
			}
		}
	}
	return unicode.UTF8.NewDecoder()
}
