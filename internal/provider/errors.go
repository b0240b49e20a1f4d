package provider

import (
	"errors"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/dshills/ghostwriter/internal/stream"
)

// ErrMissingAPIKey is returned by factories that need a key they were not
// given.
var ErrMissingAPIKey = errors.New("api key is required")

// ErrMissingModel is returned when a model service is configured without a
// model name.
var ErrMissingModel = errors.New("model is required")

// APIError converts an SDK status error into a *stream.TransportError so
// that every source reports failed requests the same way. raw is the
// response body as the SDK kept it.
func APIError(status int, raw string, cause error) *stream.TransportError {
	e := &stream.TransportError{
		StatusCode: status,
		Status:     http.StatusText(status),
		Body:       []byte(raw),
		Err:        cause,
	}
	if gjson.Valid(raw) {
		e.Data = gjson.Parse(raw)
	}
	return e
}
