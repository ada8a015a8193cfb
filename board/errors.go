package board

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"

	"github.com/threadgoon/threadgoon/failure"
)

// Common errors returned by the board client.
var (
	// ErrIdleTimeout is the cancellation cause used when a response body
	// produced no bytes for longer than the read timeout.
	ErrIdleTimeout = errors.New("no data received within read timeout")

	// ErrInvalidConfig indicates invalid client options.
	ErrInvalidConfig = errors.New("invalid board client configuration")
)

// classifyTransport turns an error from the HTTP round trip or body read
// into a network *failure.Error. parent is the caller's context and
// reqCtx the per-request context carrying the idle-timeout cause.
func classifyTransport(op, url string, parent, reqCtx context.Context, err error) *failure.Error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return fe
	}

	kind := failure.KindTransport
	var netErr net.Error

	switch {
	case reqCtx != nil && errors.Is(context.Cause(reqCtx), ErrIdleTimeout):
		kind = failure.KindTimeout
		err = ErrIdleTimeout
	case parent.Err() != nil:
		kind = failure.KindCancelled
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			kind = failure.KindTimeout
		}
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = failure.KindTimeout
	case errors.Is(err, context.DeadlineExceeded):
		kind = failure.KindTimeout
	}

	return &failure.Error{Kind: kind, Op: op, URL: url, Err: err}
}

// classifyDecode turns a JSON decoding error into a *failure.Error.
// Transport errors surfacing through the body reader keep their kind.
func classifyDecode(op, url string, err error) *failure.Error {
	var fe *failure.Error
	if errors.As(err, &fe) {
		return fe
	}

	kind := failure.KindMalformedJSON
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		kind = failure.KindSchemaMismatch
	}

	if errors.Is(err, io.EOF) {
		err = errors.New("empty response body")
	}

	return &failure.Error{Kind: kind, Op: op, URL: url, Err: err}
}
