// Package failure defines the error taxonomy shared by the listing client,
// the downloader and the batch runner.
//
// Every error produced by the pipeline is a *Error carrying a Kind. Kinds
// are grouped into three categories (network, decode, filesystem) so that
// callers can decide how to report a failure without string matching.
package failure

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
)

// Category groups related error kinds
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryDecode     Category = "decode"
	CategoryFilesystem Category = "filesystem"
	CategoryUnknown    Category = "unknown"
)

// Kind identifies the concrete failure
type Kind int

const (
	KindUnknown Kind = iota
	KindTimeout
	KindTransport
	KindHTTPStatus
	KindCancelled
	KindMalformedJSON
	KindSchemaMismatch
	KindCreateConflict
	KindPermission
	KindFilesystem
)

// String returns the string representation of the error kind
func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindHTTPStatus:
		return "http-status"
	case KindCancelled:
		return "cancelled"
	case KindMalformedJSON:
		return "malformed-json"
	case KindSchemaMismatch:
		return "schema-mismatch"
	case KindCreateConflict:
		return "create-conflict"
	case KindPermission:
		return "permission"
	case KindFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

// Category returns the category the kind belongs to
func (k Kind) Category() Category {
	switch k {
	case KindTimeout, KindTransport, KindHTTPStatus, KindCancelled:
		return CategoryNetwork
	case KindMalformedJSON, KindSchemaMismatch:
		return CategoryDecode
	case KindCreateConflict, KindPermission, KindFilesystem:
		return CategoryFilesystem
	default:
		return CategoryUnknown
	}
}

// Error is a classified pipeline error
type Error struct {
	Kind       Kind
	Op         string // e.g. "fetch catalog", "download"
	URL        string
	Path       string
	StatusCode int
	Err        error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" %d", e.StatusCode)
	}
	switch {
	case e.URL != "":
		msg += " (" + e.URL + ")"
	case e.Path != "":
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This lets
// callers write errors.Is(err, &failure.Error{Kind: failure.KindTimeout}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New creates a new *Error
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind of err. Context errors that were never
// classified map to cancelled/timeout.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}

	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	return KindUnknown
}

// As returns err as *Error, wrapping unclassified errors as KindUnknown
func As(err error) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	return &Error{Kind: KindOf(err), Err: err}
}

// FromFS classifies an error returned by the os package
func FromFS(op, path string, err error) *Error {
	kind := KindFilesystem
	switch {
	case errors.Is(err, fs.ErrExist):
		kind = KindCreateConflict
	case errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.EROFS):
		kind = KindPermission
	}

	// Strip the *PathError wrapper, the path is carried separately
	var pe *os.PathError
	if errors.As(err, &pe) {
		err = pe.Err
	}

	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}
