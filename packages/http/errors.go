package http

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by a Session matches exactly one of
// these with errors.Is.
var (
	ErrMalformedURL       = errors.New("malformed url")
	ErrTransport          = errors.New("transport failure")
	ErrResponseRead       = errors.New("response read failure")
	ErrDecompression      = errors.New("decompression failure")
	ErrUnsupportedCharset = errors.New("unsupported charset")
)

// RequestError describes a failed exchange.
type RequestError struct {
	Op   string // "open", "write", "send", "read", "decode", "gunzip"
	URL  string
	Kind error // one of the Err* sentinels
	Err  error // underlying cause, may be nil
}

func (e *RequestError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %v", e.Op, e.URL, e.Kind, e.Err)
}

func (e *RequestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, url string, kind, err error) *RequestError {
	// Keep the innermost classification when an error is re-wrapped.
	var re *RequestError
	if errors.As(err, &re) {
		return re
	}
	return &RequestError{Op: op, URL: url, Kind: kind, Err: err}
}

// IsTransportFailure reports whether err came from the transport rather
// than from reading or decoding a response.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrMalformedURL)
}
