package http

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Transport opens connections for a Session. NetTransport is the default;
// tests supply their own.
type Transport interface {
	// Open prepares a request to rawURL. Nothing is sent until Do.
	Open(ctx context.Context, rawURL string) (Connection, error)
	// Stream returns the raw response body of a plain GET to rawURL.
	Stream(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// Connection is a single request being assembled and then dispatched.
type Connection interface {
	SetMethod(method string)
	// SetHeader replaces any existing values for key.
	SetHeader(key, value string)
	// AddHeader appends a value for key.
	AddHeader(key, value string)
	WriteBody(body []byte) error
	// Do sends the request and returns once status and headers are in.
	// The body is read from the returned Exchange.
	Do() (*Exchange, error)
	// Close releases the connection and any unread response body.
	Close() error
}

// Exchange is a completed request with its response still open for reading.
type Exchange struct {
	StatusCode     int
	Status         string // reason phrase, e.g. "OK"
	Header         http.Header
	Body           io.ReadCloser
	URL            *url.URL // final URL after redirects
	Method         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}
