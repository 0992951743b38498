package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Session issues requests that share one cookie and one default charset.
// Exchanges on a Session are serialized: the cookie is read when a request
// is built and written when its response arrives, under the same lock.
type Session struct {
	mu              sync.Mutex
	id              string
	transport       Transport
	defaultEncoding string
	cookie          string
	keepCookie      bool
	logger          zerolog.Logger
}

type SessionOption func(*Session)

func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:              uuid.NewString(),
		defaultEncoding: DefaultEncoding,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.transport == nil {
		s.transport = NewNetTransport()
	}
	return s
}

// WithTransport replaces the default NetTransport
func WithTransport(t Transport) SessionOption {
	return func(s *Session) {
		s.transport = t
	}
}

// WithEncoding sets the charset used when a response does not declare one
func WithEncoding(name string) SessionOption {
	return func(s *Session) {
		s.defaultEncoding = name
	}
}

func WithLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// WithCookie seeds the session cookie, e.g. from a stored session
func WithCookie(cookie string) SessionOption {
	return func(s *Session) {
		s.cookie = cookie
	}
}

// WithKeepCookieOnMissing keeps the current cookie when a response carries
// no Set-Cookie header. By default such a response clears it.
func WithKeepCookieOnMissing(keep bool) SessionOption {
	return func(s *Session) {
		s.keepCookie = keep
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) SetDefaultEncoding(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultEncoding = name
}

func (s *Session) DefaultEncoding() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaultEncoding
}

func (s *Session) Cookie() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cookie
}

func (s *Session) SetCookie(cookie string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookie = cookie
}

// Get sends a GET. Non-empty params are appended to the URL as a query
// string. params and headers may be nil.
func (s *Session) Get(ctx context.Context, rawURL string, params, headers map[string]string) (*Response, error) {
	return s.Do(ctx, http.MethodGet, rawURL, params, headers)
}

// Post sends a POST. Non-empty params become the request body.
func (s *Session) Post(ctx context.Context, rawURL string, params, headers map[string]string) (*Response, error) {
	return s.Do(ctx, http.MethodPost, rawURL, params, headers)
}

// GetOrNil is Get without parameters or headers that logs any failure and
// returns nil instead of an error.
func (s *Session) GetOrNil(ctx context.Context, rawURL string) *Response {
	resp, err := s.Get(ctx, rawURL, nil, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("session", s.id).Str("url", rawURL).Msg("request failed")
		return nil
	}
	return resp
}

// Do performs one exchange. HTTP error statuses are returned as responses;
// only failures to complete the exchange are errors.
func (s *Session) Do(ctx context.Context, method, rawURL string, params, headers map[string]string) (*Response, error) {
	method = strings.ToUpper(method)

	s.mu.Lock()
	defer s.mu.Unlock()

	if method == http.MethodGet {
		rawURL = EncodeQuery(rawURL, params)
	}
	if err := ValidateURL(rawURL); err != nil {
		return nil, newError("open", rawURL, ErrMalformedURL, err)
	}

	start := time.Now()
	conn, err := s.transport.Open(ctx, rawURL)
	if err != nil {
		return nil, newError("open", rawURL, ErrTransport, err)
	}
	defer conn.Close()

	conn.SetMethod(method)
	conn.SetHeader("Cookie", s.cookie)
	for k, v := range headers {
		conn.SetHeader(k, v)
	}

	if method == http.MethodPost && len(params) > 0 {
		if err := conn.WriteBody([]byte(EncodeBody(params))); err != nil {
			return nil, newError("write", rawURL, ErrTransport, err)
		}
	}

	ex, err := conn.Do()
	if err != nil {
		s.logger.Debug().Err(err).Str("session", s.id).Str("method", method).Str("url", rawURL).Msg("exchange failed")
		return nil, newError("send", rawURL, ErrTransport, err)
	}
	if ex.Body == nil {
		ex.Body = http.NoBody
	}

	resp, err := s.buildResponse(rawURL, ex)
	if err != nil {
		return nil, err
	}
	resp.Duration = time.Since(start)

	s.logger.Debug().
		Str("session", s.id).
		Str("method", method).
		Str("url", rawURL).
		Int("status", resp.Code).
		Str("charset", resp.ContentEncoding).
		Dur("duration", resp.Duration).
		Msg("exchange")

	return resp, nil
}

// FetchCompressed downloads rawURL without cookie or headers, keeps at most
// MaxCompressedSize bytes and returns them gunzipped and decoded with the
// session's default encoding.
func (s *Session) FetchCompressed(ctx context.Context, rawURL string) (string, error) {
	if err := ValidateURL(rawURL); err != nil {
		return "", newError("open", rawURL, ErrMalformedURL, err)
	}
	charset := s.DefaultEncoding()

	rc, err := s.transport.Stream(ctx, rawURL)
	if err != nil {
		return "", newError("open", rawURL, ErrTransport, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxCompressedSize))
	if err != nil {
		return "", newError("read", rawURL, ErrResponseRead, err)
	}

	text, err := DecodeGzip(data, charset)
	if err != nil {
		kind := ErrDecompression
		if errors.Is(err, ErrUnsupportedCharset) {
			kind = ErrUnsupportedCharset
		}
		return "", newError("gunzip", rawURL, kind, err)
	}

	s.logger.Debug().Str("session", s.id).Str("url", rawURL).Int("compressed", len(data)).Int("text", len(text)).Msg("fetched compressed")
	return text, nil
}

// updateCookie applies the Set-Cookie values of a response. The last value
// wins. Callers hold s.mu.
func (s *Session) updateCookie(values []string) {
	if len(values) == 0 {
		if !s.keepCookie {
			s.cookie = ""
		}
		return
	}
	s.cookie = values[len(values)-1]
}
