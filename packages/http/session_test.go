package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

type fakeResponse struct {
	status  int
	reason  string
	header  http.Header
	body    []byte
	bodyErr error
	url     string // final URL; defaults to the requested one
}

type fakeTransport struct {
	responses []fakeResponse
	conns     []*fakeConn
	openErr   error
	doErr     error

	stream        []byte
	streamErr     error
	streamReadErr error
	streamBody    *trackingBody
	streamed      []string
}

func (f *fakeTransport) Open(ctx context.Context, rawURL string) (Connection, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	c := &fakeConn{transport: f, url: rawURL, header: make(http.Header)}
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeTransport) Stream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f.streamed = append(f.streamed, rawURL)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	f.streamBody = &trackingBody{data: bytes.NewReader(f.stream), err: f.streamReadErr}
	return f.streamBody, nil
}

func (f *fakeTransport) last() *fakeConn {
	return f.conns[len(f.conns)-1]
}

type fakeConn struct {
	transport *fakeTransport
	url       string
	method    string
	header    http.Header
	body      bytes.Buffer
	closed    bool
	respBody  *trackingBody
}

func (c *fakeConn) SetMethod(method string)     { c.method = method }
func (c *fakeConn) SetHeader(key, value string) { c.header.Set(key, value) }
func (c *fakeConn) AddHeader(key, value string) { c.header.Add(key, value) }

func (c *fakeConn) WriteBody(body []byte) error {
	_, err := c.body.Write(body)
	return err
}

func (c *fakeConn) Do() (*Exchange, error) {
	if c.transport.doErr != nil {
		return nil, c.transport.doErr
	}
	if len(c.transport.responses) == 0 {
		return nil, errors.New("no response queued")
	}
	r := c.transport.responses[0]
	c.transport.responses = c.transport.responses[1:]

	final := r.url
	if final == "" {
		final = c.url
	}
	u, err := url.Parse(final)
	if err != nil {
		return nil, err
	}
	header := r.header
	if header == nil {
		header = make(http.Header)
	}
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	c.respBody = &trackingBody{data: bytes.NewReader(r.body), err: r.bodyErr}
	return &Exchange{
		StatusCode:     status,
		Status:         r.reason,
		Header:         header,
		Body:           c.respBody,
		URL:            u,
		Method:         c.method,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
	}, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type trackingBody struct {
	data   *bytes.Reader
	err    error
	closed bool
	read   int
}

func (b *trackingBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	n, err := b.data.Read(p)
	b.read += n
	return n, err
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

func newTestSession(ft *fakeTransport, opts ...SessionOption) *Session {
	return NewSession(append([]SessionOption{WithTransport(ft), WithEncoding(UTF8)}, opts...)...)
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestSession_Get_PlainText(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		reason: "OK",
		header: http.Header{
			"Content-Type": {"text/plain"},
			"Set-Cookie":   {"sid=abc"},
		},
		body: []byte("hello\nworld"),
	}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/ok", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)
	assert.Equal(t, "OK", resp.Message)
	assert.Equal(t, "hello\r\nworld\r\n", resp.Content)
	assert.Equal(t, []string{"hello", "world"}, resp.ContentCollection)
	assert.Equal(t, "text/plain", resp.ContentType)
	assert.Equal(t, UTF8, resp.ContentEncoding)
	assert.Equal(t, "GET", resp.Method)
	assert.Equal(t, "sid=abc", resp.Cookie)
	assert.Equal(t, "http://example.test/ok", resp.URLString)
	assert.Equal(t, DefaultConnectTimeout, resp.ConnectTimeout)
	assert.Equal(t, DefaultReadTimeout, resp.ReadTimeout)

	conn := ft.last()
	assert.True(t, conn.closed)
	assert.True(t, conn.respBody.closed)
	assert.Equal(t, "GET", conn.method)
	assert.Equal(t, 0, conn.body.Len())
}

func TestSession_CookieCarriedToNextRequest(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{
		{header: http.Header{"Set-Cookie": {"JSESSIONID=1234; Path=/"}}},
		{header: http.Header{"Set-Cookie": {"JSESSIONID=5678; Path=/"}}},
		{},
	}}
	s := newTestSession(ft)
	ctx := context.Background()

	_, err := s.Get(ctx, "http://example.test/ok", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, ft.conns[0].header.Values("Cookie"))

	_, err = s.Get(ctx, "http://example.test/ok2", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "JSESSIONID=1234; Path=/", ft.conns[1].header.Get("Cookie"))

	_, err = s.Post(ctx, "http://example.test/ok3", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "JSESSIONID=5678; Path=/", ft.conns[2].header.Get("Cookie"))
}

func TestSession_LastSetCookieWins(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{
		{header: http.Header{"Set-Cookie": {"a=1", "b=2"}}},
	}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "b=2", resp.Cookie)
	assert.Equal(t, "b=2", s.Cookie())
}

func TestSession_MissingSetCookieClearsCookie(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{
		{header: http.Header{"Set-Cookie": {"sid=1"}}},
		{},
	}}
	s := newTestSession(ft)
	ctx := context.Background()

	_, err := s.Get(ctx, "http://example.test/a", nil, nil)
	require.NoError(t, err)
	resp, err := s.Get(ctx, "http://example.test/b", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "", resp.Cookie)
	assert.Equal(t, "", s.Cookie())
}

func TestSession_KeepCookieOnMissing(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{
		{header: http.Header{"Set-Cookie": {"sid=1"}}},
		{},
		{},
	}}
	s := newTestSession(ft, WithKeepCookieOnMissing(true))
	ctx := context.Background()

	_, err := s.Get(ctx, "http://example.test/a", nil, nil)
	require.NoError(t, err)
	resp, err := s.Get(ctx, "http://example.test/b", nil, nil)
	require.NoError(t, err)
	_, err = s.Get(ctx, "http://example.test/c", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "sid=1", resp.Cookie)
	assert.Equal(t, "sid=1", ft.conns[2].header.Get("Cookie"))
}

func TestSession_WithCookieSeedsFirstRequest(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{}}}
	s := newTestSession(ft, WithCookie("sid=restored"))

	_, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "sid=restored", ft.last().header.Get("Cookie"))
}

func TestSession_Post_BodyFromParams(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{}}}
	s := newTestSession(ft)

	_, err := s.Post(context.Background(), "http://example.test/form", map[string]string{"a": "1", "b": "2"}, nil)

	require.NoError(t, err)
	conn := ft.last()
	assert.Equal(t, "POST", conn.method)
	assert.Equal(t, "&a=1&b=2", conn.body.String())
	assert.Equal(t, "http://example.test/form", conn.url)
}

func TestSession_Get_ParamsInQuery(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/search", map[string]string{"q": "go", "page": "2"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "http://example.test/search?page=2&q=go", ft.last().url)
	assert.Equal(t, "http://example.test/search?page=2&q=go", resp.URLString)
	assert.Equal(t, "page=2&q=go", resp.Query)
	assert.Equal(t, 0, ft.last().body.Len())
}

func TestSession_CallerHeadersOverrideCookie(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{}}}
	s := newTestSession(ft, WithCookie("sid=session"))

	_, err := s.Get(context.Background(), "http://example.test/", nil, map[string]string{
		"Cookie":     "sid=caller",
		"User-Agent": "hitsession-test",
	})

	require.NoError(t, err)
	conn := ft.last()
	assert.Equal(t, []string{"sid=caller"}, conn.header.Values("Cookie"))
	assert.Equal(t, "hitsession-test", conn.header.Get("User-Agent"))
}

func TestSession_URLDecomposition(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		url: "https://user:pw@example.test:8443/a/b.html?x=1&y=2#top",
	}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/start", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "https", resp.Protocol)
	assert.Equal(t, "example.test", resp.Host)
	assert.Equal(t, 8443, resp.Port)
	assert.Equal(t, 443, resp.DefaultPort)
	assert.Equal(t, "/a/b.html", resp.Path)
	assert.Equal(t, "/a/b.html?x=1&y=2", resp.File)
	assert.Equal(t, "x=1&y=2", resp.Query)
	assert.Equal(t, "top", resp.Ref)
	assert.Equal(t, "user:pw", resp.UserInfo)
	assert.Equal(t, "http://example.test/start", resp.URLString)
}

func TestSession_URLDecomposition_NoPort(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/index", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, -1, resp.Port)
	assert.Equal(t, 80, resp.DefaultPort)
	assert.Equal(t, "/index", resp.File)
	assert.Equal(t, "", resp.Query)
	assert.Equal(t, "", resp.UserInfo)
}

func TestSession_CharsetFromContentType(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("你好\n世界")
	require.NoError(t, err)

	ft := &fakeTransport{responses: []fakeResponse{{
		header: http.Header{"Content-Type": {"text/html; charset=GBK"}},
		body:   []byte(encoded),
	}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "GBK", resp.ContentEncoding)
	assert.Equal(t, []string{"你好", "世界"}, resp.ContentCollection)
}

func TestSession_CharsetFromUnparsableContentType(t *testing.T) {
	body, err := simplifiedchinese.GBK.NewEncoder().String("你好")
	require.NoError(t, err)

	ft := &fakeTransport{responses: []fakeResponse{{
		header: http.Header{"Content-Type": {"text/html;charset=gbk; foo"}},
		body:   []byte(body),
	}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "gbk", resp.ContentEncoding)
	assert.Equal(t, "你好\r\n", resp.Content)
}

func TestSession_CharsetFallsBackToDefault(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("中文")
	require.NoError(t, err)

	ft := &fakeTransport{responses: []fakeResponse{{
		header: http.Header{
			"Content-Type":     {"text/plain"},
			"Content-Encoding": {"gzip"},
		},
		body: []byte(encoded),
	}}}
	s := newTestSession(ft)
	s.SetDefaultEncoding(GBK)

	resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, GBK, resp.ContentEncoding)
	assert.Equal(t, "中文\r\n", resp.Content)
}

func TestSession_CharsetFromContentEncoding(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		header: http.Header{"Content-Encoding": {"ISO-8859-1"}},
		body:   []byte{'c', 'a', 'f', 0xe9},
	}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "ISO-8859-1", resp.ContentEncoding)
	assert.Equal(t, "café\r\n", resp.Content)
}

func TestSession_ErrorStatusIsNotFailure(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		status: http.StatusNotFound,
		reason: "Not Found",
		body:   []byte("missing"),
	}}}
	s := newTestSession(ft)

	resp, err := s.Get(context.Background(), "http://example.test/nope", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 404, resp.Code)
	assert.Equal(t, "Not Found", resp.Message)
	assert.True(t, resp.IsClientError())
}

func TestSession_TransportFailure(t *testing.T) {
	ft := &fakeTransport{doErr: errors.New("dial tcp 127.0.0.1:1: connect: connection refused")}
	s := newTestSession(ft)

	resp, err := s.Post(context.Background(), "http://example.test/form", map[string]string{"a": "1"}, nil)

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrTransport)
	assert.True(t, IsTransportFailure(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, ft.last().closed)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "send", reqErr.Op)
	assert.Equal(t, "http://example.test/form", reqErr.URL)
}

func TestSession_MalformedURL(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(ft)

	tests := []string{
		"://missing-scheme",
		"ftp://example.test/file",
		"example.test/path",
		"http:///nohost",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			resp, err := s.Get(context.Background(), raw, nil, nil)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, ErrMalformedURL)
		})
	}
	assert.Empty(t, ft.conns)
}

func TestSession_ResponseReadFailure(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		header:  http.Header{"Set-Cookie": {"sid=new"}},
		bodyErr: io.ErrUnexpectedEOF,
	}}}
	s := newTestSession(ft, WithCookie("sid=old"))

	resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrResponseRead)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, ft.last().closed)
	assert.True(t, ft.last().respBody.closed)
	assert.Equal(t, "sid=old", s.Cookie())
}

func TestSession_UnsupportedCharset(t *testing.T) {
	ft := &fakeTransport{responses: []fakeResponse{{
		header: http.Header{
			"Content-Type": {"text/plain; charset=x-made-up"},
			"Set-Cookie":   {"sid=new"},
		},
		body: []byte("hi"),
	}}}
	s := newTestSession(ft, WithCookie("sid=old"))

	resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrUnsupportedCharset)
	assert.True(t, ft.last().closed)
	assert.Equal(t, "sid=old", s.Cookie())
}

func TestSession_GetOrNil(t *testing.T) {
	ft := &fakeTransport{doErr: errors.New("connection refused")}
	s := newTestSession(ft)

	assert.Nil(t, s.GetOrNil(context.Background(), "http://example.test/"))

	ft.doErr = nil
	ft.responses = []fakeResponse{{body: []byte("ok")}}
	resp := s.GetOrNil(context.Background(), "http://example.test/")
	require.NotNil(t, resp)
	assert.Equal(t, "ok\r\n", resp.Content)
}

func TestSession_ContentMatchesCollection(t *testing.T) {
	bodies := []string{
		"",
		"single",
		"a\nb\nc\n",
		"windows\r\nlines\r\n",
		"old\rmac\r",
		"mixed\n\r\nend",
	}

	for _, body := range bodies {
		ft := &fakeTransport{responses: []fakeResponse{{body: []byte(body)}}}
		s := newTestSession(ft)

		resp, err := s.Get(context.Background(), "http://example.test/", nil, nil)
		require.NoError(t, err)

		var want strings.Builder
		for _, line := range resp.ContentCollection {
			want.WriteString(line + LineTerminator)
		}
		assert.Equal(t, want.String(), resp.Content, "body %q", body)
	}
}

func TestSession_FetchCompressed(t *testing.T) {
	ft := &fakeTransport{stream: gzipBytes(t, []byte("compressed page\nline two"))}
	s := newTestSession(ft, WithCookie("sid=ignored"))

	text, err := s.FetchCompressed(context.Background(), "http://example.test/page.gz")

	require.NoError(t, err)
	assert.Equal(t, "compressed page\nline two", text)
	assert.Equal(t, []string{"http://example.test/page.gz"}, ft.streamed)
	assert.Empty(t, ft.conns)
	assert.True(t, ft.streamBody.closed)
}

func TestSession_FetchCompressed_DefaultCharset(t *testing.T) {
	encoded, err := simplifiedchinese.GBK.NewEncoder().String("压缩的网页")
	require.NoError(t, err)

	ft := &fakeTransport{stream: gzipBytes(t, []byte(encoded))}
	s := newTestSession(ft, WithEncoding(GBK))

	text, err := s.FetchCompressed(context.Background(), "http://example.test/page.gz")

	require.NoError(t, err)
	assert.Equal(t, "压缩的网页", text)
}

func TestSession_FetchCompressed_NotGzip(t *testing.T) {
	ft := &fakeTransport{stream: []byte("<html>plain</html>")}
	s := newTestSession(ft)

	text, err := s.FetchCompressed(context.Background(), "http://example.test/page")

	assert.Equal(t, "", text)
	assert.ErrorIs(t, err, ErrDecompression)
	assert.True(t, ft.streamBody.closed)
}

func TestSession_FetchCompressed_ReadFailure(t *testing.T) {
	ft := &fakeTransport{stream: gzipBytes(t, []byte("x")), streamReadErr: errors.New("connection reset")}
	s := newTestSession(ft)

	text, err := s.FetchCompressed(context.Background(), "http://example.test/page.gz")

	assert.Equal(t, "", text)
	assert.ErrorIs(t, err, ErrResponseRead)
	assert.True(t, ft.streamBody.closed)
}

func TestSession_FetchCompressed_TruncatesAtMaxSize(t *testing.T) {
	// Random bytes do not compress, so the gzip stream is larger than the input.
	plain := make([]byte, MaxCompressedSize+4096)
	_, err := rand.New(rand.NewSource(1)).Read(plain)
	require.NoError(t, err)
	payload := gzipBytes(t, plain)
	require.Greater(t, len(payload), MaxCompressedSize)

	ft := &fakeTransport{stream: payload}
	s := newTestSession(ft)

	text, err := s.FetchCompressed(context.Background(), "http://example.test/big.gz")

	assert.Equal(t, "", text)
	assert.ErrorIs(t, err, ErrDecompression)
	assert.Equal(t, MaxCompressedSize, ft.streamBody.read)
	assert.True(t, ft.streamBody.closed)
}

func TestSession_FetchCompressed_UnderMaxSizeReadsAll(t *testing.T) {
	payload := gzipBytes(t, []byte(strings.Repeat("fits\n", 1000)))
	require.Less(t, len(payload), MaxCompressedSize)

	ft := &fakeTransport{stream: payload}
	s := newTestSession(ft)

	text, err := s.FetchCompressed(context.Background(), "http://example.test/small.gz")

	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("fits\n", 1000), text)
	assert.Equal(t, len(payload), ft.streamBody.read)
}

func TestSession_FetchCompressed_TransportFailure(t *testing.T) {
	ft := &fakeTransport{streamErr: errors.New("no such host")}
	s := newTestSession(ft)

	text, err := s.FetchCompressed(context.Background(), "http://example.test/page.gz")

	assert.Equal(t, "", text)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSession_FetchCompressed_MalformedURL(t *testing.T) {
	ft := &fakeTransport{}
	s := newTestSession(ft)

	_, err := s.FetchCompressed(context.Background(), "not a url")

	assert.ErrorIs(t, err, ErrMalformedURL)
	assert.Empty(t, ft.streamed)
}

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession()

	assert.Equal(t, DefaultEncoding, s.DefaultEncoding())
	assert.Equal(t, "", s.Cookie())
	assert.NotEmpty(t, s.ID())
	assert.IsType(t, &NetTransport{}, s.transport)
	assert.NotEqual(t, s.ID(), NewSession().ID())
}

func TestSession_ConcurrentExchangesAreSerialized(t *testing.T) {
	const n = 20
	ft := &fakeTransport{}
	for i := 0; i < n; i++ {
		ft.responses = append(ft.responses, fakeResponse{
			header: http.Header{"Set-Cookie": []string{"c=" + strconv.Itoa(i)}},
		})
	}
	s := newTestSession(ft)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Get(context.Background(), "http://example.test/", nil, nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, ft.conns, n)
	assert.Equal(t, "", ft.conns[0].header.Get("Cookie"))
	for i := 1; i < n; i++ {
		assert.Equal(t, "c="+strconv.Itoa(i-1), ft.conns[i].header.Get("Cookie"))
		assert.True(t, ft.conns[i].closed)
	}
	assert.Equal(t, "c="+strconv.Itoa(n-1), s.Cookie())
}
