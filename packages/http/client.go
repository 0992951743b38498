package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultConnectTimeout bounds dialing a server
	DefaultConnectTimeout = 30 * time.Second
	// DefaultReadTimeout bounds waiting for response headers
	DefaultReadTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
)

// NetTransport is the Transport backed by net/http.
type NetTransport struct {
	httpClient     *http.Client
	connectTimeout time.Duration
	readTimeout    time.Duration
	followRedirect bool
	maxRedirects   int
	proxyURL       string
	defaultHeaders map[string]string
}

type ClientOption func(*NetTransport)

func NewNetTransport(opts ...ClientOption) *NetTransport {
	t := &NetTransport{
		connectTimeout: DefaultConnectTimeout,
		readTimeout:    DefaultReadTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		defaultHeaders: make(map[string]string),
	}

	for _, opt := range opts {
		opt(t)
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   t.connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: t.readTimeout,
		DisableKeepAlives:     true,
	}

	if t.proxyURL != "" {
		proxyURL, err := neturl.Parse(t.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !t.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= t.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	t.httpClient = &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy,
	}

	return t
}

func WithConnectTimeout(d time.Duration) ClientOption {
	return func(t *NetTransport) {
		t.connectTimeout = d
	}
}

func WithReadTimeout(d time.Duration) ClientOption {
	return func(t *NetTransport) {
		t.readTimeout = d
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(t *NetTransport) {
		t.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(t *NetTransport) {
		t.maxRedirects = max
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(t *NetTransport) {
		t.proxyURL = proxyURL
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(t *NetTransport) {
		t.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets headers sent with every request unless the
// connection sets them itself
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(t *NetTransport) {
		for k, v := range headers {
			t.defaultHeaders[k] = v
		}
	}
}

func (t *NetTransport) Open(ctx context.Context, rawURL string) (Connection, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}
	return &netConnection{
		ctx:       ctx,
		transport: t,
		method:    http.MethodGet,
		url:       rawURL,
		header:    make(http.Header),
	}, nil
}

func (t *NetTransport) Stream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	// Keep the payload as sent; the caller decompresses it.
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}
	return resp.Body, nil
}

type netConnection struct {
	ctx       context.Context
	transport *NetTransport
	method    string
	url       string
	header    http.Header
	body      bytes.Buffer
	resp      *http.Response
}

func (c *netConnection) SetMethod(method string) {
	c.method = strings.ToUpper(method)
}

func (c *netConnection) SetHeader(key, value string) {
	c.header.Set(key, value)
}

func (c *netConnection) AddHeader(key, value string) {
	c.header.Add(key, value)
}

func (c *netConnection) WriteBody(body []byte) error {
	_, err := c.body.Write(body)
	return err
}

func (c *netConnection) Do() (*Exchange, error) {
	var body io.Reader
	if c.body.Len() > 0 {
		body = bytes.NewReader(c.body.Bytes())
	}

	httpReq, err := http.NewRequestWithContext(c.ctx, c.method, c.url, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.transport.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	httpReq.Header.Set("Cache-Control", "no-cache")
	httpReq.Header.Set("Pragma", "no-cache")
	for k, vs := range c.header {
		httpReq.Header[k] = vs
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	httpResp, err := c.transport.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	c.resp = httpResp

	return &Exchange{
		StatusCode:     httpResp.StatusCode,
		Status:         reasonPhrase(httpResp),
		Header:         httpResp.Header,
		Body:           httpResp.Body,
		URL:            httpResp.Request.URL,
		Method:         c.method,
		ConnectTimeout: c.transport.connectTimeout,
		ReadTimeout:    c.transport.readTimeout,
	}, nil
}

func (c *netConnection) Close() error {
	if c.resp == nil {
		return nil
	}
	err := c.resp.Body.Close()
	c.resp = nil
	return err
}

// reasonPhrase strips the numeric code from resp.Status ("200 OK" -> "OK").
func reasonPhrase(resp *http.Response) string {
	phrase := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		phrase = http.StatusText(resp.StatusCode)
	}
	return phrase
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	// Check for valid scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %q (only http and https are allowed)", u.Scheme)
	}

	// Check for valid host
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
