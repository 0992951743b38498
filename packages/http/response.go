package http

import (
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// LineTerminator ends every line of Response.Content.
const LineTerminator = "\r\n"

// Response is a snapshot of one exchange. It is built once and never
// modified afterwards.
type Response struct {
	Code    int
	Message string

	Content           string
	ContentCollection []string
	ContentType       string
	ContentEncoding   string // charset used to decode Content

	URLString   string // URL as requested, query included
	Protocol    string
	Host        string
	Port        int // -1 when the URL has no explicit port
	DefaultPort int
	Path        string
	File        string
	Query       string
	Ref         string
	UserInfo    string

	// Cookie is the session cookie in effect after this exchange.
	Cookie string

	Method         string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration

	Headers  map[string]string
	Duration time.Duration
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal([]byte(r.Content), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.Code >= 200 && r.Code < 300
}

func (r *Response) IsRedirect() bool {
	return r.Code >= 300 && r.Code < 400
}

func (r *Response) IsClientError() bool {
	return r.Code >= 400 && r.Code < 500
}

func (r *Response) IsServerError() bool {
	return r.Code >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// buildResponse reads ex to completion and produces the Response. On
// success it stores the exchange's Set-Cookie value in the session, so
// callers must hold s.mu. ex.Body is closed on every path.
func (s *Session) buildResponse(urlString string, ex *Exchange) (*Response, error) {
	raw, err := io.ReadAll(ex.Body)
	ex.Body.Close()
	if err != nil {
		return nil, newError("read", urlString, ErrResponseRead, err)
	}

	contentType := ex.Header.Get("Content-Type")
	charset := ResolveCharset(contentType, ex.Header.Get("Content-Encoding"), s.defaultEncoding)
	text, err := DecodeString(raw, charset)
	if err != nil {
		return nil, newError("decode", urlString, ErrUnsupportedCharset, err)
	}

	// Only a fully read and decoded response changes the session cookie.
	s.updateCookie(ex.Header.Values("Set-Cookie"))

	lines := SplitLines(text)
	resp := &Response{
		Code:              ex.StatusCode,
		Message:           ex.Status,
		Content:           JoinLines(lines),
		ContentCollection: lines,
		ContentType:       contentType,
		ContentEncoding:   charset,
		URLString:         urlString,
		Cookie:            s.cookie,
		Method:            ex.Method,
		ConnectTimeout:    ex.ConnectTimeout,
		ReadTimeout:       ex.ReadTimeout,
		Headers:           flattenHeader(ex.Header),
	}
	resp.setURL(ex.URL)
	return resp, nil
}

func (r *Response) setURL(u *url.URL) {
	r.Port = -1
	r.DefaultPort = -1
	if u == nil {
		return
	}

	r.Protocol = u.Scheme
	r.Host = u.Hostname()
	if p, err := strconv.Atoi(u.Port()); err == nil {
		r.Port = p
	}
	switch u.Scheme {
	case "http":
		r.DefaultPort = 80
	case "https":
		r.DefaultPort = 443
	}
	r.Path = u.EscapedPath()
	r.Query = u.RawQuery
	r.File = r.Path
	if u.RawQuery != "" {
		r.File += "?" + u.RawQuery
	}
	r.Ref = u.Fragment
	if u.User != nil {
		r.UserInfo = u.User.String()
	}
}

// SplitLines breaks text into lines ended by "\n", "\r\n" or a lone "\r".
// Terminators are dropped; a trailing terminator does not add an empty line.
func SplitLines(text string) []string {
	lines := make([]string, 0)
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			lines = append(lines, text[start:i])
			start = i + 1
		case '\r':
			lines = append(lines, text[start:i])
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// JoinLines is the inverse used for Response.Content: every line followed
// by LineTerminator.
func JoinLines(lines []string) string {
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString(LineTerminator)
	}
	return sb.String()
}

func flattenHeader(h map[string][]string) map[string]string {
	headers := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			headers[k] = vs[0]
		}
	}
	return headers
}
