package http

import (
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

const (
	UTF8 = "UTF-8"
	GBK  = "GBK"

	// DefaultEncoding is used when a session is created without one.
	DefaultEncoding = UTF8
)

// LookupCharset returns the decoder for a charset label such as "UTF-8",
// "gbk" or "Shift_JIS". WHATWG labels are tried first, then IANA names.
func LookupCharset(name string) (encoding.Encoding, error) {
	label := strings.TrimSpace(name)
	if label == "" {
		return nil, fmt.Errorf("%w: empty name", ErrUnsupportedCharset)
	}
	if enc, err := htmlindex.Get(label); err == nil {
		return enc, nil
	}
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCharset, name)
	}
	return enc, nil
}

// DecodeString decodes data from the named charset into a Go string.
func DecodeString(data []byte, charset string) (string, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return "", err
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	return string(out), nil
}

// NewDecodingReader wraps r so that reads yield UTF-8 text decoded from
// charset. Multi-byte sequences split across reads are handled.
func NewDecodingReader(r io.Reader, charset string) (io.Reader, error) {
	enc, err := LookupCharset(charset)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// ResolveCharset picks the charset used to decode a response body: the
// charset parameter of Content-Type, then a Content-Encoding value that
// names a charset, then fallback.
func ResolveCharset(contentType, contentEncoding, fallback string) string {
	if cs := contentTypeCharset(contentType); cs != "" {
		return cs
	}
	if contentEncoding != "" {
		if _, err := LookupCharset(contentEncoding); err == nil {
			return contentEncoding
		}
	}
	return fallback
}

// contentTypeCharset returns the charset parameter of a Content-Type value.
// Headers that mime.ParseMediaType rejects are scanned parameter by
// parameter instead.
func contentTypeCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		return strings.TrimSpace(params["charset"])
	}

	_, rest, _ := strings.Cut(contentType, ";")
	for _, param := range strings.Split(rest, ";") {
		key, value, ok := strings.Cut(param, "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "charset") {
			continue
		}
		return strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return ""
}
