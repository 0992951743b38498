package http

import (
	"slices"
	"strings"
)

// EncodeQuery appends params to rawURL as "?k1=v1&k2=v2". Keys and values
// are written verbatim; callers percent-encode them beforehand when needed.
// Pairs are emitted in key order. An empty map returns rawURL unchanged.
func EncodeQuery(rawURL string, params map[string]string) string {
	if len(params) == 0 {
		return rawURL
	}

	var b strings.Builder
	b.WriteString(rawURL)
	for i, key := range sortedKeys(params) {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(params[key])
	}
	return b.String()
}

// EncodeBody builds a form body "&k1=v1&k2=v2". Every pair, the first
// included, is prefixed with '&'; servers that parse form bodies ignore
// the empty leading field. An empty map yields "".
func EncodeBody(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}

	var b strings.Builder
	for _, key := range sortedKeys(params) {
		b.WriteByte('&')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(params[key])
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
