package builtin

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/htmlindex"
)

// Func computes a value from its literal arguments.
type Func func(args []string) (string, error)

type Registry struct {
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = funcUUID
	r.funcs["now"] = funcNow
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["randomString"] = funcRandomString
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["base64"] = funcBase64
	r.funcs["md5"] = funcMD5
	r.funcs["sha256"] = funcSHA256
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates an expression such as `urlEncode("a b", GBK)`. It returns
// false when the expression is not a call, names an unknown function, or
// the function fails.
func (r *Registry) Call(expr string) (string, bool) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return "", false
	}

	fn, ok := r.funcs[matches[1]]
	if !ok {
		return "", false
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	out, err := fn(args)
	if err != nil {
		return "", false
	}
	return out, true
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func arg(args []string, name string) (string, error) {
	if len(args) < 1 {
		return "", fmt.Errorf("%s: missing argument", name)
	}
	return args[0], nil
}

func funcUUID(_ []string) (string, error) {
	return uuid.NewString(), nil
}

func funcNow(_ []string) (string, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcTimestamp(_ []string) (string, error) {
	return strconv.FormatInt(time.Now().Unix(), 10), nil
}

func funcTimestampMs(_ []string) (string, error) {
	return strconv.FormatInt(time.Now().UnixMilli(), 10), nil
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) (string, error) {
	length := 16
	if len(args) >= 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return "", fmt.Errorf("randomString: invalid length %q", args[0])
		}
		length = v
	}

	result := make([]byte, length)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = alphanumeric[n.Int64()]
	}
	return string(result), nil
}

// funcURLEncode query-escapes its first argument. With a second argument
// the value is first converted to that charset, so that servers expecting
// e.g. GBK-encoded forms receive the right bytes.
func funcURLEncode(args []string) (string, error) {
	value, err := arg(args, "urlEncode")
	if err != nil {
		return "", err
	}
	if len(args) >= 2 && args[1] != "" {
		enc, err := htmlindex.Get(args[1])
		if err != nil {
			return "", fmt.Errorf("urlEncode: %w", err)
		}
		value, err = enc.NewEncoder().String(value)
		if err != nil {
			return "", fmt.Errorf("urlEncode: %w", err)
		}
	}
	return url.QueryEscape(value), nil
}

func funcURLDecode(args []string) (string, error) {
	value, err := arg(args, "urlDecode")
	if err != nil {
		return "", err
	}
	return url.QueryUnescape(value)
}

func funcBase64(args []string) (string, error) {
	value, err := arg(args, "base64")
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(value)), nil
}

func funcMD5(args []string) (string, error) {
	value, err := arg(args, "md5")
	if err != nil {
		return "", err
	}
	hash := md5.Sum([]byte(value))
	return hex.EncodeToString(hash[:]), nil
}

func funcSHA256(args []string) (string, error) {
	value, err := arg(args, "sha256")
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:]), nil
}
