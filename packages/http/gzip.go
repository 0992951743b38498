package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	// MaxCompressedSize bounds the payload FetchCompressed reads. Anything
	// past it is dropped without error.
	MaxCompressedSize = 1024 * 10000

	gzipChunkSize = 1024
)

// DecodeGzip decompresses a GZIP stream and decodes the result from
// charset. No partial text is returned: any read failure yields "" and an
// error matching ErrDecompression (or ErrUnsupportedCharset).
func DecodeGzip(data []byte, charset string) (string, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer zr.Close()

	text, err := NewDecodingReader(zr, charset)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	buf := make([]byte, gzipChunkSize)
	for {
		n, err := text.Read(buf)
		sb.Write(buf[:n])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrDecompression, err)
		}
	}
	return sb.String(), nil
}
