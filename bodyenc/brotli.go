package bodyenc

import (
	"io"

	"github.com/andybalholm/brotli"
)

// BrotliChunkWriter brotli-compresses bytes written to it and emits the
// compressed output as successive chunks via emit.
type BrotliChunkWriter struct {
	bw *brotli.Writer
}

// NewBrotliChunkWriter returns a writer at the given quality (1-11;
// brotli.DefaultCompression, which is 6, is used if quality is 0 or out
// of range).
func NewBrotliChunkWriter(emit ChunkEmitter, quality int) *BrotliChunkWriter {
	if quality <= 0 || quality > 11 {
		quality = brotli.DefaultCompression
	}
	bw := brotli.NewWriterLevel(emitWriter{emit}, quality)
	return &BrotliChunkWriter{bw: bw}
}

func (w *BrotliChunkWriter) Write(p []byte) (int, error) { return w.bw.Write(p) }

// Close flushes and finalizes the brotli stream.
func (w *BrotliChunkWriter) Close() error { return w.bw.Close() }

var _ io.WriteCloser = (*BrotliChunkWriter)(nil)

// SelectEncoding picks a content encoding from an Accept-Encoding header
// value, preferring brotli over gzip when both are offered. It returns
// "" if neither is offered. Quality values are ignored: a token listed
// with q=0 still counts as offered.
func SelectEncoding(acceptEncoding string) string {
	hasBr, hasGzip := false, false
	for _, tok := range splitCSV(acceptEncoding) {
		if semi := indexByte(tok, ';'); semi >= 0 {
			tok = trimSpaceASCII(tok[:semi])
		}
		switch tok {
		case "br":
			hasBr = true
		case "gzip":
			hasGzip = true
		}
	}
	switch {
	case hasBr:
		return "br"
	case hasGzip:
		return "gzip"
	default:
		return ""
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			tok := trimSpaceASCII(s[start:i])
			if tok != "" {
				out = append(out, tok)
			}
			start = i + 1
		}
	}
	return out
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func trimSpaceASCII(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t') {
		j--
	}
	return s[i:j]
}
