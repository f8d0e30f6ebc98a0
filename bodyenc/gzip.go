// Package bodyenc provides optional chunked-body content encoders that a
// caller may layer on top of a conduit.Conn's streamed egress path. The
// protocol engine itself has no notion of compression; a caller that wants
// Content-Encoding: gzip or br sets that header itself via WriteMetadata
// and then writes through one of these encoders instead of calling
// Conn.Write directly.
package bodyenc

import (
	"io"

	"github.com/klauspost/compress/gzip"
)

// ChunkEmitter is satisfied by (*conduit.Conn).Write with ctx bound by a
// closure, letting these encoders stay free of any import-cycle on
// conduit.
type ChunkEmitter func(chunk []byte) error

// emitWriter adapts a ChunkEmitter to io.Writer for compress/gzip's sake.
type emitWriter struct{ emit ChunkEmitter }

func (w emitWriter) Write(p []byte) (int, error) {
	if err := w.emit(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// GzipChunkWriter gzip-compresses bytes written to it and emits the
// compressed output as successive chunks via emit.
type GzipChunkWriter struct {
	gz *gzip.Writer
}

// NewGzipChunkWriter returns a writer that compresses at the given
// klauspost/compress gzip level (gzip.DefaultCompression if 0).
func NewGzipChunkWriter(emit ChunkEmitter, level int) (*GzipChunkWriter, error) {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	gz, err := gzip.NewWriterLevel(emitWriter{emit}, level)
	if err != nil {
		return nil, err
	}
	return &GzipChunkWriter{gz: gz}, nil
}

func (w *GzipChunkWriter) Write(p []byte) (int, error) { return w.gz.Write(p) }

// Close flushes and finalizes the gzip stream, emitting any trailing
// chunk(s). It does not end the streamed response itself — the caller
// still calls WriteTrailers/WriteEnd on the underlying Conn.
func (w *GzipChunkWriter) Close() error { return w.gz.Close() }

var _ io.WriteCloser = (*GzipChunkWriter)(nil)
