package conduit

import (
	"context"
	"net"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// canned505 is the fixed response emitted when a peer's request declares an
// HTTP major version other than 1. Its bytes, including the exact
// Content-Length, are part of the wire contract and are never assembled
// through the Header/VisitAll path that the other responses use.
var canned505 = []byte(
	"HTTP/1.1 505 HTTP Version Not Supported\r\n" +
		"Content-Length: 48\r\n" +
		"Connection: close\r\n\r\n" +
		"This server only supports HTTP/1.0 and HTTP/1.1\n",
)

var scratchPool bytebufferpool.Pool

// acquireScratch checks out this connection's scratch buffer from the
// shared pool. Only one egress operation may be in flight on a Conn at a
// time (the caller's contract per SPEC_FULL.md §5), so the buffer is never
// referenced by two operations at once, matching the single-in-flight
// reuse of the status-code prefix / chunk-length scratch region this
// engine is modeled on.
func (c *Conn) acquireScratch() *bytebufferpool.ByteBuffer {
	if c.scratch == nil {
		c.scratch = scratchPool.Get()
	}
	c.scratch.Reset()
	return c.scratch
}

func (c *Conn) releaseScratch() {
	if c.scratch != nil {
		scratchPool.Put(c.scratch)
		c.scratch = nil
	}
}

// WriteContinue emits the literal "100 Continue" interim response.
// Precondition: EgressState() ∈ {EgressEmpty, EgressEnd}.
func (c *Conn) WriteContinue(ctx context.Context) error {
	if !(c.egress == EgressEmpty || c.egress == EgressEnd) {
		return ErrOutOfOrder
	}
	if _, err := c.writeAll(ctx, net.Buffers{[]byte("HTTP/1.1 100 Continue\r\n\r\n")}); err != nil {
		return err
	}
	c.egress = EgressWroteContinue
	return nil
}

// WriteResponse emits a complete, framed response (status line, headers,
// an engine-inserted content-length, and body) as a single scatter-gather
// write. Precondition: EgressState() ∈ {EgressEmpty, EgressEnd,
// EgressWroteContinue}.
func (c *Conn) WriteResponse(ctx context.Context, status int, reason string, msg *Message) error {
	if !(c.egress == EgressEmpty || c.egress == EgressEnd || c.egress == EgressWroteContinue) {
		return ErrOutOfOrder
	}

	scratch := c.acquireScratch()
	defer c.releaseScratch()

	writeStatusLine(scratch, c.http11, status, reason)
	msg.Headers.VisitAll(func(k, v string) {
		scratch.WriteString(k)
		scratch.WriteString(": ")
		scratch.WriteString(v)
		scratch.WriteString("\r\n")
	})
	scratch.WriteString("content-length: ")
	scratch.WriteString(strconv.Itoa(len(msg.Body)))
	scratch.WriteString("\r\n\r\n")

	bufs := net.Buffers{scratch.B}
	if len(msg.Body) > 0 {
		bufs = append(bufs, msg.Body)
	}
	if _, err := c.writeAll(ctx, bufs); err != nil {
		return err
	}
	c.egress = EgressEnd
	return nil
}

// WriteMetadata begins a streamed response: status line and headers,
// marked for chunked transfer, with no body yet. Refuses
// ErrNativeStreamUnsupported on a peer that only declared HTTP/1.0 — a
// streamed response has no valid framing on that version.
// Precondition: EgressState() ∈ {EgressEmpty, EgressEnd, EgressWroteContinue}.
func (c *Conn) WriteMetadata(ctx context.Context, status int, reason string, msg *Message) error {
	if !(c.egress == EgressEmpty || c.egress == EgressEnd || c.egress == EgressWroteContinue) {
		return ErrOutOfOrder
	}
	if !c.http11 {
		return ErrNativeStreamUnsupported
	}

	scratch := c.acquireScratch()
	defer c.releaseScratch()

	writeStatusLine(scratch, c.http11, status, reason)
	msg.Headers.VisitAll(func(k, v string) {
		scratch.WriteString(k)
		scratch.WriteString(": ")
		scratch.WriteString(v)
		scratch.WriteString("\r\n")
	})
	scratch.WriteString("transfer-encoding: chunked\r\n\r\n")

	if _, err := c.writeAll(ctx, net.Buffers{scratch.B}); err != nil {
		return err
	}
	c.egress = EgressChunkReady
	return nil
}

// Write emits one chunk of a streamed response. A zero-length chunk is a
// no-op (writing a zero-size chunk here would prematurely terminate the
// stream; use WriteEnd/WriteTrailers for that). Precondition:
// EgressState() == EgressChunkReady.
func (c *Conn) Write(ctx context.Context, chunk []byte) error {
	if c.egress != EgressChunkReady {
		return ErrOutOfOrder
	}
	if len(chunk) == 0 {
		return nil
	}

	scratch := c.acquireScratch()
	defer c.releaseScratch()

	scratch.B = strconv.AppendInt(scratch.B, int64(len(chunk)), 16)
	scratch.WriteString("\r\n")

	_, err := c.writeAll(ctx, net.Buffers{scratch.B, chunk, []byte("\r\n")})
	return err
}

// WriteTrailers ends a streamed response with a trailer section.
// Precondition: EgressState() == EgressChunkReady.
func (c *Conn) WriteTrailers(ctx context.Context, trailers Header) error {
	if c.egress != EgressChunkReady {
		return ErrOutOfOrder
	}

	scratch := c.acquireScratch()
	defer c.releaseScratch()

	scratch.WriteString("0\r\n")
	trailers.VisitAll(func(k, v string) {
		scratch.WriteString(k)
		scratch.WriteString(": ")
		scratch.WriteString(v)
		scratch.WriteString("\r\n")
	})
	scratch.WriteString("\r\n")

	if _, err := c.writeAll(ctx, net.Buffers{scratch.B}); err != nil {
		return err
	}
	c.egress = EgressEnd
	return nil
}

// WriteEnd ends a streamed response with no trailers.
// Precondition: EgressState() == EgressChunkReady.
func (c *Conn) WriteEnd(ctx context.Context) error {
	if c.egress != EgressChunkReady {
		return ErrOutOfOrder
	}
	if _, err := c.writeAll(ctx, net.Buffers{[]byte("0\r\n\r\n")}); err != nil {
		return err
	}
	c.egress = EgressEnd
	return nil
}

func (c *Conn) writeAll(ctx context.Context, bufs net.Buffers) (int64, error) {
	wctx, cancel := c.writeCtx(ctx)
	defer cancel()
	return c.ch.WriteAll(wctx, bufs)
}

func writeStatusLine(b *bytebufferpool.ByteBuffer, http11 bool, status int, reason string) {
	if http11 {
		b.WriteString("HTTP/1.1 ")
	} else {
		b.WriteString("HTTP/1.0 ")
	}
	b.B = strconv.AppendInt(b.B, int64(status), 10)
	b.WriteString(" ")
	b.WriteString(reason)
	b.WriteString("\r\n")
}

func (c *Conn) writeCanned505(ctx context.Context) {
	_, _ = c.writeAll(ctx, net.Buffers{canned505})
}
