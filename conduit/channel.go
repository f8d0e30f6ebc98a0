package conduit

import (
	"context"
	"net"
	"time"
)

// noDeadline clears a previously-set deadline (the zero Time value).
var noDeadline time.Time

// Channel is the asynchronous byte-channel contract the engine is driven
// over. It is deliberately narrow: the engine never needs anything from
// its transport beyond "read some bytes", "write this buffer list
// atomically" and "close".
type Channel interface {
	ReadSome(ctx context.Context, dst []byte) (int, error)
	WriteAll(ctx context.Context, bufs net.Buffers) (int64, error)
	Close() error
}

// NetChannel adapts any net.Conn to Channel. Deadlines, if configured via
// WithReadTimeout/WithWriteTimeout, are applied here — the protocol engine
// itself stays timeout-agnostic.
type NetChannel struct {
	conn net.Conn
}

// NewNetChannel wraps conn with no deadlines configured; ReadSome and
// WriteAll take each call's deadline from its ctx, which Conn bounds when
// WithReadTimeout/WithWriteTimeout are set.
func NewNetChannel(conn net.Conn) *NetChannel {
	return &NetChannel{conn: conn}
}

func (c *NetChannel) ReadSome(ctx context.Context, dst []byte) (int, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(dl)
	} else {
		_ = c.conn.SetReadDeadline(noDeadline)
	}
	return c.conn.Read(dst)
}

func (c *NetChannel) WriteAll(ctx context.Context, bufs net.Buffers) (int64, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(dl)
	} else {
		_ = c.conn.SetWriteDeadline(noDeadline)
	}
	return bufs.WriteTo(c.conn)
}

func (c *NetChannel) Close() error {
	return c.conn.Close()
}

// Conn exposes the wrapped net.Conn, for post-Upgrade handoff.
func (c *NetChannel) Conn() net.Conn { return c.conn }
