package conduit

import "sync"

// connPool recycles *Conn values (minus their buffer and channel, which are
// connection-specific) the way the retrieval corpus recycles its
// request/response-writer pairs across keep-alive connections.
var connPool = sync.Pool{
	New: func() any { return &Conn{} },
}

// AcquireConn returns a pooled, reset Conn wired to ch and buf. Pair with
// ReleaseConn once the connection is done (after Close).
func AcquireConn(ch Channel, buf []byte, opts ...Option) (*Conn, error) {
	if len(buf) == 0 {
		return nil, ErrInvalidBuffer
	}
	c := connPool.Get().(*Conn)
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	*c = Conn{
		ch:        ch,
		opts:      o,
		buf:       buf,
		keepAlive: o.keepAliveByDflt,
		maxAccum:  len(buf) * 8,
	}
	return c, nil
}

// ReleaseConn returns c to the pool. c must not be used afterward.
func ReleaseConn(c *Conn) {
	connPool.Put(c)
}

// Close releases the underlying channel. It does not return c to any pool;
// call ReleaseConn separately if c was obtained via AcquireConn.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.ch.Close()
}
