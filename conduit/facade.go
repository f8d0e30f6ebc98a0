package conduit

import (
	"context"

	"github.com/intuitivelabs/bytescase"
	"github.com/valyala/bytebufferpool"
)

// Conn is the SocketFacade: it composes a Channel with the ingress and
// egress state machines, owns the shared per-connection flags the C++
// original keeps on one object, and guards against out-of-order operation
// invocation. One Conn serves exactly one underlying connection; it is not
// safe for concurrent ingress calls, nor for concurrent egress calls, but
// one ingress and one egress operation may run concurrently on two
// goroutines (see the concurrency notes in SPEC_FULL.md §5).
type Conn struct {
	ch   Channel
	opts Options

	buf  []byte // fixed-size, caller-owned
	used int     // buf[:used] holds unparsed bytes

	parser pushParser

	ingress IngressState
	egress  EgressState
	flags   readyFlags

	http11    bool
	keepAlive bool
	useTrailers bool

	// header/trailer accumulation spanning callback boundaries ("last_header")
	pendingKey   []byte
	pendingVal   []byte
	pendingHasValue bool

	urlAccum []byte

	// output targets for the in-flight ReadRequest/ReadSomeBody/ReadTrailers call
	outMethod *MethodID
	outPath   *[]byte
	outMsg    *Message

	versionRejected bool

	// maxAccum bounds the total size the URL and pending header key/value
	// accumulators (which, unlike the wire buffer itself, grow by append and
	// are never compacted) are allowed to reach before a peer is judged to
	// be sending an oversized request line or header field. Without this,
	// a peer could grow these slices without bound even though the wire
	// buffer they're copied out of stays fixed-size, defeating the whole
	// point of never growing the ingress buffer.
	maxAccum int

	scratch *bytebufferpool.ByteBuffer

	closed bool
}

// New constructs a Conn driving ch over buf. buf must be non-empty; it is
// never grown or replaced for the lifetime of the Conn.
func New(ch Channel, buf []byte, opts ...Option) (*Conn, error) {
	if len(buf) == 0 {
		return nil, ErrInvalidBuffer
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	c := &Conn{
		ch:        ch,
		opts:      o,
		buf:       buf,
		keepAlive: o.keepAliveByDflt,
		maxAccum:  len(buf) * 8,
	}
	return c, nil
}

// accumExceeded reports whether any of the unbounded-by-append accumulators
// (URL, pending header field, pending header value) has grown past this
// Conn's limit, the signal drive() uses to raise ErrBufferExhausted for a
// peer that never terminates a request line or header field.
func (c *Conn) accumExceeded() bool {
	return len(c.urlAccum) > c.maxAccum ||
		len(c.pendingKey) > c.maxAccum ||
		len(c.pendingVal) > c.maxAccum
}

// InnerChannel exposes the underlying Channel, for callers that need to
// close it directly or hand it off to a post-Upgrade continuation (see
// the wsupgrade package). The engine takes no further part in the
// connection once a caller does this.
func (c *Conn) InnerChannel() Channel { return c.ch }

// IngressState reports the current read-side state.
func (c *Conn) IngressState() IngressState { return c.ingress }

// EgressState reports the current write-side state.
func (c *Conn) EgressState() EgressState { return c.egress }

// KeepAlive reports whether the most recently parsed request (or the
// configured default, before any request) wants the connection kept open.
func (c *Conn) KeepAlive() bool { return c.keepAlive }

func (c *Conn) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.readTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.readTimeout)
}

func (c *Conn) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.writeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.writeTimeout)
}

// ---- parserSink implementation -------------------------------------------

func (c *Conn) onMessageBegin() {
	c.urlAccum = c.urlAccum[:0]
	c.pendingHasValue = false
	c.pendingKey = c.pendingKey[:0]
	c.pendingVal = c.pendingVal[:0]
	c.useTrailers = false
	c.versionRejected = false
}

func (c *Conn) onURL(b []byte) {
	c.urlAccum = append(c.urlAccum, b...)
}

// commitPending flushes the accumulated (pendingKey, pendingVal) pair into
// either the message headers or trailers, depending on useTrailers — the
// same commit point the original driver calls "last_header". Ingress field
// names are normalized to lowercase here, at the wire boundary, before
// Header ever sees them: Header itself stores a key exactly as given
// (egress callers rely on that to keep their own casing), so any
// normalization for parsed requests has to happen on the way in.
func (c *Conn) commitPending() {
	if !c.pendingHasValue || c.outMsg == nil {
		return
	}
	dst := &c.outMsg.Headers
	if c.useTrailers {
		dst = &c.outMsg.Trailers
	}
	for i, b := range c.pendingKey {
		c.pendingKey[i] = bytescase.ByteToLower(b)
	}
	dst.Add(string(c.pendingKey), string(c.pendingVal))
	c.pendingKey = c.pendingKey[:0]
	c.pendingVal = c.pendingVal[:0]
	c.pendingHasValue = false
}

func (c *Conn) onHeaderField(b []byte) {
	if c.pendingHasValue {
		c.commitPending()
	}
	c.pendingKey = append(c.pendingKey, b...)
}

func (c *Conn) onHeaderValue(b []byte) {
	c.pendingHasValue = true
	c.pendingVal = append(c.pendingVal, b...)
}

func (c *Conn) onHeadersComplete(major, minor int, method MethodID, keepAlive bool) error {
	if major != 1 {
		c.versionRejected = true
		return errVersionRejected
	}
	c.http11 = minor >= 1
	c.commitPending()
	c.useTrailers = true
	c.keepAlive = keepAlive
	c.flags |= flagReady

	if c.outMethod != nil {
		*c.outMethod = method
	}
	if c.outPath != nil {
		*c.outPath = append((*c.outPath)[:0], c.urlAccum...)
	}
	return nil
}

func (c *Conn) onBody(b []byte, final bool) {
	if c.outMsg != nil && len(b) > 0 {
		c.outMsg.Body = append(c.outMsg.Body, b...)
	}
	c.flags |= flagData
	if final {
		c.flags |= flagEnd
	}
}

func (c *Conn) onMessageComplete(upgrade bool) error {
	c.commitPending()
	c.flags |= flagEnd
	if upgrade {
		return errAbortUpgrade
	}
	return nil
}
