package conduit

import (
	"context"
	"errors"
	"io"
)

// ReadRequest reads and parses the next request line and header block into
// *method, *path and msg. Precondition: IngressState() == IngressEmpty.
// On success, IngressState() == IngressMessageReady.
func (c *Conn) ReadRequest(ctx context.Context, method *MethodID, path *[]byte, msg *Message) error {
	if c.ingress != IngressEmpty {
		return ErrOutOfOrder
	}
	msg.Reset()
	c.outMethod = method
	c.outPath = path
	c.outMsg = msg
	c.flags = 0

	if err := c.drive(ctx, func() bool { return c.flags&flagReady != 0 }); err != nil {
		return err
	}
	c.ingress = IngressMessageReady
	c.outMethod = nil
	c.outPath = nil
	return nil
}

// ReadSomeBody delivers the next available slice of body bytes into
// msg.Body (the caller typically Resets msg between calls to receive just
// the increment). Precondition: IngressState() == IngressMessageReady.
// Transitions to IngressBodyReady once the body (and, for a chunked
// message, its trailers) has been fully received.
func (c *Conn) ReadSomeBody(ctx context.Context, msg *Message) error {
	if c.ingress != IngressMessageReady {
		return ErrOutOfOrder
	}
	c.outMsg = msg
	c.flags &^= flagData

	if err := c.drive(ctx, func() bool { return c.flags&(flagData|flagEnd) != 0 }); err != nil {
		return err
	}
	if c.flags&flagEnd != 0 {
		c.ingress = IngressBodyReady
	}
	return nil
}

// ReadTrailers exposes any trailers received after a chunked body's final
// chunk. By the time IngressState() == IngressBodyReady, a chunked
// message's trailer section (if any) has already been parsed as part of
// reaching that state — this call performs no further I/O, it only hands
// back what the engine already collected and resets the cycle for the next
// request. Precondition: IngressState() == IngressBodyReady.
func (c *Conn) ReadTrailers(ctx context.Context, msg *Message) error {
	if c.ingress != IngressBodyReady {
		return ErrOutOfOrder
	}
	if msg != c.outMsg && c.outMsg != nil {
		msg.Trailers = c.outMsg.Trailers
	}
	c.ingress = IngressEmpty
	c.outMsg = nil
	c.flags = 0
	return nil
}

// drive feeds the ingress buffer to the parser, refilling it from the
// channel as needed, until done reports true or a fatal condition occurs.
// This is the re-entrant driver loop of SPEC_FULL.md §4.1: compact after
// every parse step, never grow the buffer, and route the three
// parser-abort outcomes (version rejection, Upgrade step-aside, a plain
// grammar error) to their distinct handling.
func (c *Conn) drive(ctx context.Context, done func() bool) error {
	for {
		consumed, err := c.parser.execute(c, c.buf[:c.used])
		if consumed > 0 {
			copy(c.buf, c.buf[consumed:c.used])
			c.used -= consumed
		}

		switch {
		case err == nil:
			if done() {
				return nil
			}
			if c.accumExceeded() {
				c.opts.logger.Warnf("conduit: request line or header field exceeded accumulation limit")
				_ = c.ch.Close()
				c.closed = true
				return ErrBufferExhausted
			}

		case errors.Is(err, errAbortUpgrade):
			c.parser.reset()
			if done() {
				return nil
			}

		case errors.Is(err, errVersionRejected):
			c.opts.logger.Warnf("conduit: rejecting unsupported HTTP major version")
			c.writeCanned505(ctx)
			_ = c.ch.Close()
			c.closed = true
			return ErrParsingError

		default:
			c.opts.logger.Warnf("conduit: parse error, closing connection: %v", err)
			_ = c.ch.Close()
			c.closed = true
			return ErrParsingError
		}

		if c.used >= len(c.buf) {
			c.opts.logger.Warnf("conduit: ingress buffer exhausted")
			return ErrBufferExhausted
		}

		rctx, cancel := c.readCtx(ctx)
		n, rerr := c.ch.ReadSome(rctx, c.buf[c.used:])
		cancel()
		if n > 0 {
			c.used += n
		}
		if rerr != nil {
			return rerr
		}
		if n == 0 {
			return io.EOF
		}
	}
}
