package wsupgrade

import (
	"encoding/binary"
	"errors"
	"io"
	"net"
)

// Opcodes, per RFC 6455 §5.2.
const (
	OpContinuation byte = 0x0
	OpText         byte = 0x1
	OpBinary       byte = 0x2
	OpClose        byte = 0x8
	OpPing         byte = 0x9
	OpPong         byte = 0xA
)

var ErrFrameTooLarge = errors.New("wsupgrade: frame payload exceeds limit")

// Conn is a minimal RFC 6455 frame reader/writer over the channel handed
// off by Handshake. It does not attempt fragmentation reassembly,
// extensions, or compression — those are left to a caller that needs them;
// this is the same "thin adapter, no protocol smarts beyond the wire
// shape" stance the core engine takes toward HTTP.
type Conn struct {
	ch       net.Conn
	maxFrame int64
}

func newConn(raw net.Conn) *Conn {
	return &Conn{ch: raw, maxFrame: 16 << 20}
}

// ReadMessage reads a single frame and returns its opcode and unmasked
// payload. Fragmented messages are not reassembled: each continuation
// frame comes back on its own call with OpContinuation.
func (c *Conn) ReadMessage() (opcode byte, payload []byte, err error) {
	var hdr [2]byte
	if _, err := io.ReadFull(c.ch, hdr[:]); err != nil {
		return 0, nil, err
	}
	opcode = hdr[0] & 0x0F
	masked := hdr[1]&0x80 != 0
	length := int64(hdr[1] & 0x7F)

	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(c.ch, ext[:]); err != nil {
			return 0, nil, err
		}
		length = int64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(c.ch, ext[:]); err != nil {
			return 0, nil, err
		}
		length = int64(binary.BigEndian.Uint64(ext[:]))
	}
	if length > c.maxFrame {
		return 0, nil, ErrFrameTooLarge
	}

	var key [4]byte
	if masked {
		if _, err := io.ReadFull(c.ch, key[:]); err != nil {
			return 0, nil, err
		}
	}

	payload = make([]byte, length)
	if _, err := io.ReadFull(c.ch, payload); err != nil {
		return 0, nil, err
	}
	if masked {
		maskBytes(payload, key)
	}
	return opcode, payload, nil
}

// WriteMessage writes a single unfragmented server-to-client frame.
// Server frames are never masked (RFC 6455 §5.1).
func (c *Conn) WriteMessage(opcode byte, payload []byte) error {
	var hdr []byte
	first := byte(0x80) | (opcode & 0x0F) // FIN=1

	switch {
	case len(payload) < 126:
		hdr = []byte{first, byte(len(payload))}
	case len(payload) <= 0xFFFF:
		hdr = make([]byte, 4)
		hdr[0], hdr[1] = first, 126
		binary.BigEndian.PutUint16(hdr[2:], uint16(len(payload)))
	default:
		hdr = make([]byte, 10)
		hdr[0], hdr[1] = first, 127
		binary.BigEndian.PutUint64(hdr[2:], uint64(len(payload)))
	}

	if _, err := c.ch.Write(hdr); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := c.ch.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying connection without sending a close frame;
// callers that want a clean RFC 6455 close handshake should WriteMessage
// an OpClose frame first.
func (c *Conn) Close() error { return c.ch.Close() }
