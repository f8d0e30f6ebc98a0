// Package wsupgrade completes an RFC 6455 websocket handshake on a channel
// that a conduit.Conn has already stepped aside from. It is only ever
// invoked after ReadRequest has returned a request carrying
// "Upgrade: websocket" — the protocol engine itself never negotiates or
// speaks this protocol, matching the Non-goal that bars proactive upgrade
// handling inside the core engine.
package wsupgrade

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net"
	"strings"

	"github.com/yourusername/conduit/conduit"
)

const websocketGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

var (
	ErrNotWebSocket        = errors.New("wsupgrade: not a websocket upgrade request")
	ErrBadWebSocketVersion = errors.New("wsupgrade: unsupported Sec-WebSocket-Version")
	ErrBadWebSocketKey     = errors.New("wsupgrade: missing or invalid Sec-WebSocket-Key")
)

// ComputeAcceptKey derives the Sec-WebSocket-Accept value for a client's
// Sec-WebSocket-Key, per RFC 6455 §4.2.2.
func ComputeAcceptKey(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(websocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// Handshake validates req as a websocket upgrade request and, if valid,
// writes the "101 Switching Protocols" response directly on the inner
// channel of conn and returns a frame-level Conn for what follows. conn's
// IngressState must already reflect a fully read request (normally
// IngressMessageReady, immediately after ReadRequest); Handshake does not
// touch conn's ingress/egress state machines again.
func Handshake(ctx context.Context, c *conduit.Conn, req *conduit.Message) (*Conn, error) {
	connVal, _ := req.Headers.Get("connection")
	if !strings.Contains(strings.ToLower(connVal), "upgrade") {
		return nil, ErrNotWebSocket
	}
	upgradeVal, _ := req.Headers.Get("upgrade")
	if !strings.EqualFold(strings.TrimSpace(upgradeVal), "websocket") {
		return nil, ErrNotWebSocket
	}
	if v, _ := req.Headers.Get("sec-websocket-version"); v != "13" {
		return nil, ErrBadWebSocketVersion
	}
	key, ok := req.Headers.Get("sec-websocket-key")
	if !ok || key == "" {
		return nil, ErrBadWebSocketKey
	}

	accept := ComputeAcceptKey(key)
	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"

	ch := c.InnerChannel()
	if _, err := ch.WriteAll(ctx, net.Buffers{[]byte(resp)}); err != nil {
		return nil, err
	}

	nc, ok := ch.(*conduit.NetChannel)
	if !ok {
		return nil, ErrNotWebSocket
	}
	return newConn(nc.Conn()), nil
}
