package wsupgrade

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/yourusername/conduit/conduit"
)

// ComputeAcceptKey's RFC 6455 §4.2.2 worked example.
func TestComputeAcceptKeyRFCVector(t *testing.T) {
	got := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ==")
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if got != want {
		t.Errorf("ComputeAcceptKey = %q, want %q", got, want)
	}
}

func newUpgradeRequest(extra map[string]string) *conduit.Message {
	var msg conduit.Message
	msg.Headers.Add("connection", "Upgrade")
	msg.Headers.Add("upgrade", "websocket")
	msg.Headers.Add("sec-websocket-version", "13")
	msg.Headers.Add("sec-websocket-key", "dGhlIHNhbXBsZSBub25jZQ==")
	for k, v := range extra {
		msg.Headers.Set(k, v)
	}
	return &msg
}

func TestHandshakeRejectsMissingConnectionHeader(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c, err := conduit.New(conduit.NewNetChannel(server), make([]byte, 4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var req conduit.Message
	req.Headers.Add("upgrade", "websocket")
	req.Headers.Add("sec-websocket-version", "13")
	req.Headers.Add("sec-websocket-key", "dGhlIHNhbXBsZSBub25jZQ==")

	_, err = Handshake(context.Background(), c, &req)
	if err != ErrNotWebSocket {
		t.Errorf("err = %v, want ErrNotWebSocket", err)
	}
}

func TestHandshakeRejectsBadVersion(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c, err := conduit.New(conduit.NewNetChannel(server), make([]byte, 4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := newUpgradeRequest(map[string]string{"sec-websocket-version": "8"})
	_, err = Handshake(context.Background(), c, req)
	if err != ErrBadWebSocketVersion {
		t.Errorf("err = %v, want ErrBadWebSocketVersion", err)
	}
}

func TestHandshakeRejectsMissingKey(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c, err := conduit.New(conduit.NewNetChannel(server), make([]byte, 4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var req conduit.Message
	req.Headers.Add("connection", "Upgrade")
	req.Headers.Add("upgrade", "websocket")
	req.Headers.Add("sec-websocket-version", "13")

	_, err = Handshake(context.Background(), c, &req)
	if err != ErrBadWebSocketKey {
		t.Errorf("err = %v, want ErrBadWebSocketKey", err)
	}
}

func TestHandshakeWritesSwitchingProtocolsResponse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	c, err := conduit.New(conduit.NewNetChannel(server), make([]byte, 4096))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	req := newUpgradeRequest(nil)

	done := make(chan error, 1)
	go func() {
		_, err := Handshake(context.Background(), c, req)
		done <- err
	}()

	r := bufio.NewReader(client)
	statusLine, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading status line: %v", err)
	}
	if strings.TrimRight(statusLine, "\r\n") != "HTTP/1.1 101 Switching Protocols" {
		t.Errorf("status line = %q", statusLine)
	}

	var acceptKey string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading headers: %v", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ": "); ok && strings.EqualFold(k, "sec-websocket-accept") {
			acceptKey = v
		}
	}
	if want := ComputeAcceptKey("dGhlIHNhbXBsZSBub25jZQ=="); acceptKey != want {
		t.Errorf("Sec-WebSocket-Accept = %q, want %q", acceptKey, want)
	}

	if err := <-done; err != nil {
		t.Fatalf("Handshake: %v", err)
	}
}
