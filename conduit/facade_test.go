package conduit

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel is an in-memory Channel: ReadSome hands out chunks from a
// preloaded queue one at a time (simulating reads arriving in arbitrary
// pieces across the wire), WriteAll appends every write to a buffer for
// later inspection.
type fakeChannel struct {
	chunks [][]byte
	pos    int
	cur    []byte // unread tail of chunks[pos-1], carried across short reads

	written bytes.Buffer
	closed  bool
}

func newFakeChannel(chunks ...[]byte) *fakeChannel {
	return &fakeChannel{chunks: chunks}
}

func (f *fakeChannel) ReadSome(ctx context.Context, dst []byte) (int, error) {
	if len(f.cur) == 0 {
		if f.pos >= len(f.chunks) {
			return 0, nil
		}
		f.cur = f.chunks[f.pos]
		f.pos++
	}
	n := copy(dst, f.cur)
	f.cur = f.cur[n:]
	return n, nil
}

func (f *fakeChannel) WriteAll(ctx context.Context, bufs net.Buffers) (int64, error) {
	var total int64
	for _, b := range bufs {
		n, _ := f.written.Write(b)
		total += int64(n)
	}
	return total, nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestNewRejectsEmptyBuffer(t *testing.T) {
	_, err := New(newFakeChannel(), nil)
	assert.ErrorIs(t, err, ErrInvalidBuffer)
}

func TestReadRequestSimpleGET(t *testing.T) {
	ch := newFakeChannel([]byte("GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var msg Message

	err = c.ReadRequest(context.Background(), &method, &path, &msg)
	require.NoError(t, err)

	assert.Equal(t, MethodGET, method)
	assert.Equal(t, "/hello", string(path))
	assert.Equal(t, IngressMessageReady, c.IngressState())
	host, ok := msg.Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
	assert.True(t, c.KeepAlive())
}

func TestReadRequestRejectsOutOfOrder(t *testing.T) {
	ch := newFakeChannel([]byte("GET / HTTP/1.1\r\n\r\n"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var msg Message
	require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &msg))

	err = c.ReadRequest(context.Background(), &method, &path, &msg)
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestReadRequestThenBodyIdentity(t *testing.T) {
	ch := newFakeChannel([]byte("POST /items HTTP/1.1\r\nContent-Length: 5\r\n\r\nhello"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var msg Message
	require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &msg))
	assert.Equal(t, MethodPOST, method)

	require.NoError(t, c.ReadSomeBody(context.Background(), &msg))
	assert.Equal(t, IngressBodyReady, c.IngressState())
	assert.Equal(t, "hello", string(msg.Body))

	var trailers Message
	require.NoError(t, c.ReadTrailers(context.Background(), &trailers))
	assert.Equal(t, IngressEmpty, c.IngressState())
}

func TestReadRequestChunkedBodyWithTrailers(t *testing.T) {
	raw := "POST /upload HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"4\r\nWiki\r\n5\r\npedia\r\n0\r\nX-Checksum: abc\r\n\r\n"
	ch := newFakeChannel([]byte(raw))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var msg Message
	require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &msg))

	require.NoError(t, c.ReadSomeBody(context.Background(), &msg))
	assert.Equal(t, "Wikipedia", string(msg.Body))
	assert.Equal(t, IngressBodyReady, c.IngressState())

	var trailers Message
	require.NoError(t, c.ReadTrailers(context.Background(), &trailers))
	checksum, ok := trailers.Trailers.Get("x-checksum")
	assert.True(t, ok)
	assert.Equal(t, "abc", checksum)
}

func TestReadRequestAcrossMultipleReads(t *testing.T) {
	ch := newFakeChannel(
		[]byte("GET /split HTTP/1.1\r\nHo"),
		[]byte("st: example.com\r\n\r\n"),
	)
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var msg Message
	require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &msg))
	assert.Equal(t, "/split", string(path))
	host, ok := msg.Headers.Get("host")
	assert.True(t, ok)
	assert.Equal(t, "example.com", host)
}

func TestReadRequestBufferExhausted(t *testing.T) {
	// The wire buffer itself is never the thing that overflows here: the
	// push parser forwards every URL byte to onURL as it scans, so the
	// buffer compacts back down after each read and c.used never
	// approaches len(c.buf). What actually has to be bounded is urlAccum,
	// which grows by append with no cap of its own. A URL far longer than
	// maxAccum (len(buf)*8), delivered in small pieces and never
	// terminated by a following space, must trip that bound instead of
	// hanging forever waiting for more data.
	longPath := "/" + strings.Repeat("x", 200)
	ch := newFakeChannel([]byte("GET " + longPath + " HTTP/1.1\r\n\r\n"))
	c, err := New(ch, make([]byte, 8))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var msg Message
	err = c.ReadRequest(context.Background(), &method, &path, &msg)
	assert.ErrorIs(t, err, ErrBufferExhausted)
	assert.True(t, ch.closed)
}

func TestReadRequestPipelinedOnOneConn(t *testing.T) {
	ch := newFakeChannel([]byte("GET /one HTTP/1.1\r\n\r\nGET /two HTTP/1.1\r\n\r\n"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	for _, want := range []string{"/one", "/two"} {
		var method MethodID
		var path []byte
		var msg Message
		require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &msg))
		assert.Equal(t, want, string(path))

		require.NoError(t, c.ReadSomeBody(context.Background(), &msg))
		var trailers Message
		require.NoError(t, c.ReadTrailers(context.Background(), &trailers))
	}
}

func TestWriteResponseSingleShot(t *testing.T) {
	ch := newFakeChannel()
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var resp Message
	resp.Headers.Add("content-type", "text/plain")
	resp.Body = []byte("hi")

	require.NoError(t, c.WriteResponse(context.Background(), 200, "OK", &resp))
	assert.Equal(t, EgressEnd, c.EgressState())

	out := ch.written.String()
	assert.Contains(t, out, "HTTP/1.1 200 OK\r\n")
	assert.Contains(t, out, "content-type: text/plain\r\n")
	assert.Contains(t, out, "content-length: 2\r\n")
	assert.Contains(t, out, "hi")
}

func TestWriteMetadataStreamedResponse(t *testing.T) {
	ch := newFakeChannel([]byte("GET / HTTP/1.1\r\n\r\n"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var req Message
	require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &req))

	var resp Message
	resp.Headers.Add("content-type", "application/octet-stream")
	require.NoError(t, c.WriteMetadata(context.Background(), 200, "OK", &resp))
	assert.Equal(t, EgressChunkReady, c.EgressState())

	require.NoError(t, c.Write(context.Background(), []byte("abc")))
	require.NoError(t, c.WriteEnd(context.Background()))
	assert.Equal(t, EgressEnd, c.EgressState())

	out := ch.written.String()
	assert.Contains(t, out, "transfer-encoding: chunked\r\n")
	assert.Contains(t, out, "3\r\nabc\r\n")
	assert.Contains(t, out, "0\r\n\r\n")
}

func TestWriteMetadataRefusedOnHTTP10(t *testing.T) {
	ch := newFakeChannel([]byte("GET / HTTP/1.0\r\n\r\n"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var req Message
	require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &req))
	assert.False(t, c.KeepAlive())

	var resp Message
	err = c.WriteMetadata(context.Background(), 200, "OK", &resp)
	assert.ErrorIs(t, err, ErrNativeStreamUnsupported)
	assert.Equal(t, EgressEmpty, c.EgressState())
}

func TestWriteResponseFramesHTTP10StatusLine(t *testing.T) {
	// WriteMetadata refuses a streamed response on HTTP/1.0, but
	// WriteResponse is the documented fallback and has no such guard — it
	// must still frame the status line for the version the peer actually
	// declared, not always HTTP/1.1.
	ch := newFakeChannel([]byte("GET / HTTP/1.0\r\n\r\n"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var req Message
	require.NoError(t, c.ReadRequest(context.Background(), &method, &path, &req))

	var resp Message
	resp.Body = []byte("hi")
	require.NoError(t, c.WriteResponse(context.Background(), 200, "OK", &resp))

	out := ch.written.String()
	assert.Contains(t, out, "HTTP/1.0 200 OK\r\n")
	assert.NotContains(t, out, "HTTP/1.1 200 OK\r\n")
}

func TestWriteOutOfOrderBeforeMetadata(t *testing.T) {
	ch := newFakeChannel()
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	err = c.Write(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestUnsupportedMajorVersionClosesWithCanned505(t *testing.T) {
	ch := newFakeChannel([]byte("GET / HTTP/2.0\r\n\r\n"))
	c, err := New(ch, make([]byte, 4096))
	require.NoError(t, err)

	var method MethodID
	var path []byte
	var msg Message
	err = c.ReadRequest(context.Background(), &method, &path, &msg)
	assert.ErrorIs(t, err, ErrParsingError)
	assert.True(t, ch.closed)
	assert.Contains(t, ch.written.String(), "505 HTTP Version Not Supported")
}
