package bodyenc

import (
	"bytes"
	"io"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestBrotliChunkWriterRoundTrip(t *testing.T) {
	var chunks [][]byte
	emit := func(chunk []byte) error {
		chunks = append(chunks, append([]byte(nil), chunk...))
		return nil
	}

	bw := NewBrotliChunkWriter(emit, 5)
	payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, to give brotli something to compress")
	if _, err := bw.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := bw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatalf("no chunks emitted")
	}

	var compressed bytes.Buffer
	for _, c := range chunks {
		compressed.Write(c)
	}

	got, err := io.ReadAll(brotli.NewReader(&compressed))
	if err != nil {
		t.Fatalf("reading decompressed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("round trip = %q, want %q", got, payload)
	}
}

func TestSelectEncodingPrefersBrotli(t *testing.T) {
	cases := []struct {
		accept string
		want   string
	}{
		{"gzip, br", "br"},
		{"br;q=1.0, gzip;q=0.8", "br"},
		{"gzip", "gzip"},
		{"deflate", ""},
		{"", ""},
		{"identity, gzip;q=0.5", "gzip"},
	}
	for _, tc := range cases {
		if got := SelectEncoding(tc.accept); got != tc.want {
			t.Errorf("SelectEncoding(%q) = %q, want %q", tc.accept, got, tc.want)
		}
	}
}
