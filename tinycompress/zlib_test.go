package tinycompress

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func inflate(t *testing.T, stream []byte) []byte {
	t.Helper()
	r, err := zlib.NewReader(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("zlib header rejected: %v", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("inflate: %v", err)
	}
	return out
}

func TestWriterRoundTrip(t *testing.T) {
	big := bytes.Repeat([]byte(`{"clockless_send oid=%c":7}`), 3000) // spans two stored blocks
	for _, data := range [][]byte{nil, []byte("x"), []byte(`{"version":"gopixel"}`), big} {
		var buf bytes.Buffer
		w := NewWriter(&buf, len(data))
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
		if err := w.Close(); err != nil {
			t.Fatal(err)
		}
		if got := inflate(t, buf.Bytes()); !bytes.Equal(got, data) {
			t.Fatalf("round trip of %d bytes returned %d bytes", len(data), len(got))
		}
	}
}

func TestCompressMatchesWriter(t *testing.T) {
	data := []byte("identify_response offset=%u data=%*s")
	var buf bytes.Buffer
	w := NewWriter(&buf, 0)
	w.Write(data[:10])
	w.Write(data[10:])
	w.Close()
	if !bytes.Equal(buf.Bytes(), Compress(data)) {
		t.Fatal("Compress and Writer disagree")
	}
}

func TestWriteAfterClose(t *testing.T) {
	w := NewWriter(io.Discard, 0)
	w.Close()
	if _, err := w.Write([]byte{1}); err == nil {
		t.Fatal("write after Close succeeded")
	}
}
