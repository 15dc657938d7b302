// Package tinycompress writes zlib streams made of stored DEFLATE blocks.
// Nothing is compressed; the point is a valid zlib container the host can
// inflate, built without the allocation heavy compress/flate encoder.
package tinycompress

import (
	"encoding/binary"
	"hash/adler32"
	"io"
)

// maxStored is the largest payload a stored DEFLATE block can carry.
const maxStored = 0xFFFF

// Writer buffers everything until Close, then emits the stream. The buffer
// is sized up front so firmware builds do not reallocate mid write.
type Writer struct {
	w      io.Writer
	buf    []byte
	closed bool
}

// NewWriter returns a Writer emitting to w. sizeHint pre-allocates the
// input buffer and may be zero.
func NewWriter(w io.Writer, sizeHint int) *Writer {
	return &Writer{w: w, buf: make([]byte, 0, sizeHint)}
}

func (z *Writer) Write(p []byte) (int, error) {
	if z.closed {
		return 0, io.ErrClosedPipe
	}
	z.buf = append(z.buf, p...)
	return len(p), nil
}

// Close writes the header, one stored block per 64KiB of input and the
// Adler-32 trailer.
func (z *Writer) Close() error {
	if z.closed {
		return nil
	}
	z.closed = true

	// CMF 0x78 (deflate, 32K window), FLG 0x01 makes the header a multiple of 31.
	if _, err := z.w.Write([]byte{0x78, 0x01}); err != nil {
		return err
	}
	data := z.buf
	for {
		n := min(len(data), maxStored)
		var hdr [5]byte
		if n == len(data) {
			hdr[0] = 0x01 // BFINAL, BTYPE stored
		}
		binary.LittleEndian.PutUint16(hdr[1:], uint16(n))
		binary.LittleEndian.PutUint16(hdr[3:], ^uint16(n))
		if _, err := z.w.Write(hdr[:]); err != nil {
			return err
		}
		if _, err := z.w.Write(data[:n]); err != nil {
			return err
		}
		data = data[n:]
		if len(data) == 0 {
			break
		}
	}
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], adler32.Checksum(z.buf))
	_, err := z.w.Write(sum[:])
	return err
}

// Compress wraps data in a complete zlib stream.
func Compress(data []byte) []byte {
	var out sliceWriter
	out.b = make([]byte, 0, len(data)+len(data)/maxStored*5+11)
	z := Writer{w: &out, buf: data}
	_ = z.Close()
	return out.b
}

type sliceWriter struct{ b []byte }

func (s *sliceWriter) Write(p []byte) (int, error) {
	s.b = append(s.b, p...)
	return len(p), nil
}
