package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestVLQKnownEncodings(t *testing.T) {
	cases := []struct {
		v    int32
		want []byte
	}{
		{0, []byte{0x00}},
		{95, []byte{0x5F}},
		{96, []byte{0x80, 0x60}},
		{-1, []byte{0x7F}},
		{-32, []byte{0x60}},
		{-33, []byte{0xFF, 0x5F}},
		{1000, []byte{0x87, 0x68}},
	}
	for _, tc := range cases {
		out := NewScratchOutput()
		EncodeVLQInt(out, tc.v)
		if !bytes.Equal(out.Result(), tc.want) {
			t.Errorf("EncodeVLQInt(%d) = % x, want % x", tc.v, out.Result(), tc.want)
		}
		data := tc.want
		got, err := DecodeVLQInt(&data)
		if err != nil || got != tc.v || len(data) != 0 {
			t.Errorf("DecodeVLQInt(% x) = %d, %v (rest %d)", tc.want, got, err, len(data))
		}
	}
}

func TestVLQRoundTripSizes(t *testing.T) {
	for _, v := range []uint32{0, 127, 128, 1 << 14, 1 << 21, 1 << 28, 0xFFFFFFFF, 16_000_000} {
		out := NewScratchOutput()
		EncodeVLQUint(out, v)
		if n := len(out.Result()); n != VLQUintSize(v) {
			t.Errorf("VLQUintSize(%d) = %d, encoder wrote %d", v, VLQUintSize(v), n)
		}
		data := out.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil || got != v {
			t.Errorf("round trip %d: got %d, %v", v, got, err)
		}
	}
}

func TestVLQDecodeErrorsLeaveInput(t *testing.T) {
	cases := []struct {
		in   []byte
		want error
	}{
		{nil, ErrBufferTooSmall},
		{[]byte{0x80}, ErrBufferTooSmall},
		{[]byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}, ErrInvalidVLQ},
	}
	for _, tc := range cases {
		data := tc.in
		if _, err := DecodeVLQUint(&data); !errors.Is(err, tc.want) {
			t.Errorf("DecodeVLQUint(% x) err = %v, want %v", tc.in, err, tc.want)
		}
		if len(data) != len(tc.in) {
			t.Errorf("DecodeVLQUint(% x) consumed input on error", tc.in)
		}
	}
}

func TestVLQBytesAndStrings(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQBytes(out, []byte{0xFF, 0x00, 0x10})
	EncodeVLQString(out, "clockless")
	EncodeVLQBytes(out, nil)

	data := out.Result()
	b, err := DecodeVLQBytes(&data)
	if err != nil || !bytes.Equal(b, []byte{0xFF, 0x00, 0x10}) {
		t.Fatalf("DecodeVLQBytes = % x, %v", b, err)
	}
	s, err := DecodeVLQString(&data)
	if err != nil || s != "clockless" {
		t.Fatalf("DecodeVLQString = %q, %v", s, err)
	}
	b, err = DecodeVLQBytes(&data)
	if err != nil || len(b) != 0 || len(data) != 0 {
		t.Fatalf("empty bytes = % x, %v, rest %d", b, err, len(data))
	}
}

func TestVLQBytesTruncated(t *testing.T) {
	data := []byte{0x05, 1, 2}
	if _, err := DecodeVLQBytes(&data); !errors.Is(err, ErrBufferTooSmall) {
		t.Fatalf("err = %v, want ErrBufferTooSmall", err)
	}
}
