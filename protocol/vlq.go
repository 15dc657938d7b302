package protocol

import "errors"

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// vlqBounds are the signed ranges that still fit in 1..4 output bytes.
var vlqBounds = [4]struct{ lo, hi int32 }{
	{-(1 << 26), 3 << 26},
	{-(1 << 19), 3 << 19},
	{-(1 << 12), 3 << 12},
	{-(1 << 5), 3 << 5},
}

// EncodeVLQInt writes v most significant group first, as Klipper does.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	n := 0
	for i, b := range vlqBounds {
		if v < b.lo || v >= b.hi {
			shift := uint(28 - 7*i)
			buf[n] = byte((v>>shift)&0x7F) | 0x80
			n++
		}
	}
	buf[n] = byte(v & 0x7F)
	output.Output(buf[:n+1])
}

// EncodeVLQUint writes an unsigned value; the encoding is shared with ints.
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt reads one value from the front of *data and advances it.
func DecodeVLQInt(data *[]byte) (int32, error) {
	buf := *data
	if len(buf) == 0 {
		return 0, ErrBufferTooSmall
	}
	c := uint32(buf[0])
	v := c & 0x7F
	if c&0x60 == 0x60 {
		v |= ^uint32(0x1F)
	}
	i := 1
	for ; c&0x80 != 0; i++ {
		if i >= len(buf) {
			return 0, ErrBufferTooSmall
		}
		if i > 4 {
			return 0, ErrInvalidVLQ
		}
		c = uint32(buf[i])
		v = v<<7 | c&0x7F
	}
	*data = buf[i:]
	return int32(v), nil
}

// DecodeVLQUint reads one unsigned value from the front of *data.
func DecodeVLQUint(data *[]byte) (uint32, error) {
	v, err := DecodeVLQInt(data)
	return uint32(v), err
}

// EncodeVLQBytes writes a length prefixed byte string (the %*s format).
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes reads a length prefixed byte string. The result aliases
// the input slice.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	n, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if uint32(len(*data)) < n {
		return nil, ErrBufferTooSmall
	}
	out := (*data)[:n]
	*data = (*data)[n:]
	return out, nil
}

// EncodeVLQString writes s as a length prefixed byte string.
func EncodeVLQString(output OutputBuffer, s string) {
	EncodeVLQBytes(output, []byte(s))
}

// DecodeVLQString reads a length prefixed byte string as a string.
func DecodeVLQString(data *[]byte) (string, error) {
	b, err := DecodeVLQBytes(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VLQUintSize returns how many bytes EncodeVLQUint produces for v. Host code
// uses it to budget pixel payloads against MessagePayloadMax.
func VLQUintSize(v uint32) int {
	n := 1
	for _, b := range vlqBounds {
		if int32(v) < b.lo || int32(v) >= b.hi {
			n++
		}
	}
	return n
}
