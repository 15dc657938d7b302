package protocol

import "testing"

func TestCRC16KnownValues(t *testing.T) {
	cases := []struct {
		data []byte
		want uint16
	}{
		{nil, 0xFFFF},
		{[]byte("123456789"), 0x6F91},
		{[]byte{MessageLengthMin, MessageDest}, 0x9E81},
	}
	for _, tc := range cases {
		if got := CRC16(tc.data); got != tc.want {
			t.Errorf("CRC16(%v) = 0x%04X, want 0x%04X", tc.data, got, tc.want)
		}
	}
}

func TestCRC16DetectsSingleBitFlip(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	ref := CRC16(data)
	for i := range data {
		for bit := 0; bit < 8; bit++ {
			data[i] ^= 1 << bit
			if CRC16(data) == ref {
				t.Errorf("flip of byte %d bit %d not detected", i, bit)
			}
			data[i] ^= 1 << bit
		}
	}
}
