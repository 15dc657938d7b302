// Package protocol implements the Klipper serial framing used between the
// gopixel host tools and the LED firmware.
//
// A message block is laid out as:
//
//	len | seq | payload ... | crc_hi | crc_lo | 0x7E
//
// where len counts the whole block, seq carries MessageDest in its high
// nibble and the payload is a sequence of VLQ encoded command ids and
// arguments.
package protocol

// Version is the wire protocol implementation version reported by the tools.
const Version = "0.2.0"

const (
	MessageMax = 512 // Scratch output capacity, room for several blocks

	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64

	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1

	MessageValueSync = 0x7E
	MessageDest      = 0x10
	MessageSeqMask   = 0x0F

	// MessagePayloadMax is the largest payload that fits a single block.
	MessagePayloadMax = MessageLengthMax - MessageLengthMin
)

// nextSeq returns the sequence byte following seq, keeping the dest nibble.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}

// appendTrailer appends the CRC and sync byte for block to dst.
func appendTrailer(dst []byte, block []byte) []byte {
	crc := CRC16(block)
	return append(dst, byte(crc>>8), byte(crc), MessageValueSync)
}

// scanBlock inspects the start of data for a complete message block.
//
// It returns the block length when a valid block is present, zero when more
// bytes are needed, and -1 when the data at the front cannot be a block and
// the reader must resynchronise.
func scanBlock(data []byte) int {
	if len(data) < MessageLengthMin {
		return 0
	}
	n := int(data[MessagePositionLen])
	if n < MessageLengthMin || n > MessageLengthMax {
		return -1
	}
	if data[MessagePositionSeq]&^MessageSeqMask != MessageDest {
		return -1
	}
	if len(data) < n {
		return 0
	}
	if data[n-MessageTrailerSync] != MessageValueSync {
		return -1
	}
	got := uint16(data[n-MessageTrailerCRC])<<8 | uint16(data[n-MessageTrailerCRC+1])
	if got != CRC16(data[:n-MessageTrailerSize]) {
		return -1
	}
	return n
}

// skipToSync drops everything up to and including the next sync byte. It
// reports false when no sync byte was found.
func skipToSync(data []byte) ([]byte, bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}
