package protocol

import "sync/atomic"

// CommandHandler decodes and executes one command. It must consume exactly
// its own arguments from *data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the MCU side of the link: it parses host blocks, dispatches
// their commands, acknowledges every block and frames responses.
type Transport struct {
	synced  atomic.Bool
	nextSeq atomic.Uint32 // sequence expected from the host, 0x10..0x1F

	output  OutputBuffer
	handler CommandHandler

	onReset func() // host restarted its sequence
	onFlush func() // push the ACK out before any response
}

func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{output: output, handler: handler}
	t.synced.Store(true)
	t.nextSeq.Store(MessageDest)
	return t
}

// Receive consumes every complete block available in input.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	for len(data) > 0 {
		if !t.synced.Load() {
			var ok bool
			if data, ok = skipToSync(data); ok {
				t.synced.Store(true)
				t.encodeAckNak()
			}
			continue
		}
		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}
		n := scanBlock(data)
		if n == 0 {
			break
		}
		if n < 0 {
			t.synced.Store(false)
			continue
		}
		t.handleBlock(data[MessagePositionSeq], data[MessageHeaderSize:n-MessageTrailerSize])
		data = data[n:]
	}
	if used := input.Available() - len(data); used > 0 {
		input.Pop(used)
	}
}

func (t *Transport) handleBlock(seq uint8, frame []byte) {
	expected := uint8(t.nextSeq.Load())
	if seq == MessageDest && expected != MessageDest {
		t.nextSeq.Store(MessageDest)
		expected = MessageDest
		if t.onReset != nil {
			t.onReset()
		}
	}
	if seq == expected {
		t.nextSeq.Store(uint32(nextSeq(seq)))
		_ = t.parseFrame(frame)
	}
	// A mismatched sequence still gets an ACK; carrying the expected
	// sequence makes it a NAK for the host.
	t.encodeAckNak()
}

// parseFrame dispatches every command in frame. A panicking handler drops
// the link out of sync instead of taking the firmware down.
func (t *Transport) parseFrame(frame []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.synced.Store(false)
		}
	}()
	for len(frame) > 0 {
		id, err := DecodeVLQUint(&frame)
		if err != nil {
			t.synced.Store(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(id), &frame); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transport) encodeAckNak() {
	seq := uint8(t.nextSeq.Load())
	block := []byte{MessageLengthMin, seq}
	t.output.Output(appendTrailer(block, block))
	if t.onFlush != nil {
		t.onFlush()
	}
}

// EncodeFrame frames whatever body writes as one block. Responses reuse the
// current sequence; they never advance it.
func (t *Transport) EncodeFrame(body func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(t.nextSeq.Load())})
	body(t.output)
	t.output.Update(start, uint8(len(t.output.DataSince(start))+MessageTrailerSize))
	t.output.Output(appendTrailer(nil, t.output.DataSince(start)))
}

// SendCommand frames a response message with the given id and arguments.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.synced.Store(true)
	t.nextSeq.Store(MessageDest)
	if t.onReset != nil {
		t.onReset()
	}
}

func (t *Transport) SetResetCallback(fn func()) { t.onReset = fn }

func (t *Transport) SetFlushCallback(fn func()) { t.onFlush = fn }
