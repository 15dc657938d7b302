package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrAckTimeout      = errors.New("ack timeout")
	ErrNak             = errors.New("mcu rejected sequence")
	ErrBlockTooLong    = errors.New("command does not fit one message block")
)

// DefaultAckTimeout bounds how long SendCommand waits for the MCU.
const DefaultAckTimeout = 2 * time.Second

// ResponseHandler observes every response as it is decoded.
type ResponseHandler func(cmdID uint16, data *[]byte) error

// Response is one MCU message with its id already decoded.
type Response struct {
	Sequence uint8
	CmdID    uint16
	Args     []byte
}

// HostTransport is the host side of the link. Commands are sent one block at
// a time and each waits for its ACK before the next may go out.
type HostTransport struct {
	port io.ReadWriteCloser

	seq    atomic.Uint32
	synced atomic.Bool

	input     *FifoBuffer
	acks      chan uint8
	responses chan Response

	handlerMu sync.Mutex
	handler   ResponseHandler

	sendMu    sync.Mutex
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:      port,
		input:     NewFifoBuffer(1024),
		acks:      make(chan uint8, 4),
		responses: make(chan Response, 32),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	t.seq.Store(MessageDest)
	t.synced.Store(true)
	go t.readLoop()
	return t
}

func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, DefaultAckTimeout)
}

func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	seq := uint8(t.seq.Load())
	block, err := buildBlock(seq, cmdID, args)
	if err != nil {
		return err
	}

	// Stale ACKs from an earlier timeout would satisfy the wait below.
	for len(t.acks) > 0 {
		<-t.acks
	}

	if _, err := t.port.Write(block); err != nil {
		return fmt.Errorf("write command %d: %w", cmdID, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ack := <-t.acks:
		if ack != nextSeq(seq) {
			return fmt.Errorf("%w: sent 0x%02x, mcu expects 0x%02x", ErrNak, seq, ack)
		}
		t.seq.Store(uint32(ack))
		return nil
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrAckTimeout, timeout)
	case <-t.stop:
		return ErrTransportClosed
	}
}

func buildBlock(seq uint8, cmdID uint16, args func(output OutputBuffer)) ([]byte, error) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{0, seq})
	EncodeVLQUint(scratch, uint32(cmdID))
	if args != nil {
		args(scratch)
	}
	n := scratch.CurPosition() + MessageTrailerSize
	if n > MessageLengthMax {
		return nil, fmt.Errorf("%w: %d bytes", ErrBlockTooLong, n)
	}
	scratch.Update(MessagePositionLen, uint8(n))
	block := scratch.Result()
	return appendTrailer(append([]byte(nil), block...), block), nil
}

// WaitResponse returns the next response carrying cmdID. Responses with other
// ids that arrive first are discarded.
func (t *HostTransport) WaitResponse(cmdID uint16, timeout time.Duration) (Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case resp := <-t.responses:
			if resp.CmdID == cmdID {
				return resp, nil
			}
		case <-timer.C:
			return Response{}, fmt.Errorf("response %d: timeout after %v", cmdID, timeout)
		case <-t.stop:
			return Response{}, ErrTransportClosed
		}
	}
}

// ReceiveResponse returns the next response of any kind.
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Response, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-t.responses:
		return resp, nil
	case <-timer.C:
		return Response{}, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stop:
		return Response{}, ErrTransportClosed
	}
}

func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.handler = handler
	t.handlerMu.Unlock()
}

func (t *HostTransport) readLoop() {
	defer close(t.done)
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if n > 0 {
			t.input.Write(buf[:n])
			t.processMessages()
		}
		if err != nil {
			select {
			case <-t.stop:
				return
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	data := t.input.Data()
	for len(data) > 0 {
		if !t.synced.Load() {
			var ok bool
			if data, ok = skipToSync(data); ok {
				t.synced.Store(true)
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
		t.dispatch(data[MessagePositionSeq], data[MessageHeaderSize:n-MessageTrailerSize])
		data = data[n:]
	}
	if used := t.input.Available() - len(data); used > 0 {
		t.input.Pop(used)
	}
}

func (t *HostTransport) dispatch(seq uint8, payload []byte) {
	if len(payload) == 0 {
		select {
		case t.acks <- seq:
		default:
		}
		return
	}

	// A block may carry several messages; the payload is only valid until
	// the ring is popped.
	payload = append([]byte(nil), payload...)
	for len(payload) > 0 {
		id, err := DecodeVLQUint(&payload)
		if err != nil {
			return
		}
		args := payload

		t.handlerMu.Lock()
		handler := t.handler
		t.handlerMu.Unlock()
		if handler != nil {
			view := args
			if err := handler(uint16(id), &view); err == nil {
				args = args[:len(args)-len(view)]
				payload = view
			} else {
				payload = nil
			}
		} else {
			payload = nil
		}

		resp := Response{Sequence: seq, CmdID: uint16(id), Args: args}
		select {
		case t.responses <- resp:
		default:
			// Drop the oldest so a stalled reader never blocks the link.
			select {
			case <-t.responses:
			default:
			}
			t.responses <- resp
		}
	}
}

// Close stops the reader and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		err = t.port.Close()
		<-t.done
	})
	return err
}

// Reset forgets sequence state and any buffered traffic.
func (t *HostTransport) Reset() {
	t.synced.Store(true)
	t.seq.Store(MessageDest)
	for len(t.acks) > 0 {
		<-t.acks
	}
	for len(t.responses) > 0 {
		<-t.responses
	}
}

// Sequence returns the sequence the next command will carry.
func (t *HostTransport) Sequence() uint8 { return uint8(t.seq.Load()) }
