package core

import "strconv"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// FrameEvent is one entry of the frame event ring, kept for post-mortem
// dumps.
type FrameEvent struct {
	Type   uint8
	OID    uint8
	Clock  uint32
	Value1 uint32
	Value2 uint32
}

// Frame event types
const (
	EvtConfigure  = 1 // strip configured: v1 pin, v2 bytes
	EvtFrameStart = 2 // v1 pixels
	EvtFrameDone  = 3 // v1 elapsed us
	EvtOverrun    = 4 // frame abandoned after an interrupt window
	EvtRefused    = 5 // send refused: v1 1 shutdown, 2 init failed
	EvtShutdown   = 6 // strip blanked by shutdown
)

const FrameRingSize = 32

var (
	debugPrintln DebugWriter = func(string) {}

	// Off by default; set_debug enable=1 turns it on.
	debugEnabled bool

	frameRing     [FrameRingSize]FrameEvent
	frameRingHead uint8

	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(string) {}
	}
	debugPrintln = writer
}

func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the worker draining DebugAsync messages.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go func() {
		for msg := range debugChan {
			debugPrintln(msg)
		}
	}()
}

// DebugPrintln writes synchronously when debug output is enabled.
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// DebugAsync queues msg and drops it when the queue is full.
func DebugAsync(msg string) {
	if !debugEnabled || debugChan == nil {
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordFrameEvent stores an event in the ring. It never blocks and never
// allocates, so it is safe right around a frame.
func RecordFrameEvent(typ, oid uint8, v1, v2 uint32) {
	frameRing[frameRingHead] = FrameEvent{Type: typ, OID: oid, Clock: GetTime(), Value1: v1, Value2: v2}
	frameRingHead = (frameRingHead + 1) % FrameRingSize
}

// FrameEvents returns the recorded events, oldest first.
func FrameEvents() []FrameEvent {
	var out []FrameEvent
	for i := uint8(0); i < FrameRingSize; i++ {
		evt := frameRing[(frameRingHead+i)%FrameRingSize]
		if evt.Type != 0 {
			out = append(out, evt)
		}
	}
	return out
}

func eventName(typ uint8) string {
	switch typ {
	case EvtConfigure:
		return "CONFIGURE"
	case EvtFrameStart:
		return "FRAME_START"
	case EvtFrameDone:
		return "FRAME_DONE"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtRefused:
		return "REFUSED"
	case EvtShutdown:
		return "SHUTDOWN"
	}
	return "UNKNOWN"
}

// DumpFrameRing writes the ring through the debug writer regardless of the
// enable flag.
func DumpFrameRing() {
	debugPrintln("[FRAMES] === Frame Ring Dump ===")
	for _, evt := range FrameEvents() {
		debugPrintln("[FRAMES] " + eventName(evt.Type) +
			" oid=" + strconv.Itoa(int(evt.OID)) +
			" clock=" + strconv.FormatUint(uint64(evt.Clock), 10) +
			" v1=" + strconv.FormatUint(uint64(evt.Value1), 10) +
			" v2=" + strconv.FormatUint(uint64(evt.Value2), 10))
	}
	debugPrintln("[FRAMES] === End Dump ===")
}

func ClearFrameRing() {
	frameRing = [FrameRingSize]FrameEvent{}
	frameRingHead = 0
}
