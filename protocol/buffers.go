package protocol

// InputBuffer is a view over received bytes that a parser consumes from the
// front.
type InputBuffer interface {
	Data() []byte
	Available() int
	Pop(n int)
}

// OutputBuffer is an append-only sink that allows back-patching, which the
// framer needs to fill in the length byte after the payload is known.
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	Update(pos int, val byte)
	DataSince(pos int) []byte
}

// SliceInputBuffer adapts a plain byte slice to InputBuffer.
type SliceInputBuffer struct {
	data []byte
}

func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte   { return s.data }
func (s *SliceInputBuffer) Available() int { return len(s.data) }

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is a fixed MessageMax sized OutputBuffer. Writes past the end
// are truncated rather than grown so it never allocates after construction.
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	s.pos += copy(s.buf[s.pos:], data)
}

func (s *ScratchOutput) CurPosition() int { return s.pos }

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos >= 0 && pos < s.pos {
		s.buf[pos] = val
	}
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos < 0 || pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns everything written since the last Reset.
func (s *ScratchOutput) Result() []byte { return s.buf[:s.pos] }

// Reset discards the accumulated output.
func (s *ScratchOutput) Reset() { s.pos = 0 }

// FifoBuffer is a byte ring used between the serial reader and the parser.
type FifoBuffer struct {
	buf   []byte
	head  int // next byte to read
	count int
	flat  []byte // scratch for Data when the content wraps
}

// NewFifoBuffer returns a ring holding at most capacity-1 bytes, matching the
// classic read==write-means-empty ring the firmware was sized against.
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{buf: make([]byte, capacity)}
}

// Write stores as much of data as fits and returns the stored count.
func (f *FifoBuffer) Write(data []byte) int {
	n := 0
	for _, b := range data {
		if f.Free() == 0 {
			break
		}
		f.buf[(f.head+f.count)%len(f.buf)] = b
		f.count++
		n++
	}
	return n
}

// Read moves up to len(data) bytes out of the ring.
func (f *FifoBuffer) Read(data []byte) int {
	n := 0
	for n < len(data) && f.count > 0 {
		data[n] = f.buf[f.head]
		f.head = (f.head + 1) % len(f.buf)
		f.count--
		n++
	}
	return n
}

func (f *FifoBuffer) Available() int { return f.count }

func (f *FifoBuffer) Free() int { return len(f.buf) - 1 - f.count }

func (f *FifoBuffer) IsEmpty() bool { return f.count == 0 }

// Data returns the buffered bytes as one contiguous slice. When the content
// wraps it is copied into an internal scratch slice that stays valid until
// the next call.
func (f *FifoBuffer) Data() []byte {
	end := f.head + f.count
	if end <= len(f.buf) {
		return f.buf[f.head:end]
	}
	if cap(f.flat) < f.count {
		f.flat = make([]byte, len(f.buf))
	}
	f.flat = f.flat[:f.count]
	n := copy(f.flat, f.buf[f.head:])
	copy(f.flat[n:], f.buf[:end-len(f.buf)])
	return f.flat
}

// Pop discards n bytes from the front.
func (f *FifoBuffer) Pop(n int) {
	if n > f.count {
		n = f.count
	}
	f.head = (f.head + n) % len(f.buf)
	f.count -= n
}

func (f *FifoBuffer) Reset() {
	f.head = 0
	f.count = 0
}
