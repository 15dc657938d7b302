package core

// PixelSource feeds the frame driver one wire byte at a time. Slots are wire
// positions; the source handles colour order, brightness and dithering.
type PixelSource interface {
	// Has reports whether at least n pixels remain, the current one included.
	Has(n int) bool
	// Load returns the scaled byte for wire slot 0, 1 or 2 of the current pixel.
	Load(slot int) uint8
	// AdvanceAndLoad0 moves to the next pixel and returns its slot 0 byte.
	AdvanceAndLoad0() uint8
	// PreStepDithering primes slot 0 of the first pixel.
	PreStepDithering()
	// StepDithering flips the dither offsets once per pixel.
	StepDithering()
}

// Dither selects the temporal dithering applied to scaled bytes.
type Dither uint8

const (
	DitherNone Dither = iota
	// DitherBinary spreads the precision lost by scaling over an 8 frame
	// cycle.
	DitherBinary
)

const ditherBits = 3

// PixelCursor walks packed RGB bytes or a single repeated colour. The zero
// value is empty.
type PixelCursor struct {
	data    []byte
	solid   [3]byte
	pos     int
	advance int
	left    int

	order ColorOrder
	scale [3]uint8 // by source channel
	d, e  [3]uint8 // dither offset and range, by source channel

	frame uint8 // dither cycle counter, carried across frames
}

// Reset points the cursor at packed pixels (3 bytes per pixel, source
// order). Trailing bytes that do not form a pixel are ignored.
func (p *PixelCursor) Reset(pixels []byte, order ColorOrder, scale RGB, dither Dither) {
	p.data = pixels
	p.pos = 0
	p.advance = 3
	p.left = len(pixels) / 3
	p.setup(order, scale, dither)
}

// ResetSolid makes the cursor yield count copies of c.
func (p *PixelCursor) ResetSolid(c RGB, count int, order ColorOrder, scale RGB, dither Dither) {
	p.solid = [3]byte{c.R, c.G, c.B}
	p.data = p.solid[:]
	p.pos = 0
	p.advance = 0
	p.left = max(count, 0)
	p.setup(order, scale, dither)
}

func (p *PixelCursor) setup(order ColorOrder, scale RGB, dither Dither) {
	p.order = order
	p.scale = [3]uint8{scale.R, scale.G, scale.B}
	if dither == DitherBinary {
		p.initBinaryDithering()
		return
	}
	p.d = [3]uint8{}
	p.e = [3]uint8{}
}

func (p *PixelCursor) initBinaryDithering() {
	p.frame = (p.frame + 1) & (1<<ditherBits - 1)

	// Bit reverse the counter into the top bits, then centre it.
	var q uint8
	if p.frame&0x01 != 0 {
		q |= 0x80
	}
	if p.frame&0x02 != 0 {
		q |= 0x40
	}
	if p.frame&0x04 != 0 {
		q |= 0x20
	}
	q += 1 << (7 - ditherBits)

	for i, s := range p.scale {
		var e uint8
		if s != 0 {
			e = uint8(256/uint16(s) + 1)
		}
		d := scale8(q, e)
		if d != 0 {
			d--
		}
		if e != 0 {
			e--
		}
		p.d[i], p.e[i] = d, e
	}
}

func (p *PixelCursor) Has(n int) bool { return p.left >= n }

// Load returns 0 when no pixel is left.
func (p *PixelCursor) Load(slot int) uint8 {
	if p.left <= 0 {
		return 0
	}
	ch := p.order.Slot(slot)
	b := p.data[p.pos+ch]
	if b != 0 {
		b = qadd8(b, p.d[ch])
	}
	return scale8(b, p.scale[ch])
}

func (p *PixelCursor) AdvanceAndLoad0() uint8 {
	p.left--
	p.pos += p.advance
	return p.Load(0)
}

func (p *PixelCursor) PreStepDithering() {
	ch := p.order.Slot(0)
	p.d[ch] = p.e[ch] - p.d[ch]
}

func (p *PixelCursor) StepDithering() {
	for i := range p.d {
		p.d[i] = p.e[i] - p.d[i]
	}
}
