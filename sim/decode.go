package sim

import (
	"errors"
	"fmt"

	"gopixel/core"
)

var ErrMalformed = errors.New("sim: malformed pulse train")

// Pulse is one high interval on the data pin.
type Pulse struct {
	Rise, Fall uint64
}

func (p Pulse) Width() uint64 { return p.Fall - p.Rise }

// Pulses extracts the high intervals of mask from edges. The pin must start
// and end low.
func Pulses(edges []Edge, mask uint32) ([]Pulse, error) {
	var (
		out  []Pulse
		high bool
		rise uint64
	)
	for _, e := range edges {
		level := e.Value&mask != 0
		if level == high {
			continue
		}
		if level {
			rise = e.Tick
		} else {
			out = append(out, Pulse{Rise: rise, Fall: e.Tick})
		}
		high = level
	}
	if high {
		return nil, fmt.Errorf("%w: line left high", ErrMalformed)
	}
	return out, nil
}

// Frame is a decoded pulse train.
type Frame struct {
	Bytes  []byte
	Pulses []Pulse
}

// Decode turns edges into bytes. Every pulse must be exactly the short or
// long width and every slot exactly one period; padding bits must be zero.
func Decode(edges []Edge, mask uint32, ticks core.TimerTicks, bitsPerByte int) (Frame, error) {
	pulses, err := Pulses(edges, mask)
	if err != nil {
		return Frame{}, err
	}
	if len(pulses)%bitsPerByte != 0 {
		return Frame{}, fmt.Errorf("%w: %d bits is not a whole number of %d bit bytes", ErrMalformed, len(pulses), bitsPerByte)
	}
	f := Frame{Pulses: pulses, Bytes: make([]byte, 0, len(pulses)/bitsPerByte)}
	var b byte
	for i, p := range pulses {
		if i > 0 {
			if gap := p.Rise - pulses[i-1].Rise; gap != uint64(ticks.Period()) {
				return Frame{}, fmt.Errorf("%w: slot %d lasted %d ticks, want %d", ErrMalformed, i-1, gap, ticks.Period())
			}
		}
		var bit byte
		switch p.Width() {
		case uint64(ticks.Short()):
		case uint64(ticks.Long()):
			bit = 1
		default:
			return Frame{}, fmt.Errorf("%w: bit %d high for %d ticks", ErrMalformed, i, p.Width())
		}
		pos := i % bitsPerByte
		switch {
		case pos < 8:
			b = b<<1 | bit
		case bit != 0:
			return Frame{}, fmt.Errorf("%w: padding bit %d set", ErrMalformed, i)
		}
		if pos == bitsPerByte-1 {
			f.Bytes = append(f.Bytes, b)
			b = 0
		}
	}
	return f, nil
}
