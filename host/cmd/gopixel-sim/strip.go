//go:build !tinygo

package main

import (
	"gopixel/core"
	"gopixel/sim"
)

const pin = 0

// simStrip is a Controller wired to a virtual timer and port.
type simStrip struct {
	timer *sim.Timer
	port  *sim.Port
	ctrl  *core.Controller[*sim.Port, *sim.Timer]
	bits  int
	order core.ColorOrder
}

func newSimStrip(freq uint32, timing core.Timing, order core.ColorOrder) (*simStrip, error) {
	tm := sim.NewTimer(freq)
	port := sim.NewPort(tm)
	ctrl := core.NewController(port, 1<<pin, tm, timing, order)
	if err := ctrl.Init(); err != nil {
		return nil, err
	}
	return &simStrip{timer: tm, port: port, ctrl: ctrl, bits: timing.BitsPerByte(), order: order}, nil
}

// show runs one frame and decodes the waveform back to packed RGB.
func (s *simStrip) show(pixels []byte, scale core.RGB) ([]byte, sim.Frame, error) {
	if err := s.ctrl.Show(pixels, scale); err != nil {
		return nil, sim.Frame{}, err
	}
	frame, err := sim.Decode(s.port.Take(), 1<<pin, s.ctrl.Ticks(), s.bits)
	if err != nil {
		return nil, frame, err
	}
	return unorder(frame.Bytes, s.order), frame, nil
}

// unorder maps wire slots back to R, G, B.
func unorder(wire []byte, order core.ColorOrder) []byte {
	rgb := make([]byte, len(wire))
	for i := 0; i+2 < len(wire); i += 3 {
		for slot := 0; slot < 3; slot++ {
			rgb[i+order.Slot(slot)] = wire[i+slot]
		}
	}
	return rgb
}
