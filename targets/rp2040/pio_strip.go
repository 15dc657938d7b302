//go:build rp2040

package main

import (
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"

	"gopixel/core"
)

// pioStrip shifts pixels out of a PIO state machine, so interrupts stay
// enabled for the whole frame.
type pioStrip struct {
	ws     *piolib.WS2812B
	order  core.ColorOrder
	dither core.Dither
	frame  frameTimer
	cursor core.PixelCursor
	raw    []uint32
}

func newPIOStrip(cfg core.StripConfig) (core.Strip, error) {
	if !fixedTimingOK(cfg.Timing) {
		return nil, errFixedTiming
	}
	if !cfg.Order.Valid() {
		return nil, core.ErrColorOrder
	}
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	ws, err := piolib.NewWS2812B(sm, machine.Pin(cfg.Pin))
	if err != nil {
		sm.Unclaim()
		return nil, err
	}
	// DMA is optional; without a free channel WriteRaw feeds the FIFO.
	_ = ws.EnableDMA(true)
	return &pioStrip{
		ws:    ws,
		order: cfg.Order,
		frame: newFrameTimer(cfg.Timing),
		raw:   make([]uint32, 0, cfg.Size/3),
	}, nil
}

func (s *pioStrip) SetDither(d core.Dither) { s.dither = d }

func (s *pioStrip) Show(pixels []byte, scale core.RGB) error {
	s.cursor.Reset(pixels, s.order, scale, s.dither)
	return s.write()
}

func (s *pioStrip) ShowColor(color core.RGB, count int, scale core.RGB) error {
	s.cursor.ResetSolid(color, count, s.order, scale, s.dither)
	return s.write()
}

func (s *pioStrip) Clear(count int) error {
	return s.ShowColor(core.RGB{}, count, core.RGB{})
}

// write packs every pixel in wire order, most significant byte first, the
// layout the WS2812B program shifts out.
func (s *pioStrip) write() error {
	c := &s.cursor
	s.raw = s.raw[:0]
	c.PreStepDithering()
	b0 := c.Load(0)
	for c.Has(1) {
		c.StepDithering()
		b1 := c.Load(1)
		b2 := c.Load(2)
		s.raw = append(s.raw, uint32(b0)<<24|uint32(b1)<<16|uint32(b2)<<8)
		b0 = c.AdvanceAndLoad0()
	}

	s.frame.wait.Wait()
	start := core.Micros()
	if err := s.ws.WriteRaw(s.raw); err != nil {
		return err
	}
	s.frame.finish(start, len(s.raw)*3)
	return nil
}
