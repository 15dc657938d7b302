//go:build rp2040

package main

import (
	"machine"
	"runtime/interrupt"

	"tinygo.org/x/drivers/ws2812"

	"gopixel/core"
)

// bitbangStrip uses the cycle counted ws2812 driver. It needs neither a
// timer nor a state machine but holds interrupts off for the whole frame.
type bitbangStrip struct {
	dev    ws2812.Device
	order  core.ColorOrder
	dither core.Dither
	frame  frameTimer
	cursor core.PixelCursor
}

func newBitbangStrip(cfg core.StripConfig) (core.Strip, error) {
	if !fixedTimingOK(cfg.Timing) {
		return nil, errFixedTiming
	}
	if !cfg.Order.Valid() {
		return nil, core.ErrColorOrder
	}
	if err := gpioDriver.ConfigureOutput(cfg.Pin); err != nil {
		return nil, err
	}
	return &bitbangStrip{
		dev:   ws2812.New(machine.Pin(cfg.Pin)),
		order: cfg.Order,
		frame: newFrameTimer(cfg.Timing),
	}, nil
}

func (s *bitbangStrip) SetDither(d core.Dither) { s.dither = d }

func (s *bitbangStrip) Show(pixels []byte, scale core.RGB) error {
	s.cursor.Reset(pixels, s.order, scale, s.dither)
	return s.write()
}

func (s *bitbangStrip) ShowColor(color core.RGB, count int, scale core.RGB) error {
	s.cursor.ResetSolid(color, count, s.order, scale, s.dither)
	return s.write()
}

func (s *bitbangStrip) Clear(count int) error {
	return s.ShowColor(core.RGB{}, count, core.RGB{})
}

func (s *bitbangStrip) write() error {
	c := &s.cursor
	s.frame.wait.Wait()

	state := interrupt.Disable()
	var err error
	c.PreStepDithering()
	b0 := c.Load(0)
	for c.Has(1) && err == nil {
		c.StepDithering()
		err = s.dev.WriteByte(b0)
		if err == nil {
			err = s.dev.WriteByte(c.Load(1))
		}
		if err == nil {
			err = s.dev.WriteByte(c.Load(2))
		}
		b0 = c.AdvanceAndLoad0()
	}
	interrupt.Restore(state)

	// The driver returns after the last bit, so the gap starts now.
	s.frame.wait.Mark()
	return err
}
