//go:build rp2040

package main

import (
	"errors"
	"time"

	"gopixel/core"
)

var errFixedTiming = errors.New("clockless: backend only drives 800 kHz WS2812 timing")

// ws2812Period is the one bit period the PIO program and the cycle counted
// driver produce.
const ws2812Period = 1250 * time.Nanosecond

// fixedTimingOK reports whether t can be served by a backend with hard
// coded WS2812 timing.
func fixedTimingOK(t core.Timing) bool {
	d := t.Period() - ws2812Period
	return t.ExtraBits == 0 && d <= core.TimingTolerance && d >= -core.TimingTolerance
}

// newPWMStrip is the timer backend with the concrete port and timer types,
// so the bit loop makes no interface calls.
func newPWMStrip(cfg core.StripConfig) (core.Strip, error) {
	if err := gpioDriver.ConfigureOutput(cfg.Pin); err != nil {
		return nil, err
	}
	_, mask, err := gpioDriver.FastPort(cfg.Pin)
	if err != nil {
		return nil, err
	}
	c := core.NewController(bank0, mask, pulseTimer, cfg.Timing, cfg.Order)
	if err := c.Init(); err != nil {
		return nil, err
	}
	return c, nil
}

// frameTimer paces a backend that finishes writing before the strip has
// latched: the reset gap counts from when the last bit leaves the pin.
type frameTimer struct {
	wait core.MinWait
	bits int
}

func newFrameTimer(t core.Timing) frameTimer {
	return frameTimer{wait: core.NewMinWait(t.Reset), bits: t.BitsPerByte()}
}

// finish spins until a frame of n bytes started at start has left the pin,
// then marks the latch.
func (f *frameTimer) finish(start uint32, n int) {
	us := uint32(n*f.bits) * uint32(ws2812Period/time.Nanosecond) / 1000
	for core.Micros()-start < us {
	}
	f.wait.Mark()
}

func registerStripBackends() {
	core.RegisterStripFactory(core.BackendTimer, newPWMStrip)
	core.RegisterStripFactory(core.BackendPIO, newPIOStrip)
	core.RegisterStripFactory(core.BackendBitbang, newBitbangStrip)
}
