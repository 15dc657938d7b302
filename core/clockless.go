package core

import (
	"errors"
	"time"
)

var (
	ErrNotInitialized = errors.New("clockless: controller not initialised")
	ErrFrameOverrun   = errors.New("clockless: interrupts overran the latch gap, frame abandoned")
	ErrColorOrder     = errors.New("clockless: unknown colour order")
)

// writeBits clocks the top bits of b onto the line, most significant first.
// Each slot starts on a period flag, so the last bit ends without waiting
// for a trailing boundary. Bits past the eighth shift out as zeros.
//
// A flag that never sets hangs here; there is no timeout.
func writeBits[P FastPort, T PulseTimer](port P, timer T, hi, lo uint32, b uint8, bits int) {
	for ; bits > 0; bits-- {
		for !timer.Reached(ChannelPeriod) {
		}
		timer.ResetAndClearFlags()
		port.Set(hi)
		if b&0x80 != 0 {
			for !timer.Reached(ChannelLong) {
			}
		} else {
			for !timer.Reached(ChannelShort) {
			}
		}
		port.Set(lo)
		b <<= 1
	}
}

// frameConfig is the per controller state showPixels needs besides the
// hardware handles.
type frameConfig struct {
	ticks TimerTicks
	bits  int

	// tolerant opens an interrupt window between pixels. The frame is
	// abandoned when the time since the deadline marker exceeds margin.
	tolerant bool
	margin   uint32 // microseconds
	periodUS uint32
}

// showPixels transmits every pixel src yields with interrupts masked. The
// line is low on return, including after ErrFrameOverrun.
func showPixels[P FastPort, T PulseTimer, S PixelSource](port P, mask uint32, timer T, src S, cfg *frameConfig) error {
	v := port.Get()
	hi, lo := v|mask, v&^mask
	port.Set(lo)

	src.PreStepDithering()
	b := src.Load(0)

	cs := enterCritical()
	defer cs.exit()

	timer.Configure(cfg.ticks.Period(), cfg.ticks.Short(), cfg.ticks.Long())
	timer.Enable()
	defer timer.Disable()
	timer.ResetAndClearFlags()

	var nextMark uint32
	if cfg.tolerant {
		nextMark = Micros() + cfg.periodUS
	}

	for src.Has(1) {
		if cfg.tolerant {
			cs.window()
			now := Micros()
			if late := now - nextMark; int32(late) > 0 && late > cfg.margin {
				return ErrFrameOverrun
			}
			// Interrupt handlers may have written other pins of the port.
			v = port.Get()
			hi, lo = v|mask, v&^mask
		}

		src.StepDithering()

		writeBits(port, timer, hi, lo, b, cfg.bits)
		b = src.Load(1)

		writeBits(port, timer, hi, lo, b, cfg.bits)
		b = src.Load(2)

		writeBits(port, timer, hi, lo, b, cfg.bits)
		b = src.AdvanceAndLoad0()

		if cfg.tolerant {
			nextMark = Micros() + cfg.periodUS
		}
	}
	return nil
}

// Controller drives one strip on one pin with a PulseTimer.
type Controller[P FastPort, T PulseTimer] struct {
	port   P
	mask   uint32
	timer  T
	timing Timing
	order  ColorOrder
	dither Dither

	frame     frameConfig
	threshold time.Duration
	wait      MinWait
	cursor    PixelCursor
	ready     bool
}

// NewController returns an uninitialised controller; call Init before
// showing frames.
func NewController[P FastPort, T PulseTimer](port P, mask uint32, timer T, timing Timing, order ColorOrder) *Controller[P, T] {
	return &Controller[P, T]{
		port:   port,
		mask:   mask,
		timer:  timer,
		timing: timing,
		order:  order,
		wait:   NewMinWait(timing.Reset),
	}
}

// Init validates the timing against the timer and drives the line low. A
// controller that fails Init refuses every frame.
func (c *Controller[P, T]) Init() error {
	c.ready = false
	if !c.order.Valid() {
		return ErrColorOrder
	}
	ticks, err := c.timing.Ticks(c.timer.Frequency(), c.timer.MaxTicks())
	if err != nil {
		return err
	}
	c.frame.ticks = ticks
	c.frame.bits = c.timing.BitsPerByte()
	c.frame.periodUS = (uint32(c.timing.Period()) + 999) / 1000
	c.applyTolerance()

	c.port.Set(c.port.Get() &^ c.mask)
	c.ready = true
	return nil
}

// SetDither selects dithering for following frames.
func (c *Controller[P, T]) SetDither(d Dither) { c.dither = d }

// SetTolerance enables the interrupt tolerant mode with the given interrupt
// latency threshold. Zero disables it.
func (c *Controller[P, T]) SetTolerance(threshold time.Duration) {
	c.threshold = threshold
	c.applyTolerance()
}

func (c *Controller[P, T]) applyTolerance() {
	c.frame.tolerant = c.threshold > 0
	c.frame.margin = 0
	if gap := c.wait.Gap(); gap > c.threshold {
		c.frame.margin = uint32((gap - c.threshold) / time.Microsecond)
	}
}

// Ticks returns the validated timer configuration.
func (c *Controller[P, T]) Ticks() TimerTicks { return c.frame.ticks }

// Show sends packed RGB pixels scaled by scale.
func (c *Controller[P, T]) Show(pixels []byte, scale RGB) error {
	if !c.ready {
		return ErrNotInitialized
	}
	c.cursor.Reset(pixels, c.order, scale, c.dither)
	return c.show()
}

// ShowColor sends count copies of one colour.
func (c *Controller[P, T]) ShowColor(color RGB, count int, scale RGB) error {
	if !c.ready {
		return ErrNotInitialized
	}
	c.cursor.ResetSolid(color, count, c.order, scale, c.dither)
	return c.show()
}

// Clear turns count pixels off.
func (c *Controller[P, T]) Clear(count int) error {
	return c.ShowColor(RGB{}, count, RGB{})
}

func (c *Controller[P, T]) show() error {
	c.wait.Wait()
	err := showPixels(c.port, c.mask, c.timer, &c.cursor, &c.frame)
	c.wait.Mark()
	return err
}
