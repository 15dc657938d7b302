//go:build rp2040

package main

import (
	"machine"
	"runtime/volatile"
	"unsafe"

	"gopixel/core"
)

// RP2040 PWM block. Each slice is five registers, 20 bytes apart.
const (
	pwmBase        = 0x40050000
	pwmSliceStride = 0x14
	pwmINTR        = pwmBase + 0xa4 // raw wrap flags, write 1 to clear

	pwmCSR = 0x00
	pwmDIV = 0x04
	pwmCTR = 0x08
	pwmCC  = 0x0c
	pwmTOP = 0x10

	pwmCSREnable = 1 << 0
	pwmDIVOne    = 1 << 4 // integer divider 1 in 8.4 fixed point
)

func pwmReg(slice uint8, offset uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(pwmBase) + uintptr(slice)*pwmSliceStride + offset))
}

var pwmIntr = (*volatile.Register32)(unsafe.Pointer(uintptr(pwmINTR)))

// pwmTimer uses one PWM slice as the pulse timer: TOP sets the bit period,
// CC A and B the two compare points, and the raw wrap flag the period event.
// The slice is never routed to a pin.
type pwmTimer struct {
	slice uint8
	wrap  uint32

	csr, ctr, cc, top, div *volatile.Register32

	short, long uint32
}

func newPWMTimer(slice uint8) *pwmTimer {
	return &pwmTimer{
		slice: slice,
		wrap:  1 << slice,
		csr:   pwmReg(slice, pwmCSR),
		div:   pwmReg(slice, pwmDIV),
		ctr:   pwmReg(slice, pwmCTR),
		cc:    pwmReg(slice, pwmCC),
		top:   pwmReg(slice, pwmTOP),
	}
}

func (t *pwmTimer) Configure(period, short, long uint32) {
	t.csr.Set(0)
	t.div.Set(pwmDIVOne)
	t.top.Set(period - 1)
	t.cc.Set(long<<16 | short&0xffff)
	t.short, t.long = short, long
}

func (t *pwmTimer) ResetAndClearFlags() {
	t.ctr.Set(0)
	pwmIntr.Set(t.wrap)
}

// Reached treats a wrap as having passed both compare points, so a late
// poll never misses the end of a high time.
func (t *pwmTimer) Reached(ch core.TimerChannel) bool {
	wrapped := pwmIntr.Get()&t.wrap != 0
	switch ch {
	case core.ChannelShort:
		return wrapped || t.ctr.Get() >= t.short
	case core.ChannelLong:
		return wrapped || t.ctr.Get() >= t.long
	default:
		return wrapped
	}
}

func (t *pwmTimer) Enable()  { t.csr.SetBits(pwmCSREnable) }
func (t *pwmTimer) Disable() { t.csr.ClearBits(pwmCSREnable) }

func (t *pwmTimer) Frequency() uint32 { return machine.CPUFrequency() }

func (t *pwmTimer) MaxTicks() uint32 { return 0xffff }
