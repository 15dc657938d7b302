//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"gopixel/core"
)

// RP2040 timer peripheral, a 64 bit microsecond counter.
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24
	timerTIMERAWL = timerBase + 0x28
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// InitClock publishes the clock constants and makes the hardware timer the
// microsecond source for frame pacing.
func InitClock() {
	core.RegisterConstant("MCU", "rp2040")
	core.SetMicrosSource(GetHardwareTime)
}

// GetHardwareTime returns the low 32 bits of the microsecond counter.
func GetHardwareTime() uint32 {
	return timerRAWL.Get()
}

// GetHardwareUptime reads the full counter, retrying across a carry.
func GetHardwareUptime() uint64 {
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return uint64(high1)<<32 | uint64(low)
		}
	}
}

// UpdateSystemTime copies the hardware time into core. Called from the main
// loop.
func UpdateSystemTime() {
	core.SetTime(GetHardwareTime())
}
