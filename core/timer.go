package core

import "time"

// ClockFreq is the rate of the Klipper clock reported to the host. Targets
// feed it from a 1MHz hardware timer.
const ClockFreq = 1000000

var (
	bootTime     uint32
	microsSource = hostMicros
	hostEpoch    = time.Now()
)

// GetTime returns the current system time in clock ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// GetUptime returns the clock ticks elapsed since TimerInit.
func GetUptime() uint64 {
	return uint64(GetTime() - bootTime)
}

// TimerFromUS converts microseconds to clock ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * ClockFreq / 1000000)
}

// TimerToUS converts clock ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / ClockFreq)
}

// TimerInit records the boot time used by GetUptime.
func TimerInit() {
	bootTime = GetTime()
}

// Micros reads the free running microsecond counter used for frame pacing.
// Unlike GetTime it is live, not the value cached by the main loop.
func Micros() uint32 {
	return microsSource()
}

// SetMicrosSource replaces the microsecond counter, normally with a direct
// hardware timer read.
func SetMicrosSource(fn func() uint32) {
	if fn == nil {
		fn = hostMicros
	}
	microsSource = fn
}

func hostMicros() uint32 {
	return uint32(time.Since(hostEpoch).Microseconds())
}
