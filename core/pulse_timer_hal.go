package core

// TimerChannel selects one of the pulse timer's three event flags.
type TimerChannel uint8

const (
	ChannelShort  TimerChannel = iota // compare A, end of a 0 bit high time (T1)
	ChannelLong                       // compare B, end of a 1 bit high time (T1+T2)
	ChannelPeriod                     // counter wrap, end of the bit slot (T1+T2+T3)
)

// PulseTimer is a free running counter with two compare points and a period
// flag. Flags latch when the counter passes them and stay set until
// ResetAndClearFlags.
type PulseTimer interface {
	// Configure programs the period and both compare points, prescaler 1.
	Configure(period, short, long uint32)

	// ResetAndClearFlags zeroes the counter and clears all three flags.
	ResetAndClearFlags()

	Reached(ch TimerChannel) bool

	Enable()
	Disable()

	// Frequency is the counter rate in Hz.
	Frequency() uint32

	// MaxTicks is the largest period the counter can hold.
	MaxTicks() uint32
}

var pulseTimer PulseTimer

// SetPulseTimer registers the target's timer. One timer serves every strip
// since frames never overlap.
func SetPulseTimer(t PulseTimer) {
	pulseTimer = t
}

// MustPulseTimer returns the configured timer or panics if missing.
func MustPulseTimer() PulseTimer {
	if pulseTimer == nil {
		panic("pulse timer not configured")
	}
	return pulseTimer
}
