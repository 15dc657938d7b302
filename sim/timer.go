// Package sim provides software stand-ins for the pulse timer and output
// port so clockless frames can be generated and decoded without hardware.
//
// Time is virtual: every flag poll advances the timer by one tick, so pulse
// widths measured on the recorded edges are exact tick counts.
package sim

import "gopixel/core"

// DefaultMaxPolls bounds polls between resets before Timer assumes the
// driver is starved and panics.
const DefaultMaxPolls = 1 << 20

// Timer is a virtual core.PulseTimer.
type Timer struct {
	freq     uint32
	maxTicks uint32

	period, short, long uint32
	count               uint32
	flags               [3]bool
	enabled             bool

	now   uint64 // ticks since creation
	polls int    // since the last reset
	// MaxPolls overrides DefaultMaxPolls when non-zero.
	MaxPolls int

	configures int
}

// NewTimer returns a stopped timer counting at freq Hz with a 16 bit
// period register.
func NewTimer(freq uint32) *Timer {
	return &Timer{freq: freq, maxTicks: 0xFFFF}
}

func (t *Timer) Configure(period, short, long uint32) {
	t.period, t.short, t.long = period, short, long
	t.configures++
}

func (t *Timer) ResetAndClearFlags() {
	t.count = 0
	t.flags = [3]bool{}
	t.polls = 0
}

// Reached advances the counter one tick when enabled, then reports the flag.
func (t *Timer) Reached(ch core.TimerChannel) bool {
	t.polls++
	limit := t.MaxPolls
	if limit == 0 {
		limit = DefaultMaxPolls
	}
	if t.polls > limit {
		panic("sim: pulse timer flag never set")
	}
	if t.enabled {
		t.tick()
	}
	return t.flags[ch]
}

func (t *Timer) tick() {
	t.now++
	t.count++
	if t.count >= t.short {
		t.flags[core.ChannelShort] = true
	}
	if t.count >= t.long {
		t.flags[core.ChannelLong] = true
	}
	if t.count >= t.period {
		t.flags[core.ChannelPeriod] = true
		t.count = 0
	}
}

func (t *Timer) Enable()  { t.enabled = true }
func (t *Timer) Disable() { t.enabled = false }

func (t *Timer) Frequency() uint32 { return t.freq }
func (t *Timer) MaxTicks() uint32  { return t.maxTicks }

// Now returns the virtual tick count.
func (t *Timer) Now() uint64 { return t.now }

// Enabled reports whether the counter is running.
func (t *Timer) Enabled() bool { return t.enabled }

// Configures counts Configure calls.
func (t *Timer) Configures() int { return t.configures }

// Settings returns the last programmed period and compare points.
func (t *Timer) Settings() (period, short, long uint32) {
	return t.period, t.short, t.long
}
