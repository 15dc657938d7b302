package core

import (
	"errors"
	"time"
)

var (
	ErrTimingOrder      = errors.New("clockless timing: every segment must be non-zero")
	ErrTimingRange      = errors.New("clockless timing: bit period exceeds timer range")
	ErrTimingResolution = errors.New("clockless timing: timer too coarse for bit period")
)

// TimingTolerance is how far the period in timer ticks may drift from the
// nominal period before the chips stop decoding reliably.
const TimingTolerance = 150 * time.Nanosecond

// Timing describes one chipset's bit slot. A 0 bit is high for T1, a 1 bit
// for T1+T2, and every slot lasts T1+T2+T3.
type Timing struct {
	T1, T2, T3 time.Duration
	// ExtraBits are zero bits clocked after every byte.
	ExtraBits uint8
	// Reset is the minimum low time that latches a frame.
	Reset time.Duration
}

func (t Timing) Period() time.Duration { return t.T1 + t.T2 + t.T3 }

// BitsPerByte is the number of slots clocked per colour byte.
func (t Timing) BitsPerByte() int { return 8 + int(t.ExtraBits) }

// TimerTicks is a Timing converted to pulse timer counts.
type TimerTicks struct {
	T1, T2, T3 uint32
}

func (t TimerTicks) Short() uint32  { return t.T1 }
func (t TimerTicks) Long() uint32   { return t.T1 + t.T2 }
func (t TimerTicks) Period() uint32 { return t.T1 + t.T2 + t.T3 }

// Ticks converts t for a timer counting at freq Hz whose period register
// holds at most maxTicks.
func (t Timing) Ticks(freq, maxTicks uint32) (TimerTicks, error) {
	if t.T1 <= 0 || t.T2 <= 0 || t.T3 <= 0 {
		return TimerTicks{}, ErrTimingOrder
	}
	tt := TimerTicks{
		T1: durationTicks(t.T1, freq),
		T2: durationTicks(t.T2, freq),
		T3: durationTicks(t.T3, freq),
	}
	if uint64(tt.T1)+uint64(tt.T2)+uint64(tt.T3) > uint64(maxTicks) {
		return TimerTicks{}, ErrTimingRange
	}
	if tt.T1 == 0 || tt.T2 == 0 || tt.T3 == 0 {
		return TimerTicks{}, ErrTimingResolution
	}
	actual := time.Duration(uint64(tt.Period()) * uint64(time.Second) / uint64(freq))
	if diff := actual - t.Period(); diff > TimingTolerance || diff < -TimingTolerance {
		return TimerTicks{}, ErrTimingResolution
	}
	return tt, nil
}

func durationTicks(d time.Duration, freq uint32) uint32 {
	return uint32((uint64(d)*uint64(freq) + uint64(time.Second)/2) / uint64(time.Second))
}

// Preset is a named chipset timing.
type Preset struct {
	Name   string
	Timing Timing
}

func ns(v int) time.Duration { return time.Duration(v) * time.Nanosecond }

// Presets are the supported chipsets, in the order published to the host.
var Presets = []Preset{
	{"WS2812", Timing{T1: ns(250), T2: ns(625), T3: ns(375), Reset: 50 * time.Microsecond}},
	{"WS2813", Timing{T1: ns(320), T2: ns(320), T3: ns(640), Reset: 300 * time.Microsecond}},
	{"SK6812", Timing{T1: ns(300), T2: ns(600), T3: ns(300), Reset: 80 * time.Microsecond}},
	{"WS2811", Timing{T1: ns(320), T2: ns(320), T3: ns(640), Reset: 50 * time.Microsecond}},
	{"WS2811_400", Timing{T1: ns(800), T2: ns(800), T3: ns(900), Reset: 50 * time.Microsecond}},
	{"TM1809", Timing{T1: ns(350), T2: ns(350), T3: ns(450), Reset: 50 * time.Microsecond}},
	{"UCS1903", Timing{T1: ns(500), T2: ns(1500), T3: ns(500), Reset: 50 * time.Microsecond}},
}

// PresetByName looks a chipset up by its exact name.
func PresetByName(name string) (Timing, bool) {
	for _, p := range Presets {
		if p.Name == name {
			return p.Timing, true
		}
	}
	return Timing{}, false
}

// PresetNames returns the chipset enumeration.
func PresetNames() []string {
	names := make([]string, len(Presets))
	for i, p := range Presets {
		names[i] = p.Name
	}
	return names
}
