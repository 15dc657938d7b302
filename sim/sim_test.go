package sim

import (
	"errors"
	"testing"

	"gopixel/core"
)

func TestTimerFlagsLatchUntilReset(t *testing.T) {
	tm := NewTimer(40_000_000)
	tm.Configure(50, 10, 35)
	tm.Enable()
	tm.ResetAndClearFlags()

	polls := 0
	for !tm.Reached(core.ChannelShort) {
		polls++
	}
	if polls != 9 {
		t.Fatalf("short flag after %d extra polls, want 9", polls)
	}
	if tm.Reached(core.ChannelLong) {
		t.Fatal("long flag set early")
	}
	for !tm.Reached(core.ChannelPeriod) {
	}
	if !tm.Reached(core.ChannelShort) || !tm.Reached(core.ChannelLong) {
		t.Fatal("flags did not stay latched across the wrap")
	}
	tm.ResetAndClearFlags()
	if tm.Reached(core.ChannelLong) {
		t.Fatal("ResetAndClearFlags left the long flag set")
	}
}

func TestTimerPanicsWhenStarved(t *testing.T) {
	tm := NewTimer(1_000_000)
	tm.Configure(10, 2, 5)
	tm.MaxPolls = 100
	defer func() {
		if recover() == nil {
			t.Fatal("disabled timer polled forever without panicking")
		}
	}()
	for !tm.Reached(core.ChannelPeriod) {
	}
}

func TestDecodeBytesAndPadding(t *testing.T) {
	ticks := core.TimerTicks{T1: 2, T2: 3, T3: 5}
	var edges []Edge
	tick := uint64(0)
	// 0xA5 followed by one zero padding bit
	for _, bit := range []int{1, 0, 1, 0, 0, 1, 0, 1, 0} {
		w := uint64(ticks.Short())
		if bit == 1 {
			w = uint64(ticks.Long())
		}
		edges = append(edges, Edge{tick, 1}, Edge{tick + w, 0})
		tick += uint64(ticks.Period())
	}
	f, err := Decode(edges, 1, ticks, 9)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Bytes) != 1 || f.Bytes[0] != 0xA5 {
		t.Fatalf("decoded % x", f.Bytes)
	}

	edges[len(edges)-1].Tick++ // padding bit now neither width
	if _, err := Decode(edges, 1, ticks, 9); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestDecodeRejectsJitter(t *testing.T) {
	ticks := core.TimerTicks{T1: 2, T2: 3, T3: 5}
	edges := []Edge{{0, 1}, {2, 0}, {11, 1}, {13, 0}}
	if _, err := Decode(edges, 1, ticks, 2); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed for an 11 tick slot", err)
	}
}

func TestPulsesLineLeftHigh(t *testing.T) {
	if _, err := Pulses([]Edge{{0, 4}}, 4); !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v", err)
	}
}

func TestPortIgnoresOtherBits(t *testing.T) {
	tm := NewTimer(1_000_000)
	p := NewPort(tm)
	p.Poke(0x10)
	p.Set(0x11)
	p.Set(0x10)
	pulses, err := Pulses(p.Take(), 0x01)
	if err != nil || len(pulses) != 1 {
		t.Fatalf("pulses %v, %v", pulses, err)
	}
	if len(p.Edges()) != 0 {
		t.Fatal("Take did not reset the capture")
	}
}
