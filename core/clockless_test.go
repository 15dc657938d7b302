package core_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"gopixel/core"
	"gopixel/sim"
)

const testFreq = 40_000_000 // 25ns ticks, WS2812 is 10/25/15

const dataPin = 1 << 3

type rig struct {
	timer *sim.Timer
	port  *sim.Port
	ctl   *core.Controller[*sim.Port, *sim.Timer]
}

func newRig(t *testing.T, timing core.Timing, order core.ColorOrder) *rig {
	t.Helper()
	tm := sim.NewTimer(testFreq)
	port := sim.NewPort(tm)
	port.Poke(0x80) // an unrelated pin that must be preserved
	ctl := core.NewController(port, dataPin, tm, timing, order)
	if err := ctl.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &rig{timer: tm, port: port, ctl: ctl}
}

func ws2812(t *testing.T) core.Timing {
	t.Helper()
	timing, ok := core.PresetByName("WS2812")
	if !ok {
		t.Fatal("WS2812 preset missing")
	}
	return timing
}

func (r *rig) decode(t *testing.T, timing core.Timing) sim.Frame {
	t.Helper()
	f, err := sim.Decode(r.port.Take(), dataPin, r.ctl.Ticks(), timing.BitsPerByte())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (r *rig) checkIdle(t *testing.T) {
	t.Helper()
	if r.port.Get() != 0x80 {
		t.Errorf("port left at 0x%x, want data low and 0x80 untouched", r.port.Get())
	}
	if r.timer.Enabled() {
		t.Error("timer still running after the frame")
	}
	if d := core.InterruptDepth(); d != 0 {
		t.Errorf("interrupt depth %d after the frame", d)
	}
}

func TestShowOneRedPixel(t *testing.T) {
	timing := ws2812(t)
	r := newRig(t, timing, core.OrderGRB)

	if err := r.ctl.Show([]byte{255, 0, 0}, core.White); err != nil {
		t.Fatal(err)
	}
	f := r.decode(t, timing)
	if !bytes.Equal(f.Bytes, []byte{0x00, 0xFF, 0x00}) {
		t.Fatalf("wire bytes % x, want 00 ff 00", f.Bytes)
	}
	if len(f.Pulses) != 24 {
		t.Fatalf("%d pulses, want 24", len(f.Pulses))
	}
	for i, p := range f.Pulses {
		want := uint64(10) // 0 bit, T1
		if i >= 8 && i < 16 {
			want = 35 // 1 bit, T1+T2
		}
		if p.Width() != want {
			t.Errorf("bit %d high for %d ticks, want %d", i, p.Width(), want)
		}
	}
	if period, short, long := r.timer.Settings(); period != 50 || short != 10 || long != 35 {
		t.Errorf("timer programmed %d/%d/%d, want 50/10/35", period, short, long)
	}
	r.checkIdle(t)
}

func TestShowEmptyBuffer(t *testing.T) {
	timing := ws2812(t)
	r := newRig(t, timing, core.OrderRGB)
	r.port.Take()

	if err := r.ctl.Show(nil, core.White); err != nil {
		t.Fatal(err)
	}
	if edges := r.port.Take(); len(edges) != 0 {
		t.Fatalf("empty frame produced %d edges", len(edges))
	}
	if r.timer.Configures() != 1 {
		t.Fatalf("timer configured %d times, want 1", r.timer.Configures())
	}
	r.checkIdle(t)
}

func TestShowBitCountAndChannelOrder(t *testing.T) {
	timing := ws2812(t)
	pixels := []byte{
		0x12, 0x34, 0x56,
		0xAB, 0xCD, 0xEF,
		0x00, 0xFF, 0x80,
		0x01, 0x02, 0x03,
	}
	cases := []struct {
		order core.ColorOrder
		want  []byte
	}{
		{core.OrderRGB, pixels},
		{core.OrderBRG, []byte{0x56, 0x12, 0x34, 0xEF, 0xAB, 0xCD, 0x80, 0x00, 0xFF, 0x03, 0x01, 0x02}},
	}
	for _, tc := range cases {
		r := newRig(t, timing, tc.order)
		if err := r.ctl.Show(pixels, core.White); err != nil {
			t.Fatal(err)
		}
		f := r.decode(t, timing)
		if len(f.Pulses) != 24*4 {
			t.Errorf("%s: %d pulses, want 96", tc.order, len(f.Pulses))
		}
		if !bytes.Equal(f.Bytes, tc.want) {
			t.Errorf("%s: wire % x, want % x", tc.order, f.Bytes, tc.want)
		}
	}
}

func TestShowExtraBitsPadWithZeros(t *testing.T) {
	timing := ws2812(t)
	timing.ExtraBits = 2
	r := newRig(t, timing, core.OrderRGB)

	if err := r.ctl.Show([]byte{0xFF, 0xFF, 0xFF}, core.White); err != nil {
		t.Fatal(err)
	}
	f := r.decode(t, timing)
	if len(f.Pulses) != 30 || !bytes.Equal(f.Bytes, []byte{0xFF, 0xFF, 0xFF}) {
		t.Fatalf("%d pulses, bytes % x", len(f.Pulses), f.Bytes)
	}
}

func TestShowColorAndClear(t *testing.T) {
	timing := ws2812(t)
	r := newRig(t, timing, core.OrderGRB)

	if err := r.ctl.ShowColor(core.RGB{R: 10, G: 20, B: 30}, 3, core.White); err != nil {
		t.Fatal(err)
	}
	if f := r.decode(t, timing); !bytes.Equal(f.Bytes, bytes.Repeat([]byte{20, 10, 30}, 3)) {
		t.Fatalf("ShowColor wire % x", f.Bytes)
	}
	if err := r.ctl.Clear(5); err != nil {
		t.Fatal(err)
	}
	if f := r.decode(t, timing); !bytes.Equal(f.Bytes, make([]byte, 15)) {
		t.Fatalf("Clear wire % x", f.Bytes)
	}
}

func TestIdenticalFramesAreIdentical(t *testing.T) {
	timing := ws2812(t)
	r := newRig(t, timing, core.OrderGRB)
	pixels := []byte{200, 100, 50, 1, 2, 3}
	scale := core.RGB{R: 128, G: 64, B: 255}

	relative := func() []uint64 {
		f := r.decode(t, timing)
		var out []uint64
		for _, p := range f.Pulses {
			out = append(out, p.Rise-f.Pulses[0].Rise, p.Width())
		}
		return out
	}
	if err := r.ctl.Show(pixels, scale); err != nil {
		t.Fatal(err)
	}
	first := relative()
	for i := 0; i < 3; i++ {
		if err := r.ctl.Show(pixels, scale); err != nil {
			t.Fatal(err)
		}
		got := relative()
		if len(got) != len(first) {
			t.Fatalf("frame %d: %d values, want %d", i, len(got), len(first))
		}
		for j := range got {
			if got[j] != first[j] {
				t.Fatalf("frame %d differs at %d", i, j)
			}
		}
	}
}

// stampPort records the microsecond clock at every write.
type stampPort struct {
	*sim.Port
	stamps []uint32
}

func (p *stampPort) Set(v uint32) {
	p.stamps = append(p.stamps, core.Micros())
	p.Port.Set(v)
}

func countingMicros(t *testing.T) *uint32 {
	t.Helper()
	var now uint32
	core.SetMicrosSource(func() uint32 {
		now++
		return now
	})
	t.Cleanup(func() { core.SetMicrosSource(nil) })
	return &now
}

func TestBackToBackShowsKeepLatchGap(t *testing.T) {
	countingMicros(t)
	timing := ws2812(t)
	timing.Reset = 300 * time.Microsecond

	tm := sim.NewTimer(testFreq)
	port := &stampPort{Port: sim.NewPort(tm)}
	ctl := core.NewController(port, dataPin, tm, timing, core.OrderRGB)
	if err := ctl.Init(); err != nil {
		t.Fatal(err)
	}

	pixels := []byte{1, 2, 3}
	if err := ctl.Show(pixels, core.White); err != nil {
		t.Fatal(err)
	}
	lastOfFirst := port.stamps[len(port.stamps)-1]
	port.stamps = nil
	if err := ctl.Show(pixels, core.White); err != nil {
		t.Fatal(err)
	}
	if gap := port.stamps[0] - lastOfFirst; gap < 300 {
		t.Fatalf("second frame started %dus after the first ended, want >= 300", gap)
	}
}

func TestToleranceAbortsOnOverrun(t *testing.T) {
	timing := ws2812(t)
	r := newRig(t, timing, core.OrderRGB)
	r.ctl.SetTolerance(10 * time.Microsecond)

	// The fourth read sees a long interrupt between pixel 1 and 2.
	var calls uint32
	core.SetMicrosSource(func() uint32 {
		calls++
		if calls >= 4 {
			return 1000 + calls
		}
		return calls
	})
	t.Cleanup(func() { core.SetMicrosSource(nil) })

	err := r.ctl.Show([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9}, core.White)
	if !errors.Is(err, core.ErrFrameOverrun) {
		t.Fatalf("err = %v, want ErrFrameOverrun", err)
	}
	f := r.decode(t, timing)
	if !bytes.Equal(f.Bytes, []byte{1, 2, 3}) {
		t.Fatalf("sent % x before aborting, want only the first pixel", f.Bytes)
	}
	r.checkIdle(t)
}

func TestToleranceCompletesWithoutDelay(t *testing.T) {
	countingMicros(t)
	timing := ws2812(t)
	r := newRig(t, timing, core.OrderRGB)
	r.ctl.SetTolerance(10 * time.Microsecond)

	pixels := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if err := r.ctl.Show(pixels, core.White); err != nil {
		t.Fatal(err)
	}
	if f := r.decode(t, timing); !bytes.Equal(f.Bytes, pixels) {
		t.Fatalf("wire % x", f.Bytes)
	}
	r.checkIdle(t)
}

func TestInitRejectsBadConfiguration(t *testing.T) {
	tm := sim.NewTimer(1_000_000) // 1us ticks cannot express 250ns
	port := sim.NewPort(tm)
	ctl := core.NewController(port, dataPin, tm, ws2812(t), core.OrderGRB)
	if err := ctl.Init(); !errors.Is(err, core.ErrTimingResolution) {
		t.Fatalf("Init err = %v", err)
	}
	if err := ctl.Show([]byte{1, 2, 3}, core.White); !errors.Is(err, core.ErrNotInitialized) {
		t.Fatalf("Show err = %v, want ErrNotInitialized", err)
	}
	if len(port.Edges()) != 0 {
		t.Fatal("refused controller touched the line")
	}

	ctl = core.NewController(port, dataPin, sim.NewTimer(testFreq), ws2812(t), core.ColorOrder(0))
	if err := ctl.Init(); !errors.Is(err, core.ErrColorOrder) {
		t.Fatalf("Init err = %v, want ErrColorOrder", err)
	}
}
