package mcu

import (
	"bytes"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"gopixel/core"
	"gopixel/protocol"
	"gopixel/sim"
)

const simFreq = 40_000_000

type simGPIO struct{ port *sim.Port }

func (g *simGPIO) ConfigureOutput(core.GPIOPin) error { return nil }

func (g *simGPIO) FastPort(pin core.GPIOPin) (core.FastPort, uint32, error) {
	return g.port, 1 << pin, nil
}

func TestMain(m *testing.M) {
	core.InitCoreCommands()
	core.InitClocklessCommands()
	core.RegisterConstant("MCU", "sim")
	os.Exit(m.Run())
}

// serveFirmware runs the firmware command loop on one end of a pipe, the
// way the target main loop does over USB.
func serveFirmware(conn net.Conn) {
	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, core.DispatchCommand)
	core.SetGlobalTransport(tr)
	fifo := protocol.NewFifoBuffer(256)
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		fifo.Write(buf[:n])
		tr.Receive(fifo)
		if out.CurPosition() > 0 {
			if _, err := conn.Write(out.Result()); err != nil {
				return
			}
			out.Reset()
		}
	}
}

type rig struct {
	mcu  *MCU
	port *sim.Port
}

func newRig(t *testing.T) *rig {
	t.Helper()
	tm := sim.NewTimer(simFreq)
	port := sim.NewPort(tm)
	core.SetPulseTimer(tm)
	core.SetGPIODriver(&simGPIO{port: port})
	core.ResetFirmwareState()

	hostEnd, mcuEnd := net.Pipe()
	go serveFirmware(mcuEnd)
	m := NewMCU()
	m.Attach(hostEnd)
	t.Cleanup(func() {
		m.Close()
		mcuEnd.Close()
		core.ResetFirmwareState()
	})
	if err := m.RetrieveDictionary(); err != nil {
		t.Fatalf("RetrieveDictionary: %v", err)
	}
	return &rig{mcu: m, port: port}
}

func ws2812Strip(oid uint8, pin uint32, pixels int) StripParams {
	timing, _ := core.PresetByName("WS2812")
	return StripParams{OID: oid, Pin: pin, Pixels: pixels, Timing: timing, Order: core.OrderGRB}
}

func TestRetrieveDictionary(t *testing.T) {
	r := newRig(t)
	d := r.mcu.GetDictionary()
	if d.Version != "gopixel-0.2.0" {
		t.Errorf("version %q", d.Version)
	}
	if _, ok := d.Command("config_clockless"); !ok {
		t.Error("config_clockless missing")
	}
	if f, ok := d.ResponseByName("clockless_result"); !ok || len(f.params) != 2 {
		t.Errorf("clockless_result = %+v", f)
	}
	if v, ok := d.ConfigUint("CLOCKLESS_MAX_BYTES"); !ok || v != core.ClocklessMaxBytes {
		t.Errorf("CLOCKLESS_MAX_BYTES = %d, %v", v, ok)
	}
	if got := d.ConfigString("MCU"); got != "sim" {
		t.Errorf("MCU = %q", got)
	}
	if v, ok := d.Enum("order", "GRB"); !ok || v != 2 {
		t.Errorf("order GRB = %d, %v", v, ok)
	}
	if raw := r.mcu.GetDictionaryRaw(); len(raw) < 2 || raw[0] != 0x78 {
		t.Errorf("raw dictionary is not zlib wrapped")
	}
}

func TestConfigureUpdateShow(t *testing.T) {
	r := newRig(t)
	strip := ws2812Strip(0, 4, 30)
	if err := r.mcu.Configure([]StripParams{strip}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	rgb := make([]byte, 90)
	for i := range rgb {
		rgb[i] = byte(i + 1)
	}
	if err := r.mcu.UpdatePixels(0, 0, rgb); err != nil {
		t.Fatalf("UpdatePixels: %v", err)
	}
	if err := r.mcu.Show(0); err != nil {
		t.Fatalf("Show: %v", err)
	}

	buf, ok := core.StripBuffer(0)
	if !ok || !bytes.Equal(buf, rgb) {
		t.Fatalf("strip buffer = %v", buf)
	}
	ticks := core.TimerTicks{T1: 10, T2: 25, T3: 15}
	frame, err := sim.Decode(r.port.Take(), 1<<4, ticks, 8)
	if err != nil {
		t.Fatal(err)
	}
	want := make([]byte, 0, len(rgb))
	for i := 0; i < len(rgb); i += 3 {
		want = append(want, rgb[i+1], rgb[i], rgb[i+2])
	}
	if !bytes.Equal(frame.Bytes, want) {
		t.Fatalf("wire bytes\n got %x\nwant %x", frame.Bytes, want)
	}
}

func TestConfigureIsIdempotent(t *testing.T) {
	r := newRig(t)
	strips := []StripParams{ws2812Strip(0, 2, 8), ws2812Strip(1, 3, 4)}
	if err := r.mcu.Configure(strips); err != nil {
		t.Fatal(err)
	}
	want, err := r.mcu.ConfigCRC(strips)
	if err != nil {
		t.Fatal(err)
	}
	state, err := r.mcu.GetConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsConfig || state.CRC != want {
		t.Fatalf("config state %+v, want crc %08x", state, want)
	}
	// Same strips again must not trip over the already configured oids.
	if err := r.mcu.Configure(strips); err != nil {
		t.Fatalf("second Configure: %v", err)
	}
	// A different set resets first.
	if err := r.mcu.Configure(strips[:1]); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if _, ok := core.StripBuffer(1); ok {
		t.Fatal("oid 1 survived a reconfiguration")
	}
}

func TestConfigureAfterReconnect(t *testing.T) {
	r := newRig(t)
	if err := r.mcu.Configure([]StripParams{ws2812Strip(0, 2, 10)}); err != nil {
		t.Fatal(err)
	}
	// The firmware's transport reset on reconnect.
	core.ResetFirmwareState()

	strips := []StripParams{ws2812Strip(0, 2, 100)}
	if err := r.mcu.Configure(strips); err != nil {
		t.Fatalf("Configure after reconnect: %v", err)
	}
	if buf, _ := core.StripBuffer(0); len(buf) != 300 {
		t.Fatalf("buffer len %d, want 300", len(buf))
	}
	want, _ := r.mcu.ConfigCRC(strips)
	state, err := r.mcu.GetConfig()
	if err != nil {
		t.Fatal(err)
	}
	if state.CRC != want {
		t.Fatalf("crc %08x, want %08x", state.CRC, want)
	}
}

func TestShowAfterShutdownFails(t *testing.T) {
	r := newRig(t)
	if err := r.mcu.Configure([]StripParams{ws2812Strip(0, 1, 2)}); err != nil {
		t.Fatal(err)
	}
	if err := r.mcu.SendCommand("emergency_stop"); err != nil {
		t.Fatal(err)
	}
	if err := r.mcu.Show(0); !errors.Is(err, ErrShowFailed) {
		t.Fatalf("Show after shutdown: %v", err)
	}
	state, err := r.mcu.GetConfig()
	if err != nil {
		t.Fatal(err)
	}
	if !state.IsShutdown {
		t.Fatal("config does not report shutdown")
	}
}

func TestClockAndUptime(t *testing.T) {
	r := newRig(t)
	if _, err := r.mcu.GetClock(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.mcu.GetUptime(); err != nil {
		t.Fatal(err)
	}
}

func TestUnknownEnumValue(t *testing.T) {
	r := newRig(t)
	strip := ws2812Strip(0, 1, 2)
	strip.Backend = "spi"
	if err := r.mcu.ConfigStrip(strip); err == nil {
		t.Fatal("unknown backend accepted")
	}
}

func TestNotConnected(t *testing.T) {
	m := NewMCU()
	if err := m.SendCommand("get_clock"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
	if err := m.RetrieveDictionary(); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
}

func TestQueryTimeout(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	// ACK every block but never answer.
	go func() {
		out := protocol.NewScratchOutput()
		tr := protocol.NewTransport(out, func(uint16, *[]byte) error { return nil })
		fifo := protocol.NewFifoBuffer(256)
		buf := make([]byte, 64)
		for {
			n, err := mcuEnd.Read(buf)
			if err != nil {
				return
			}
			fifo.Write(buf[:n])
			tr.Receive(fifo)
			if _, err := mcuEnd.Write(out.Result()); err != nil {
				return
			}
			out.Reset()
		}
	}()
	m := NewMCU()
	m.responseTimeout = 20 * time.Millisecond
	m.Attach(hostEnd)
	defer m.Close()
	defer mcuEnd.Close()

	if _, err := m.Query("identify", "identify_response", 0, 40); err == nil {
		t.Fatal("query without a response succeeded")
	}
}
