package core

import (
	"errors"
	"strconv"
	"time"

	"gopixel/protocol"
)

var (
	ErrUnknownStrip = errors.New("clockless: unknown oid")
	ErrStripBounds  = errors.New("clockless: data outside strip buffer")
	ErrStripExists  = errors.New("clockless: oid already configured")
	ErrNoBackend    = errors.New("clockless: backend not available")
)

// ClocklessMaxBytes bounds one strip's buffer, 3 bytes per pixel.
const ClocklessMaxBytes = 3 * 1024

// Backend selects how a strip's signal is generated.
type Backend uint8

const (
	BackendTimer   Backend = iota // pulse timer engine in this package
	BackendPIO                    // PIO state machine
	BackendBitbang                // cycle counted CPU loop
)

// Strip is a configured output. Show takes packed RGB bytes.
type Strip interface {
	Show(pixels []byte, scale RGB) error
	ShowColor(color RGB, count int, scale RGB) error
	Clear(count int) error
}

// DitherStrip is implemented by strips that support temporal dithering.
type DitherStrip interface {
	SetDither(d Dither)
}

// TolerantStrip is implemented by strips that can leave interrupts enabled
// between pixels.
type TolerantStrip interface {
	SetTolerance(threshold time.Duration)
}

// StripConfig is a decoded config_clockless command.
type StripConfig struct {
	OID     uint8
	Pin     GPIOPin
	Size    int // bytes
	Timing  Timing
	Order   ColorOrder
	Backend Backend
}

// StripFactory builds a strip for one backend.
type StripFactory func(cfg StripConfig) (Strip, error)

var stripFactories = map[Backend]StripFactory{
	BackendTimer: NewTimerStrip,
}

// RegisterStripFactory installs or replaces the factory for a backend.
func RegisterStripFactory(b Backend, f StripFactory) {
	stripFactories[b] = f
}

// NewTimerStrip builds a Controller from the registered GPIO driver and
// pulse timer.
func NewTimerStrip(cfg StripConfig) (Strip, error) {
	gpio := MustGPIO()
	if err := gpio.ConfigureOutput(cfg.Pin); err != nil {
		return nil, err
	}
	port, mask, err := gpio.FastPort(cfg.Pin)
	if err != nil {
		return nil, err
	}
	c := NewController(port, mask, MustPulseTimer(), cfg.Timing, cfg.Order)
	if err := c.Init(); err != nil {
		return nil, err
	}
	return c, nil
}

type clocklessStrip struct {
	cfg   StripConfig
	strip Strip
	buf   []byte
	scale RGB
}

var strips = map[uint8]*clocklessStrip{}

// InitClocklessCommands registers the strip commands and their dictionary
// entries.
func InitClocklessCommands() {
	RegisterCommand("config_clockless",
		"oid=%c pin=%u data_size=%hu t1=%u t2=%u t3=%u reset_us=%u order=%c extra_bits=%c backend=%c",
		handleConfigClockless)
	RegisterCommand("clockless_update", "oid=%c pos=%hu data=%*s", handleClocklessUpdate)
	RegisterCommand("clockless_set_scale", "oid=%c red=%c green=%c blue=%c dither=%c", handleClocklessSetScale)
	RegisterCommand("clockless_tolerance", "oid=%c threshold_us=%u", handleClocklessTolerance)
	RegisterCommand("clockless_send", "oid=%c", handleClocklessSend)
	RegisterCommand("clockless_clear", "oid=%c", handleClocklessClear)
	RegisterResponse("clockless_result", "oid=%c success=%c")

	RegisterConstant("CLOCKLESS_MAX_BYTES", uint32(ClocklessMaxBytes))
	RegisterEnumeration("chipset", PresetNames())
	orders := make([]string, len(ColorOrders))
	for i, o := range ColorOrders {
		orders[i] = o.String()
	}
	RegisterEnumeration("order", orders)
	RegisterEnumeration("backend", []string{"timer", "pio", "bitbang"})

	RegisterShutdownHook(ShutdownAllStrips)
	RegisterResetHook(releaseAllStrips)
}

func decodeArgs(data *[]byte, out ...*uint32) error {
	for _, p := range out {
		v, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return err
		}
		*p = v
	}
	return nil
}

func lookupStrip(data *[]byte) (*clocklessStrip, error) {
	oid, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	s, ok := strips[uint8(oid)]
	if !ok {
		return nil, ErrUnknownStrip
	}
	return s, nil
}

func handleConfigClockless(data *[]byte) error {
	var oid, pin, size, t1, t2, t3, resetUS, order, extra, backend uint32
	if err := decodeArgs(data, &oid, &pin, &size, &t1, &t2, &t3, &resetUS, &order, &extra, &backend); err != nil {
		return err
	}
	if _, ok := strips[uint8(oid)]; ok {
		return ErrStripExists
	}
	if size == 0 || size%3 != 0 || size > ClocklessMaxBytes {
		return ErrStripBounds
	}
	if int(order) >= len(ColorOrders) {
		return ErrColorOrder
	}
	cfg := StripConfig{
		OID:  uint8(oid),
		Pin:  GPIOPin(pin),
		Size: int(size),
		Timing: Timing{
			T1:        time.Duration(t1) * time.Nanosecond,
			T2:        time.Duration(t2) * time.Nanosecond,
			T3:        time.Duration(t3) * time.Nanosecond,
			ExtraBits: uint8(extra),
			Reset:     time.Duration(resetUS) * time.Microsecond,
		},
		Order:   ColorOrders[order],
		Backend: Backend(backend),
	}
	strip, err := ConfigureStrip(cfg)
	if err != nil {
		return err
	}
	strips[cfg.OID] = &clocklessStrip{cfg: cfg, strip: strip, buf: make([]byte, cfg.Size), scale: White}
	RecordFrameEvent(EvtConfigure, cfg.OID, pin, size)
	return nil
}

// ConfigureStrip builds a strip with the factory for cfg.Backend.
func ConfigureStrip(cfg StripConfig) (Strip, error) {
	factory, ok := stripFactories[cfg.Backend]
	if !ok {
		return nil, ErrNoBackend
	}
	strip, err := factory(cfg)
	if err != nil {
		DebugPrintln("[clockless] oid=" + strconv.Itoa(int(cfg.OID)) + " config failed: " + err.Error())
		return nil, err
	}
	return strip, nil
}

func handleClocklessUpdate(data *[]byte) error {
	s, err := lookupStrip(data)
	if err != nil {
		return err
	}
	pos, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	payload, err := protocol.DecodeVLQBytes(data)
	if err != nil {
		return err
	}
	if pos > uint32(len(s.buf)) || len(payload) > len(s.buf)-int(pos) {
		return ErrStripBounds
	}
	copy(s.buf[pos:], payload)
	return nil
}

func handleClocklessSetScale(data *[]byte) error {
	s, err := lookupStrip(data)
	if err != nil {
		return err
	}
	var r, g, b, dither uint32
	if err := decodeArgs(data, &r, &g, &b, &dither); err != nil {
		return err
	}
	s.scale = RGB{uint8(r), uint8(g), uint8(b)}
	if ds, ok := s.strip.(DitherStrip); ok {
		ds.SetDither(Dither(dither))
	}
	return nil
}

func handleClocklessTolerance(data *[]byte) error {
	s, err := lookupStrip(data)
	if err != nil {
		return err
	}
	threshold, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if ts, ok := s.strip.(TolerantStrip); ok {
		ts.SetTolerance(time.Duration(threshold) * time.Microsecond)
	}
	return nil
}

func handleClocklessSend(data *[]byte) error {
	s, err := lookupStrip(data)
	if err != nil {
		return err
	}
	ok := s.send()
	SendResponse("clockless_result", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, uint32(s.cfg.OID))
		protocol.EncodeVLQUint(output, boolArg(ok))
	})
	return nil
}

func (s *clocklessStrip) send() bool {
	if IsShutdown() {
		RecordFrameEvent(EvtRefused, s.cfg.OID, 1, 0)
		return false
	}
	RecordFrameEvent(EvtFrameStart, s.cfg.OID, uint32(len(s.buf)/3), 0)
	start := Micros()
	err := s.strip.Show(s.buf, s.scale)
	elapsed := Micros() - start
	switch {
	case errors.Is(err, ErrFrameOverrun):
		RecordFrameEvent(EvtOverrun, s.cfg.OID, elapsed, 0)
		return false
	case err != nil:
		RecordFrameEvent(EvtRefused, s.cfg.OID, 2, 0)
		DebugPrintln("[clockless] oid=" + strconv.Itoa(int(s.cfg.OID)) + " show: " + err.Error())
		return false
	}
	RecordFrameEvent(EvtFrameDone, s.cfg.OID, elapsed, 0)
	return true
}

func handleClocklessClear(data *[]byte) error {
	s, err := lookupStrip(data)
	if err != nil {
		return err
	}
	clear(s.buf)
	if IsShutdown() {
		return nil
	}
	return s.strip.Clear(len(s.buf) / 3)
}

// ShutdownAllStrips blanks every strip. It runs as a shutdown hook, so the
// frames go out even though sends are refused afterwards.
func ShutdownAllStrips() {
	for oid, s := range strips {
		clear(s.buf)
		_ = s.strip.Clear(len(s.buf) / 3)
		RecordFrameEvent(EvtShutdown, oid, 0, 0)
	}
}

// releaseAllStrips blanks and forgets every strip, so a reconnecting host
// starts from an empty registry with the lines dark.
func releaseAllStrips() {
	for _, s := range strips {
		clear(s.buf)
		_ = s.strip.Clear(len(s.buf) / 3)
	}
	resetStrips()
}

// resetStrips forgets every configured strip.
func resetStrips() {
	clear(strips)
}

// StripBuffer returns a strip's pixel buffer, for tests and diagnostics.
func StripBuffer(oid uint8) ([]byte, bool) {
	s, ok := strips[oid]
	if !ok {
		return nil, false
	}
	return s.buf, true
}
