package mcu

import (
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"gopixel/core"
	"gopixel/protocol"
)

var ErrShowFailed = errors.New("mcu reported a failed frame")

// StripParams describes one strip for config_clockless.
type StripParams struct {
	OID     uint8
	Pin     uint32
	Pixels  int
	Timing  core.Timing
	Order   core.ColorOrder
	Backend string // timer, pio or bitbang
}

func (m *MCU) enum(name, value string) (int, error) {
	d := m.GetDictionary()
	if d.Enumerations == nil {
		return 0, ErrNoDictionary
	}
	v, ok := d.Enum(name, value)
	if !ok {
		return 0, fmt.Errorf("firmware has no %s %q (have %v)", name, value, d.EnumNames(name))
	}
	return v, nil
}

func (m *MCU) configArgs(p StripParams) ([]any, error) {
	order, err := m.enum("order", p.Order.String())
	if err != nil {
		return nil, err
	}
	backend := p.Backend
	if backend == "" {
		backend = "timer"
	}
	be, err := m.enum("backend", backend)
	if err != nil {
		return nil, err
	}
	return []any{
		p.OID, p.Pin, p.Pixels * 3,
		uint32(p.Timing.T1.Nanoseconds()),
		uint32(p.Timing.T2.Nanoseconds()),
		uint32(p.Timing.T3.Nanoseconds()),
		uint32(p.Timing.Reset.Microseconds()),
		order, p.Timing.ExtraBits, be,
	}, nil
}

// ConfigStrip sends config_clockless for one strip.
func (m *MCU) ConfigStrip(p StripParams) error {
	args, err := m.configArgs(p)
	if err != nil {
		return err
	}
	return m.SendCommand("config_clockless", args...)
}

// ConfigCRC identifies a strip set so an unchanged configuration is not
// sent twice.
func (m *MCU) ConfigCRC(strips []StripParams) (uint32, error) {
	h := crc32.NewIEEE()
	for _, p := range strips {
		args, err := m.configArgs(p)
		if err != nil {
			return 0, err
		}
		fmt.Fprintln(h, append([]any{"config_clockless"}, args...)...)
	}
	return h.Sum32(), nil
}

// Configure brings the firmware to exactly this strip set. A matching
// configuration is left alone; any other one is reset first.
func (m *MCU) Configure(strips []StripParams) error {
	crc, err := m.ConfigCRC(strips)
	if err != nil {
		return err
	}
	state, err := m.GetConfig()
	if err != nil {
		return err
	}
	if state.IsShutdown {
		return errors.New("mcu is shut down; reset it first")
	}
	if state.IsConfig {
		if state.CRC == crc {
			return nil
		}
		if err := m.SendCommand("config_reset"); err != nil {
			return err
		}
	}
	if err := m.SendCommand("allocate_oids", len(strips)); err != nil {
		return err
	}
	for _, p := range strips {
		if err := m.ConfigStrip(p); err != nil {
			return fmt.Errorf("strip oid %d: %w", p.OID, err)
		}
	}
	return m.SendCommand("finalize_config", crc)
}

// updateChunk is how many data bytes fit one clockless_update block at pos.
func (m *MCU) updateChunk(oid uint8, pos int) (int, error) {
	f, err := m.lookupCommand("clockless_update")
	if err != nil {
		return 0, err
	}
	n := protocol.MessagePayloadMax - 1 - // data length prefix
		protocol.VLQUintSize(uint32(f.ID)) -
		protocol.VLQUintSize(uint32(oid)) -
		protocol.VLQUintSize(uint32(pos))
	return n - n%3, nil
}

// UpdatePixels writes packed RGB data at byte offset pos, split into
// single block updates.
func (m *MCU) UpdatePixels(oid uint8, pos int, data []byte) error {
	for len(data) > 0 {
		n, err := m.updateChunk(oid, pos)
		if err != nil {
			return err
		}
		n = min(n, len(data))
		if err := m.SendCommand("clockless_update", oid, pos, data[:n]); err != nil {
			return err
		}
		data = data[n:]
		pos += n
	}
	return nil
}

func (m *MCU) SetScale(oid uint8, scale core.RGB, dither core.Dither) error {
	return m.SendCommand("clockless_set_scale", oid, scale.R, scale.G, scale.B, uint8(dither))
}

// SetTolerance enables the interrupt tolerant mode; 0 disables it.
func (m *MCU) SetTolerance(oid uint8, threshold time.Duration) error {
	return m.SendCommand("clockless_tolerance", oid, uint32(threshold.Microseconds()))
}

// Show latches the strip buffer. A frame the firmware refused or overran
// returns ErrShowFailed.
func (m *MCU) Show(oid uint8) error {
	resp, err := m.Query("clockless_send", "clockless_result", oid)
	if err != nil {
		return err
	}
	if got := resp.Uint("oid"); got != uint32(oid) {
		return fmt.Errorf("clockless_result for oid %d, want %d", got, oid)
	}
	if resp.Uint("success") == 0 {
		return fmt.Errorf("oid %d: %w", oid, ErrShowFailed)
	}
	return nil
}

// ClearStrip blanks the strip and its buffer.
func (m *MCU) ClearStrip(oid uint8) error {
	return m.SendCommand("clockless_clear", oid)
}

func (m *MCU) GetClock() (uint32, error) {
	resp, err := m.Query("get_clock", "clock")
	if err != nil {
		return 0, err
	}
	return resp.Uint("clock"), nil
}

func (m *MCU) GetUptime() (uint64, error) {
	resp, err := m.Query("get_uptime", "uptime")
	if err != nil {
		return 0, err
	}
	return uint64(resp.Uint("high"))<<32 | uint64(resp.Uint("clock")), nil
}

// ConfigState is the config response.
type ConfigState struct {
	IsConfig   bool
	CRC        uint32
	IsShutdown bool
	MoveCount  uint32
}

func (m *MCU) GetConfig() (ConfigState, error) {
	resp, err := m.Query("get_config", "config")
	if err != nil {
		return ConfigState{}, err
	}
	return ConfigState{
		IsConfig:   resp.Uint("is_config") != 0,
		CRC:        resp.Uint("crc"),
		IsShutdown: resp.Uint("is_shutdown") != 0,
		MoveCount:  resp.Uint("move_count"),
	}, nil
}
