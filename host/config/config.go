// Package config loads the host's JSON strip file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopixel/core"
	"gopixel/host/mcu"
	"gopixel/host/serial"
)

// Config is the strip file.
type Config struct {
	Device string  `json:"device"`
	Baud   int     `json:"baud"`
	Strips []Strip `json:"strips"`
}

// Strip is one output. Chipset selects a timing preset; explicit T1/T2/T3
// override it.
type Strip struct {
	OID         uint8  `json:"oid"`
	Pin         uint32 `json:"pin"`
	Pixels      int    `json:"pixels"`
	Chipset     string `json:"chipset"`
	T1          uint32 `json:"t1_ns"`
	T2          uint32 `json:"t2_ns"`
	T3          uint32 `json:"t3_ns"`
	ResetUS     uint32 `json:"reset_us"`
	ExtraBits   uint8  `json:"extra_bits"`
	Order       string `json:"order"`
	Brightness  uint8  `json:"brightness"`
	Dither      bool   `json:"dither"`
	Backend     string `json:"backend"`
	ToleranceUS uint32 `json:"tolerance_us"`
}

// LoadConfig parses a strip file and fills in defaults.
func LoadConfig(jsonData []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Device == "" {
		cfg.Device = "/dev/ttyACM0"
	}
	if cfg.Baud == 0 {
		cfg.Baud = serial.DefaultBaud
	}
	for i := range cfg.Strips {
		s := &cfg.Strips[i]
		if s.Chipset == "" && s.T1 == 0 && s.T2 == 0 && s.T3 == 0 {
			s.Chipset = "WS2812"
		}
		if s.Order == "" {
			s.Order = "GRB"
		}
		if s.Brightness == 0 {
			s.Brightness = 255
		}
		if s.Backend == "" {
			s.Backend = "timer"
		}
	}
}

// DefaultConfig is one 60 pixel WS2812 strip on GPIO 16.
func DefaultConfig() *Config {
	cfg := &Config{Strips: []Strip{{Pin: 16, Pixels: 60}}}
	applyDefaults(cfg)
	return cfg
}

func (cfg *Config) Validate() error {
	seen := map[uint8]bool{}
	for _, s := range cfg.Strips {
		if seen[s.OID] {
			return fmt.Errorf("strip oid %d defined twice", s.OID)
		}
		seen[s.OID] = true
		if s.Pixels <= 0 || s.Pixels*3 > core.ClocklessMaxBytes {
			return fmt.Errorf("strip oid %d: %d pixels out of range", s.OID, s.Pixels)
		}
		if _, err := s.Timing(); err != nil {
			return fmt.Errorf("strip oid %d: %w", s.OID, err)
		}
		if _, ok := core.ParseColorOrder(s.Order); !ok {
			return fmt.Errorf("strip oid %d: unknown color order %q", s.OID, s.Order)
		}
	}
	return nil
}

// Timing resolves the chipset preset and applies explicit overrides.
func (s Strip) Timing() (core.Timing, error) {
	var t core.Timing
	if s.Chipset != "" {
		var ok bool
		if t, ok = core.PresetByName(s.Chipset); !ok {
			return t, fmt.Errorf("unknown chipset %q (have %v)", s.Chipset, core.PresetNames())
		}
	}
	if s.T1 != 0 {
		t.T1 = time.Duration(s.T1) * time.Nanosecond
	}
	if s.T2 != 0 {
		t.T2 = time.Duration(s.T2) * time.Nanosecond
	}
	if s.T3 != 0 {
		t.T3 = time.Duration(s.T3) * time.Nanosecond
	}
	if s.ResetUS != 0 {
		t.Reset = time.Duration(s.ResetUS) * time.Microsecond
	}
	if s.ExtraBits != 0 {
		t.ExtraBits = s.ExtraBits
	}
	if t.T1 <= 0 || t.T2 <= 0 || t.T3 <= 0 {
		return t, core.ErrTimingOrder
	}
	return t, nil
}

// Params converts the strip for mcu.Configure. Validate must have passed.
func (s Strip) Params() mcu.StripParams {
	t, _ := s.Timing()
	order, _ := core.ParseColorOrder(s.Order)
	return mcu.StripParams{
		OID:     s.OID,
		Pin:     s.Pin,
		Pixels:  s.Pixels,
		Timing:  t,
		Order:   order,
		Backend: s.Backend,
	}
}

func (s Strip) Scale() core.RGB {
	return core.RGB{R: s.Brightness, G: s.Brightness, B: s.Brightness}
}

func (s Strip) DitherMode() core.Dither {
	if s.Dither {
		return core.DitherBinary
	}
	return core.DitherNone
}

func (s Strip) Tolerance() time.Duration {
	return time.Duration(s.ToleranceUS) * time.Microsecond
}

// SerialConfig returns the port settings for the file's device.
func (cfg *Config) SerialConfig() *serial.Config {
	sc := serial.DefaultConfig(cfg.Device)
	sc.Baud = cfg.Baud
	return sc
}

// Strip returns the strip with the given oid.
func (cfg *Config) Strip(oid uint8) (Strip, bool) {
	for _, s := range cfg.Strips {
		if s.OID == oid {
			return s, true
		}
	}
	return Strip{}, false
}
