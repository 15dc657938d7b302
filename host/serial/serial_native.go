//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// NativePort wraps a tarm/serial port.
type NativePort struct {
	port *serial.Port
	cfg  *Config
}

func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("serial: nil config")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", cfg.Device, err)
	}
	return &NativePort{port: port, cfg: cfg}, nil
}

// Read returns (0, nil) when the read timeout expires. tarm/serial reports
// an expired timeout as io.EOF, which would otherwise end the reader.
func (p *NativePort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if n == 0 && errors.Is(err, io.EOF) {
		return 0, nil
	}
	return n, err
}

func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

func (p *NativePort) Close() error {
	if p.port == nil {
		return nil
	}
	return p.port.Close()
}

func (p *NativePort) Flush() error {
	return p.port.Flush()
}

// Device returns the path the port was opened with.
func (p *NativePort) Device() string { return p.cfg.Device }
