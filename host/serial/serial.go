package serial

import (
	"io"
	"time"
)

// Port is the byte stream to one MCU. Besides the native tarm/serial port,
// tests plug in one end of a net.Pipe.
type Port interface {
	io.ReadWriteCloser

	// Flush discards anything buffered but not yet read or sent.
	Flush() error
}

// Config holds serial port settings.
type Config struct {
	// Device path, e.g. /dev/ttyACM0 or COM3.
	Device string

	// Baud is ignored by USB CDC links but matters for the UART link.
	Baud int

	// ReadTimeout bounds one blocking read; 0 blocks forever.
	ReadTimeout time.Duration
}

// DefaultBaud matches the firmware's hardware UART link.
const DefaultBaud = 250000

func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100 * time.Millisecond,
	}
}
