//go:build rp2040

package main

import "machine"

// hostLink is the byte stream to the host.
type hostLink interface {
	Buffered() int
	ReadByte() (byte, error)
	Write(data []byte) (int, error)
}

// usbLink is TinyGo's USB CDC-ACM serial; descriptors come from the runtime.
type usbLink struct{}

func newUSBLink() hostLink {
	_ = machine.Serial.Configure(machine.UARTConfig{})
	return usbLink{}
}

func (usbLink) Buffered() int                  { return machine.Serial.Buffered() }
func (usbLink) ReadByte() (byte, error)        { return machine.Serial.ReadByte() }
func (usbLink) Write(data []byte) (int, error) { return machine.Serial.Write(data) }
