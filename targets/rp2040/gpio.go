//go:build rp2040

package main

import (
	"errors"
	"machine"
	"runtime/volatile"
	"strconv"
	"unsafe"

	"gopixel/core"
)

const (
	sioBase      = 0xd0000000
	sioGPIOOut   = sioBase + 0x010
	rp2040NumPin = 30
)

var errPinRange = errors.New("gpio: pin out of range")

// sioPort is the single cycle SIO output register shared by all GPIOs.
type sioPort struct {
	out *volatile.Register32
}

var bank0 = &sioPort{out: (*volatile.Register32)(unsafe.Pointer(uintptr(sioGPIOOut)))}

func (p *sioPort) Get() uint32  { return p.out.Get() }
func (p *sioPort) Set(v uint32) { p.out.Set(v) }

// RPGPIODriver implements core.GPIODriver.
type RPGPIODriver struct {
	configuredPins map[core.GPIOPin]machine.Pin
}

func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{configuredPins: make(map[core.GPIOPin]machine.Pin)}
}

func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if pin >= rp2040NumPin {
		return errPinRange
	}
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}
	mp := machine.Pin(pin)
	mp.Configure(machine.PinConfig{Mode: machine.PinOutput})
	mp.Low()
	d.configuredPins[pin] = mp
	return nil
}

func (d *RPGPIODriver) FastPort(pin core.GPIOPin) (core.FastPort, uint32, error) {
	if pin >= rp2040NumPin {
		return nil, 0, errPinRange
	}
	return bank0, 1 << pin, nil
}

// registerRP2040Pins publishes the pin enumeration, gpio0 to gpio29.
func registerRP2040Pins() {
	names := make([]string, rp2040NumPin)
	for i := range names {
		names[i] = "gpio" + strconv.Itoa(i)
	}
	core.RegisterEnumeration("pin", names)
}
