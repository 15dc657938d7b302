//go:build rp2040

package main

import "machine"

// LinkKind selects the transport to the host.
type LinkKind uint8

const (
	LinkUSB  LinkKind = iota // USB CDC through machine.Serial
	LinkUART                 // PL011 through uartx, for boards without USB
)

// ModeConfig is chosen at compile time.
type ModeConfig struct {
	Link LinkKind

	UARTTx   machine.Pin
	UARTRx   machine.Pin
	UARTBaud uint32

	// DebugUART sends core debug output to UART1 on DebugTx/DebugRx.
	DebugUART bool
	DebugTx   machine.Pin
	DebugRx   machine.Pin

	// TimerSlice is the PWM slice used as the pulse timer. Its pins must
	// not be used for PWM output.
	TimerSlice uint8
}

func GetMode() ModeConfig {
	return ModeConfig{
		Link:       LinkUSB,
		UARTTx:     machine.GPIO0,
		UARTRx:     machine.GPIO1,
		UARTBaud:   250000,
		DebugUART:  false,
		DebugTx:    machine.GPIO4,
		DebugRx:    machine.GPIO5,
		TimerSlice: 7,
	}
}
