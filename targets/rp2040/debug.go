//go:build rp2040

package main

import (
	"machine"

	"gopixel/core"
)

// initDebugUART routes core debug output to UART1, away from the host link.
func initDebugUART(mode ModeConfig) {
	if !mode.DebugUART {
		return
	}
	uart := machine.UART1
	if err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       mode.DebugTx,
		RX:       mode.DebugRx,
	}); err != nil {
		return
	}
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte("\r\n"))
	})
	core.InitAsyncDebug()
	core.SetDebugEnabled(true)
	core.DebugPrintln("=== gopixel rp2040 debug UART ===")
}
