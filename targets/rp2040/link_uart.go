//go:build rp2040

package main

import (
	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
)

// newUARTLink returns the interrupt driven UART0. Writes block until the
// FIFO drains, which keeps ACKs ahead of responses.
func newUARTLink(mode ModeConfig) (hostLink, error) {
	u := uartx.UART0
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: mode.UARTBaud,
		TX:       mode.UARTTx,
		RX:       mode.UARTRx,
	}); err != nil {
		return nil, err
	}
	return u, nil
}

func openLink(mode ModeConfig) (hostLink, error) {
	if mode.Link == LinkUART {
		return newUARTLink(mode)
	}
	return newUSBLink(), nil
}
