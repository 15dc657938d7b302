//go:build tinygo

package core

import "runtime/volatile"

// Written by the main loop, read from command handlers.
var systemTicks volatile.Register32

func getSystemTicks() uint32 {
	return systemTicks.Get()
}

func setSystemTicks(ticks uint32) {
	systemTicks.Set(ticks)
}
