//go:build !tinygo

package core

import "sync/atomic"

type interruptState uintptr

// interruptDepth counts open critical sections so host tests can check
// every path releases its guard.
var interruptDepth atomic.Int32

func disableInterrupts() interruptState {
	interruptDepth.Add(1)
	return 0
}

func restoreInterrupts(interruptState) {
	interruptDepth.Add(-1)
}
