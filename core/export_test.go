package core

// InterruptDepth reports open critical sections to external tests.
func InterruptDepth() int32 { return interruptDepth.Load() }
