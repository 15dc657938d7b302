package core

import "time"

// MinWait enforces the latch gap between frames. Wait blocks until the gap
// has passed since the last Mark; before the first Mark it returns at once.
type MinWait struct {
	gap    uint32 // microseconds
	last   uint32
	marked bool
	micros func() uint32
}

// NewMinWait returns a guard for gap, rounded up to whole microseconds.
func NewMinWait(gap time.Duration) MinWait {
	return MinWait{gap: uint32((gap + time.Microsecond - 1) / time.Microsecond)}
}

func (w *MinWait) now() uint32 {
	if w.micros != nil {
		return w.micros()
	}
	return Micros()
}

// Wait busy-polls the microsecond counter. Unsigned subtraction keeps it
// correct across counter wrap.
func (w *MinWait) Wait() {
	if !w.marked {
		return
	}
	for w.now()-w.last < w.gap {
	}
}

// Mark records the end of a frame.
func (w *MinWait) Mark() {
	w.last = w.now()
	w.marked = true
}

// Gap returns the configured latch gap.
func (w *MinWait) Gap() time.Duration {
	return time.Duration(w.gap) * time.Microsecond
}
