package core

// criticalSection masks interrupts until exit. Callers pair enterCritical
// with a deferred exit so early returns release it too.
type criticalSection struct {
	state  interruptState
	active bool
}

func enterCritical() criticalSection {
	return criticalSection{state: disableInterrupts(), active: true}
}

// window lets pending interrupts run, then masks them again.
func (c *criticalSection) window() {
	if !c.active {
		return
	}
	restoreInterrupts(c.state)
	c.state = disableInterrupts()
}

func (c *criticalSection) exit() {
	if c.active {
		restoreInterrupts(c.state)
		c.active = false
	}
}
