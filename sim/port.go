package sim

// Edge is a change of the port value at a virtual tick.
type Edge struct {
	Tick  uint64
	Value uint32
}

// Port is a core.FastPort that records every change with the timer's
// virtual time.
type Port struct {
	timer *Timer
	value uint32
	edges []Edge
	sets  int
}

func NewPort(timer *Timer) *Port {
	return &Port{timer: timer}
}

func (p *Port) Get() uint32 { return p.value }

func (p *Port) Set(v uint32) {
	p.sets++
	if v == p.value {
		return
	}
	p.value = v
	p.edges = append(p.edges, Edge{Tick: p.timer.Now(), Value: v})
}

// Edges returns the changes recorded since the last Take.
func (p *Port) Edges() []Edge { return p.edges }

// Take returns the recorded changes and starts a new capture.
func (p *Port) Take() []Edge {
	e := p.edges
	p.edges = nil
	return e
}

// Sets counts Set calls, including ones that did not change the value.
func (p *Port) Sets() int { return p.sets }

// Poke changes bits outside the driven pin, as an interrupt handler would.
func (p *Port) Poke(v uint32) { p.value = v }
