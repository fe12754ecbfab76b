package hostcore

// Merger walks several ports in global time order without copying their
// events. Ties are broken by the lowest port index, so events of the same
// frame keep the order of the ports. With a single port the events are read
// directly.
//
// Begin must be called at the start of every cycle; it snapshots the event
// counts, so events written to a port after Begin are not seen until the next
// cycle.
type Merger struct {
	ports  []Port
	counts []int
	used   []int
}

func NewMerger(ports ...Port) *Merger {
	return &Merger{
		ports:  ports,
		counts: make([]int, len(ports)),
		used:   make([]int, len(ports)),
	}
}

// Begin resets the read cursors for a new cycle.
func (m *Merger) Begin() {
	for i, p := range m.ports {
		m.counts[i] = p.EventCount()
		m.used[i] = 0
	}
}

// Next returns the next event in time order and the index of the port it
// came from. ok is false when all ports are exhausted.
func (m *Merger) Next() (ev Event, port int, ok bool) {
	switch len(m.ports) {
	case 0:
		return Event{}, 0, false
	case 1:
		if m.used[0] >= m.counts[0] {
			return Event{}, 0, false
		}
		ev = m.ports[0].EventAt(m.used[0])
		m.used[0]++
		return ev, 0, true
	}
	found := false
	lowest := 0
	for i, p := range m.ports {
		if m.used[i] >= m.counts[i] {
			continue
		}
		t := p.EventAt(m.used[i]).Time
		if !found || t < lowest {
			lowest, port, found = t, i, true
		}
	}
	if !found {
		return Event{}, 0, false
	}
	ev = m.ports[port].EventAt(m.used[port])
	m.used[port]++
	return ev, port, true
}

// NumPorts returns the number of merged ports.
func (m *Merger) NumPorts() int { return len(m.ports) }
