package hostcore

type (
	// Port is an ordered source of events for one processing cycle. The
	// events must be in non-decreasing Time order; this is a contract for the
	// producer and is not checked by the consumers. The events are valid until
	// the end of the cycle.
	Port interface {
		EventCount() int
		EventAt(index int) Event
	}

	// EventBuffer is a fixed capacity Port. The host fills it before each
	// cycle and clears it afterwards; writing never allocates.
	EventBuffer struct {
		events []Event
		port   uint8
	}
)

// NewEventBuffer returns an EventBuffer for events arriving on the given port
// index, holding at most capacity events per cycle.
func NewEventBuffer(port uint8, capacity int) *EventBuffer {
	if capacity <= 0 {
		capacity = MaxMIDIEvents
	}
	return &EventBuffer{events: make([]Event, 0, capacity), port: port}
}

func (b *EventBuffer) EventCount() int { return len(b.events) }

// EventAt returns the event at index, or a null event if index is out of
// range.
func (b *EventBuffer) EventAt(index int) Event {
	if index < 0 || index >= len(b.events) {
		return Event{}
	}
	return b.events[index]
}

// Write appends an event. It returns false if the buffer is full or the event
// is a null event.
func (b *EventBuffer) Write(ev Event) bool {
	if ev.Type == EventTypeNull || len(b.events) == cap(b.events) {
		return false
	}
	if ev.Type == EventTypeMIDI {
		ev.MIDI.Port = b.port
	}
	b.events = append(b.events, ev)
	return true
}

// WriteMIDI converts raw MIDI bytes with FromMIDI and appends the result.
// Malformed messages are dropped. Messages longer than MIDIDataSize are
// borrowed, not copied.
func (b *EventBuffer) WriteMIDI(time int, data []byte) bool {
	ev := FromMIDI(data, b.port)
	ev.Time = time
	return b.Write(ev)
}

// WriteControl appends a control event.
func (b *EventBuffer) WriteControl(time int, channel int8, typ ControlType, param uint16, value float32) bool {
	return b.Write(ControlAt(time, channel, typ, param, value))
}

// Clear removes all events but keeps the capacity.
func (b *EventBuffer) Clear() {
	b.events = b.events[:0]
}

// Port returns the port index given at construction.
func (b *EventBuffer) Port() uint8 { return b.port }
