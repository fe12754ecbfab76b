//go:build cgo

package vst

import (
	"github.com/vsariola/hostcore"
	"pipelined.dev/audio/vst2"
)

// Input writes the MIDI events a VST host sends before each process call into
// an event port.
type Input struct {
	port *hostcore.EventBuffer
}

func NewInput(port *hostcore.EventBuffer) *Input {
	return &Input{port: port}
}

// ProcessEvents is the dispatcher callback receiving the host events. Events
// other than MIDI events are ignored.
func (in *Input) ProcessEvents(ev *vst2.EventsPtr) {
	for i := 0; i < ev.NumEvents(); i++ {
		if m, ok := ev.Event(i).(*vst2.MIDIEvent); ok {
			in.WriteMIDIEvent(*m)
		}
	}
}

// WriteMIDIEvent appends one MIDI event to the port. It returns false if the
// event was dropped.
func (in *Input) WriteMIDIEvent(m vst2.MIDIEvent) bool {
	n := messageSize(m.Data[0])
	if n == 0 || m.DeltaFrames < 0 {
		return false
	}
	return in.port.WriteMIDI(int(m.DeltaFrames), m.Data[:n])
}

// Clear empties the port after the cycle has been processed.
func (in *Input) Clear() { in.port.Clear() }
