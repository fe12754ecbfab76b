package hostcore

import (
	"gitlab.com/gomidi/midi/v2"
)

// ToMIDI converts a control event to raw MIDI bytes on the given channel.
// size is the number of valid bytes in data; 0 means the event has no MIDI
// representation (null events, parameters outside the controller range).
func (c ControlEvent) ToMIDI(channel uint8) (data [3]byte, size int) {
	status := func(s byte) byte { return s | (channel & 0x0F) }
	switch c.Type {
	case ControlTypeParameter:
		if c.Param >= MaxMIDIValue {
			return data, 0
		}
		data[0] = status(StatusControlChange)
		if IsBankSelect(c.Param) {
			data[1] = byte(ControlBankSelect)
		} else {
			data[1] = byte(c.Param)
		}
		data[2] = scaleToMIDI(c.Value)
		return data, 3
	case ControlTypeMIDIBank:
		data[0] = status(StatusControlChange)
		data[1] = byte(ControlBankSelect)
		data[2] = clampMIDI(c.Param)
		return data, 3
	case ControlTypeMIDIProgram:
		data[0] = status(StatusProgramChange)
		data[1] = clampMIDI(c.Param)
		return data, 2
	case ControlTypeAllSoundOff:
		data[0] = status(StatusControlChange)
		data[1] = byte(ControlAllSoundOff)
		return data, 2
	case ControlTypeAllNotesOff:
		data[0] = status(StatusControlChange)
		data[1] = byte(ControlAllNotesOff)
		return data, 2
	}
	return data, 0
}

// ToMIDIEvent is ToMIDI wrapped into a MIDI event at the given frame. ok is
// false if the control event has no MIDI representation.
func (c ControlEvent) ToMIDIEvent(time int, channel uint8) (ev Event, ok bool) {
	data, n := c.ToMIDI(channel)
	if n == 0 {
		return Event{}, false
	}
	ev = Event{Type: EventTypeMIDI, Time: time, Channel: int8(channel & 0x0F)}
	copy(ev.MIDI.Data[:], data[:n])
	ev.MIDI.Size = n
	return ev, true
}

// FromMIDI classifies a raw MIDI message. Control changes and program changes
// become control events; everything else is passed through as a MIDI event.
// The function is total: an empty buffer or a buffer not starting with a
// status byte yields a null event with channel 0. Time is left at zero.
//
// Messages longer than MIDIDataSize are not copied: the returned event
// borrows data, so data must stay valid until the end of the cycle.
func FromMIDI(data []byte, port uint8) Event {
	if len(data) == 0 || data[0] < StatusNoteOff {
		return Event{}
	}
	status := StatusOf(data[0])
	var ev Event
	if status < 0xF0 {
		ev.Channel = int8(data[0] & 0x0F)
	}
	msg := midi.Message(data)
	switch status {
	case StatusControlChange:
		if len(data) < 2 {
			return Event{}
		}
		var ch, controller, value uint8
		if len(data) < 3 || !msg.GetControlChange(&ch, &controller, &value) {
			// a two byte control change is broken, but we still honour the
			// controller number
			controller, value = data[1]&0x7F, 0
		}
		ev.Type = EventTypeControl
		cc := uint16(controller)
		switch {
		case IsBankSelect(cc):
			ev.Control = ControlEvent{Type: ControlTypeMIDIBank, Param: uint16(value), Handled: true}
		case cc == ControlAllSoundOff:
			ev.Control = ControlEvent{Type: ControlTypeAllSoundOff, Handled: true}
		case cc == ControlAllNotesOff:
			ev.Control = ControlEvent{Type: ControlTypeAllNotesOff, Handled: true}
		default:
			ev.Control = ControlEvent{Type: ControlTypeParameter, Param: cc, Value: float32(value&0x7F) / float32(MaxMIDIValue-1)}
		}
		return ev
	case StatusProgramChange:
		if len(data) < 2 {
			return Event{}
		}
		var ch, program uint8
		if !msg.GetProgramChange(&ch, &program) {
			program = data[1] & 0x7F
		}
		ev.Type = EventTypeControl
		ev.Control = ControlEvent{Type: ControlTypeMIDIProgram, Param: uint16(program), Handled: true}
		return ev
	}
	ev.Type = EventTypeMIDI
	ev.MIDI.Port = port
	ev.MIDI.Size = len(data)
	if len(data) > MIDIDataSize {
		ev.MIDI.Ext = data
		return ev
	}
	copy(ev.MIDI.Data[:], data)
	return ev
}

func scaleToMIDI(v float32) byte {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 1:
		return MaxMIDIValue - 1
	}
	return byte(v*float32(MaxMIDIValue-1) + 0.5)
}

func clampMIDI(v uint16) byte {
	if v >= MaxMIDIValue {
		return MaxMIDIValue - 1
	}
	return byte(v)
}
