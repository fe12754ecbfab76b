package hostcore

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

type (
	// Event is the canonical timestamped event seen by the scheduler. It is a
	// tagged union: Type tells whether Control or MIDI holds the payload.
	// Events are values; once written into an EventBuffer they are never
	// modified by the consumers.
	Event struct {
		Type EventType

		// Time is the frame offset of the event, relative to the start of the
		// current processing cycle. 0 <= Time < cycle length.
		Time int

		// Channel is the MIDI channel 0..15, or NonMIDIChannel for control
		// events that are not tied to a MIDI channel.
		Channel int8

		Control ControlEvent
		MIDI    MIDIEvent
	}

	// ControlEvent is a host-level control message: a parameter change, bank
	// or program selection, or all sound/notes off.
	ControlEvent struct {
		Type ControlType

		// Param is the parameter index (or MIDI controller number when Event
		// Channel is a MIDI channel), the bank or the program number.
		Param uint16

		// Value is the normalized value, 0..1. Only used with
		// ControlTypeParameter.
		Value float32

		// Handled is set when a consumer has claimed the event. The engine
		// sets it for MIDI controllers taken by a shortcut or a parameter
		// binding and reports the others as unclaimed.
		Handled bool
	}

	// MIDIEvent is a raw MIDI message. Messages of up to MIDIDataSize bytes
	// are stored inline in Data; longer messages (e.g. sysex) point to Ext,
	// which is borrowed from the event source and is only valid until the
	// end of the current cycle.
	MIDIEvent struct {
		Port uint8 // index of the input port the event arrived from
		Size int
		Data [MIDIDataSize]byte
		Ext  []byte
	}

	EventType uint8

	ControlType uint8
)

const (
	EventTypeNull EventType = iota
	EventTypeControl
	EventTypeMIDI
)

const (
	ControlTypeNull ControlType = iota
	ControlTypeParameter
	ControlTypeMIDIBank
	ControlTypeMIDIProgram
	ControlTypeAllSoundOff
	ControlTypeAllNotesOff
)

const (
	// MIDIDataSize is the inline capacity of MIDIEvent.Data.
	MIDIDataSize = 4

	// NonMIDIChannel marks control events which are not channel-specific.
	NonMIDIChannel int8 = -1

	MaxMIDIChannels = 16
	MaxMIDIValue    = 128
	MaxMIDINotes    = 128

	// MaxMIDIEvents is the capacity of the native event queue handed to a
	// plugin in one render call.
	MaxMIDIEvents = 512
)

// MIDI status bytes, with the channel nibble cleared.
const (
	StatusNoteOff         byte = 0x80
	StatusNoteOn          byte = 0x90
	StatusPolyAftertouch  byte = 0xA0
	StatusControlChange   byte = 0xB0
	StatusProgramChange   byte = 0xC0
	StatusChannelPressure byte = 0xD0
	StatusPitchBend       byte = 0xE0
)

// MIDI controller numbers with a special meaning for the host.
const (
	ControlBankSelect       uint16 = 0x00
	ControlBreath           uint16 = 0x02
	ControlChannelVolume    uint16 = 0x07
	ControlBalance          uint16 = 0x08
	ControlBankSelectLSB    uint16 = 0x20
	ControlBreathLSB        uint16 = 0x22
	ControlChannelVolumeLSB uint16 = 0x27
	ControlBalanceLSB       uint16 = 0x28
	ControlAllSoundOff      uint16 = 0x78
	ControlAllNotesOff      uint16 = 0x7B
)

func IsBankSelect(c uint16) bool    { return c == ControlBankSelect || c == ControlBankSelectLSB }
func IsBreath(c uint16) bool        { return c == ControlBreath || c == ControlBreathLSB }
func IsChannelVolume(c uint16) bool { return c == ControlChannelVolume || c == ControlChannelVolumeLSB }
func IsBalance(c uint16) bool       { return c == ControlBalance || c == ControlBalanceLSB }

// StatusOf returns the status byte of a MIDI message with the channel nibble
// cleared for channel voice messages. System messages are returned as is.
func StatusOf(b byte) byte {
	if b < 0xF0 {
		return b & 0xF0
	}
	return b
}

// Bytes returns the raw message, from Ext when the message did not fit inline.
func (m *MIDIEvent) Bytes() []byte {
	if m.Ext != nil {
		return m.Ext
	}
	return m.Data[:m.Size]
}

// Status returns the status byte of the message without the channel.
func (m *MIDIEvent) Status() byte {
	b := m.Bytes()
	if len(b) == 0 {
		return 0
	}
	return StatusOf(b[0])
}

func (m *MIDIEvent) String() string {
	return fmt.Sprintf("MIDI{port:%d, %s}", m.Port, midi.Message(m.Bytes()).String())
}

func (e Event) String() string {
	switch e.Type {
	case EventTypeControl:
		return fmt.Sprintf("Control{time:%d, ch:%d, %s}", e.Time, e.Channel, e.Control)
	case EventTypeMIDI:
		return fmt.Sprintf("%d@%s", e.Time, e.MIDI.String())
	}
	return "Null"
}

func (c ControlEvent) String() string {
	return fmt.Sprintf("%s param:%d value:%.3f", c.Type, c.Param, c.Value)
}

func (t ControlType) String() string {
	switch t {
	case ControlTypeParameter:
		return "Parameter"
	case ControlTypeMIDIBank:
		return "MIDIBank"
	case ControlTypeMIDIProgram:
		return "MIDIProgram"
	case ControlTypeAllSoundOff:
		return "AllSoundOff"
	case ControlTypeAllNotesOff:
		return "AllNotesOff"
	}
	return "Null"
}

// ControlAt returns a control event at the given frame.
func ControlAt(time int, channel int8, typ ControlType, param uint16, value float32) Event {
	return Event{
		Type:    EventTypeControl,
		Time:    time,
		Channel: channel,
		Control: ControlEvent{Type: typ, Param: param, Value: value},
	}
}
