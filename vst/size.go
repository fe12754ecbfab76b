// Package vst is the VST2 face of the host core: it turns the MIDI events a
// VST host sends into port events and wraps an engine into a VST2 plugin.
package vst

import "github.com/vsariola/hostcore"

// messageSize is the length of a short MIDI message starting with status, 0
// for messages that cannot be carried in a VST MIDI event.
func messageSize(status byte) int {
	switch hostcore.StatusOf(status) {
	case hostcore.StatusNoteOff, hostcore.StatusNoteOn, hostcore.StatusPolyAftertouch,
		hostcore.StatusControlChange, hostcore.StatusPitchBend:
		return 3
	case hostcore.StatusProgramChange, hostcore.StatusChannelPressure:
		return 2
	case 0xF1, 0xF3: // time code quarter frame, song select
		return 2
	case 0xF2: // song position
		return 3
	case 0xF6, 0xF8, 0xFA, 0xFB, 0xFC, 0xFE, 0xFF:
		return 1
	}
	return 0
}
