package hostcore_test

import (
	"math"
	"testing"

	"github.com/vsariola/hostcore"
)

func TestFromMIDIMalformed(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x3C}, {0x7F, 0x90}, {0xB0}, {0xC0}} {
		ev := hostcore.FromMIDI(data, 0)
		if ev.Type != hostcore.EventTypeNull || ev.Channel != 0 {
			t.Errorf("FromMIDI(%v) = %v, want a null event on channel 0", data, ev)
		}
	}
}

func TestFromMIDI(t *testing.T) {
	for _, tc := range []struct {
		name    string
		data    []byte
		typ     hostcore.EventType
		control hostcore.ControlType
		channel int8
		param   uint16
	}{
		{"note on", []byte{0x93, 60, 100}, hostcore.EventTypeMIDI, hostcore.ControlTypeNull, 3, 0},
		{"cc", []byte{0xB2, 74, 64}, hostcore.EventTypeControl, hostcore.ControlTypeParameter, 2, 74},
		{"bank msb", []byte{0xB0, 0, 5}, hostcore.EventTypeControl, hostcore.ControlTypeMIDIBank, 0, 5},
		{"bank lsb", []byte{0xB0, 32, 6}, hostcore.EventTypeControl, hostcore.ControlTypeMIDIBank, 0, 6},
		{"all sound off", []byte{0xBF, 120, 0}, hostcore.EventTypeControl, hostcore.ControlTypeAllSoundOff, 15, 0},
		{"all notes off", []byte{0xB1, 123, 0}, hostcore.EventTypeControl, hostcore.ControlTypeAllNotesOff, 1, 0},
		{"program", []byte{0xC4, 9}, hostcore.EventTypeControl, hostcore.ControlTypeMIDIProgram, 4, 9},
		{"two byte cc", []byte{0xB0, 10}, hostcore.EventTypeControl, hostcore.ControlTypeParameter, 0, 10},
		{"pitch bend", []byte{0xE5, 0, 64}, hostcore.EventTypeMIDI, hostcore.ControlTypeNull, 5, 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ev := hostcore.FromMIDI(tc.data, 0)
			if ev.Type != tc.typ || ev.Channel != tc.channel {
				t.Fatalf("got %v, want type %d channel %d", ev, tc.typ, tc.channel)
			}
			if tc.typ == hostcore.EventTypeControl && (ev.Control.Type != tc.control || ev.Control.Param != tc.param) {
				t.Errorf("got control %v, want %v param %d", ev.Control, tc.control, tc.param)
			}
		})
	}
}

func TestFromMIDILongMessage(t *testing.T) {
	sysex := []byte{0xF0, 1, 2, 3, 4, 5, 0xF7}
	ev := hostcore.FromMIDI(sysex, 2)
	if ev.Type != hostcore.EventTypeMIDI || ev.MIDI.Size != len(sysex) || ev.MIDI.Port != 2 {
		t.Fatalf("unexpected event %v", ev)
	}
	if &ev.MIDI.Bytes()[0] != &sysex[0] {
		t.Error("expected a long message to be borrowed, not copied")
	}
}

func TestControlRoundTrip(t *testing.T) {
	step := 1.0 / float64(hostcore.MaxMIDIValue-1)
	for ch := uint8(0); ch < hostcore.MaxMIDIChannels; ch += 5 {
		for _, c := range []hostcore.ControlEvent{
			{Type: hostcore.ControlTypeMIDIBank, Param: 3, Handled: true},
			{Type: hostcore.ControlTypeMIDIProgram, Param: 127, Handled: true},
			{Type: hostcore.ControlTypeAllSoundOff, Handled: true},
			{Type: hostcore.ControlTypeAllNotesOff, Handled: true},
		} {
			data, n := c.ToMIDI(ch)
			got := hostcore.FromMIDI(data[:n], 0)
			if got.Control != c || got.Channel != int8(ch) {
				t.Errorf("%v on channel %d: round trip gave %v", c, ch, got)
			}
		}
		for v := float32(0); v <= 1; v += 0.013 {
			c := hostcore.ControlEvent{Type: hostcore.ControlTypeParameter, Param: 74, Value: v}
			data, n := c.ToMIDI(ch)
			got := hostcore.FromMIDI(data[:n], 0)
			if got.Control.Type != c.Type || got.Control.Param != c.Param || got.Channel != int8(ch) {
				t.Fatalf("%v on channel %d: round trip gave %v", c, ch, got)
			}
			if d := math.Abs(float64(got.Control.Value - v)); d > step {
				t.Errorf("value %v came back as %v", v, got.Control.Value)
			}
		}
	}
}

func TestToMIDINoRepresentation(t *testing.T) {
	for _, c := range []hostcore.ControlEvent{
		{},
		{Type: hostcore.ControlTypeParameter, Param: 128},
		{Type: hostcore.ControlTypeParameter, Param: 1000},
	} {
		if _, n := c.ToMIDI(0); n != 0 {
			t.Errorf("%v: expected no MIDI representation, got %d bytes", c, n)
		}
		if _, ok := c.ToMIDIEvent(0, 0); ok {
			t.Errorf("%v: expected ToMIDIEvent to fail", c)
		}
	}
}

func TestToMIDIEvent(t *testing.T) {
	c := hostcore.ControlEvent{Type: hostcore.ControlTypeMIDIProgram, Param: 200}
	ev, ok := c.ToMIDIEvent(17, 9)
	if !ok {
		t.Fatal("expected a MIDI event")
	}
	if ev.Time != 17 || ev.Channel != 9 || ev.MIDI.Size != 2 || ev.MIDI.Data[0] != 0xC9 || ev.MIDI.Data[1] != 127 {
		t.Errorf("unexpected event %v", ev)
	}
}
