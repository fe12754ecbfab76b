//go:build cgo

package vst_test

import (
	"testing"

	"github.com/vsariola/hostcore"
	"github.com/vsariola/hostcore/vst"
	"pipelined.dev/audio/vst2"
)

func TestInputWriteMIDIEvent(t *testing.T) {
	port := hostcore.NewEventBuffer(0, 8)
	in := vst.NewInput(port)
	if !in.WriteMIDIEvent(vst2.MIDIEvent{DeltaFrames: 12, Data: [3]byte{0x91, 60, 100}}) {
		t.Fatal("note on was dropped")
	}
	if !in.WriteMIDIEvent(vst2.MIDIEvent{DeltaFrames: 20, Data: [3]byte{0xC0, 5, 0}}) {
		t.Fatal("program change was dropped")
	}
	if in.WriteMIDIEvent(vst2.MIDIEvent{DeltaFrames: 30, Data: [3]byte{0xF0, 1, 2}}) {
		t.Error("sysex start should be dropped")
	}
	if port.EventCount() != 2 {
		t.Fatalf("expected 2 events, got %d", port.EventCount())
	}
	note := port.EventAt(0)
	if note.Type != hostcore.EventTypeMIDI || note.Time != 12 || note.Channel != 1 || note.MIDI.Size != 3 {
		t.Errorf("unexpected note event %v", note)
	}
	prg := port.EventAt(1)
	if prg.Type != hostcore.EventTypeControl || prg.Control.Type != hostcore.ControlTypeMIDIProgram || prg.Control.Param != 5 {
		t.Errorf("unexpected program event %v", prg)
	}
	in.Clear()
	if port.EventCount() != 0 {
		t.Errorf("expected an empty port after Clear, got %d events", port.EventCount())
	}
}
