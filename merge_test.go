package hostcore_test

import (
	"testing"

	"github.com/vsariola/hostcore"
)

func noteOn(t *testing.T, b *hostcore.EventBuffer, time int, note byte) {
	t.Helper()
	if !b.WriteMIDI(time, []byte{0x90, note, 100}) {
		t.Fatalf("could not write note %d at %d", note, time)
	}
}

func TestMergeTwoPorts(t *testing.T) {
	p0 := hostcore.NewEventBuffer(0, 8)
	p1 := hostcore.NewEventBuffer(1, 8)
	noteOn(t, p0, 10, 1)
	noteOn(t, p1, 5, 2)
	noteOn(t, p1, 10, 3)
	m := hostcore.NewMerger(p0, p1)
	m.Begin()
	// equal times go to the lowest port index first
	want := []struct {
		port, time int
		note       byte
	}{{1, 5, 2}, {0, 10, 1}, {1, 10, 3}}
	for i, w := range want {
		ev, port, ok := m.Next()
		if !ok {
			t.Fatalf("event %d: merger exhausted early", i)
		}
		if port != w.port || ev.Time != w.time || ev.MIDI.Data[1] != w.note {
			t.Errorf("event %d: got port %d time %d note %d, want port %d time %d note %d", i, port, ev.Time, ev.MIDI.Data[1], w.port, w.time, w.note)
		}
		if int(ev.MIDI.Port) != port {
			t.Errorf("event %d: MIDI port %d does not match merger port %d", i, ev.MIDI.Port, port)
		}
	}
	if _, _, ok := m.Next(); ok {
		t.Error("expected the merger to be exhausted")
	}
}

func TestMergeIsSortedAndStable(t *testing.T) {
	times := [][]int{
		{0, 0, 3, 7, 7, 100},
		{},
		{1, 3, 3, 7, 200},
		{0, 7, 7, 7},
	}
	ports := make([]hostcore.Port, len(times))
	for i, ts := range times {
		b := hostcore.NewEventBuffer(uint8(i), 16)
		for j, tm := range ts {
			noteOn(t, b, tm, byte(j))
		}
		ports[i] = b
	}
	m := hostcore.NewMerger(ports...)
	for cycle := 0; cycle < 2; cycle++ {
		m.Begin()
		count, lastTime, lastPort := 0, -1, -1
		lastNote := make([]int, len(ports))
		for i := range lastNote {
			lastNote[i] = -1
		}
		for {
			ev, port, ok := m.Next()
			if !ok {
				break
			}
			count++
			if ev.Time < lastTime || (ev.Time == lastTime && port < lastPort) {
				t.Fatalf("cycle %d: event at %d from port %d after %d from port %d", cycle, ev.Time, port, lastTime, lastPort)
			}
			if n := int(ev.MIDI.Data[1]); n != lastNote[port]+1 {
				t.Fatalf("cycle %d: port %d events out of order, got note %d after %d", cycle, port, n, lastNote[port])
			}
			lastTime, lastPort, lastNote[port] = ev.Time, port, int(ev.MIDI.Data[1])
		}
		if count != 15 {
			t.Errorf("cycle %d: expected 15 events, got %d", cycle, count)
		}
	}
}

func TestMergeSinglePortAndEmpty(t *testing.T) {
	b := hostcore.NewEventBuffer(0, 4)
	noteOn(t, b, 2, 1)
	noteOn(t, b, 1, 2) // out of order; the merger does not sort
	m := hostcore.NewMerger(b)
	m.Begin()
	noteOn(t, b, 3, 3) // written after Begin, not seen
	var got []int
	for ev, _, ok := m.Next(); ok; ev, _, ok = m.Next() {
		got = append(got, ev.Time)
	}
	if len(got) != 2 || got[0] != 2 || got[1] != 1 {
		t.Errorf("expected times [2 1], got %v", got)
	}
	empty := hostcore.NewMerger()
	empty.Begin()
	if _, _, ok := empty.Next(); ok {
		t.Error("expected no events from a merger without ports")
	}
}
