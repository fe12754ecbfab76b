package engine_test

import (
	"testing"

	"github.com/vsariola/hostcore"
	"github.com/vsariola/hostcore/engine"
)

type (
	block struct {
		frames int
		events []hostcore.Event
	}

	paramSet struct {
		index int
		value float32
		frame int
	}

	// recorder is a pass-through plugin remembering what it was asked to do.
	recorder struct {
		info     hostcore.PluginInfo
		latency  int
		blocks   []block
		params   []hostcore.ParameterInfo
		sets     []paramSet
		programs []hostcore.MIDIProgram
		program  int
	}
)

const allOptions = hostcore.OptionFixedBuffers | hostcore.OptionMapProgramChanges |
	hostcore.OptionSendControlChanges | hostcore.OptionSendChannelPressure |
	hostcore.OptionSendNoteAftertouch | hostcore.OptionSendPitchbend |
	hostcore.OptionSendAllSoundOff | hostcore.OptionSendProgramChanges |
	hostcore.OptionSkipSendingNotes

func newRecorder() *recorder {
	return &recorder{
		info: hostcore.PluginInfo{
			Name:      "recorder",
			AudioIns:  2,
			AudioOuts: 2,
			Hints:     hostcore.HintCanDryWet | hostcore.HintCanVolume | hostcore.HintCanBalance,
			Options:   allOptions,
		},
		program: -1,
	}
}

func (r *recorder) Info() hostcore.PluginInfo { return r.info }
func (r *recorder) LatencyFrames() int        { return r.latency }

func (r *recorder) Render(in, out [][]float32, events []hostcore.Event) {
	b := block{frames: len(out[0])}
	b.events = append(b.events, events...)
	r.blocks = append(r.blocks, b)
	for i := range out {
		if i < len(in) {
			copy(out[i], in[i])
		}
	}
}

func (r *recorder) Parameters() []hostcore.ParameterInfo { return r.params }
func (r *recorder) SetParameterValue(index int, value float32, frame int) {
	r.sets = append(r.sets, paramSet{index, value, frame})
}
func (r *recorder) MIDIPrograms() []hostcore.MIDIProgram { return r.programs }
func (r *recorder) SetMIDIProgram(index int)             { r.program = index }

func (r *recorder) frames() []int {
	var ret []int
	for _, b := range r.blocks {
		ret = append(ret, b.frames)
	}
	return ret
}

func (r *recorder) events() []hostcore.Event {
	var ret []hostcore.Event
	for _, b := range r.blocks {
		ret = append(ret, b.events...)
	}
	return ret
}

func newEngine(t *testing.T, p hostcore.Plugin, options hostcore.Options, ports ...hostcore.Port) *engine.Engine {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.Options = options
	e, err := engine.New(p, cfg, ports...)
	if err != nil {
		t.Fatalf("engine.New failed: %v", err)
	}
	e.Activate()
	return e
}

func buffers(channels, frames int, value float32) [][]float32 {
	ret := make([][]float32, channels)
	for i := range ret {
		ret[i] = make([]float32, frames)
		for k := range ret[i] {
			ret[i][k] = value
		}
	}
	return ret
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestVolumeControllerSplitsAndSetsVolume(t *testing.T) {
	for _, forward := range []bool{false, true} {
		r := newRecorder()
		port := hostcore.NewEventBuffer(0, 0)
		port.WriteMIDI(128, []byte{0xB0, 7, 100})
		var opts hostcore.Options
		if forward {
			opts = hostcore.OptionSendControlChanges
		}
		e := newEngine(t, r, opts, port)
		e.Process(buffers(2, 512, 0), buffers(2, 512, 0), 512)
		if got := r.frames(); !equalInts(got, []int{128, 384}) {
			t.Fatalf("sub-blocks %v, expected [128 384]", got)
		}
		if v := e.PostState().Volume; v < 0.9999 || v > 1.0001 {
			t.Errorf("volume %v, expected 1.0", v)
		}
		var ccs []hostcore.Event
		for _, ev := range r.events() {
			if ev.MIDI.Status() == hostcore.StatusControlChange {
				ccs = append(ccs, ev)
			}
		}
		if !forward {
			if len(ccs) != 0 {
				t.Errorf("control change forwarded without the option: %v", ccs)
			}
			continue
		}
		if len(ccs) != 1 {
			t.Fatalf("expected one forwarded control change, got %v", ccs)
		}
		if got := ccs[0].MIDI.Bytes(); got[1] != 7 || got[2] != 100 || ccs[0].Time != 0 {
			t.Errorf("forwarded %v, expected CC 7 = 100 at the start of the second sub-block", ccs[0])
		}
		if len(r.blocks[1].events) != 1 {
			t.Errorf("forwarded control change is not in the second sub-block")
		}
	}
}

func TestContendedSubBlockIsSilent(t *testing.T) {
	r := newRecorder()
	e := newEngine(t, r, 0)
	in := buffers(2, 64, 0.5)
	out := buffers(2, 64, 123)
	e.Guard().Lock()
	e.Process(in, out, 64)
	e.Guard().Unlock()
	for c := range out {
		for k, v := range out[c] {
			if v != 0 {
				t.Fatalf("out[%d][%d] = %v, expected silence", c, k, v)
			}
		}
	}
	if len(r.blocks) != 0 {
		t.Errorf("plugin rendered while the guard was held")
	}
	if got := e.Stats().Contended; got != 1 {
		t.Errorf("contended = %d, expected 1", got)
	}
	e.Process(in, out, 64)
	if out[0][10] != 0.5 || out[1][63] != 0.5 {
		t.Errorf("render after contention did not pass the input through")
	}
}

func TestSubBlocksCoverCycle(t *testing.T) {
	tests := []struct {
		name   string
		ports  [][]int
		frames int
		want   []int
	}{
		{"no events", [][]int{{}}, 256, []int{256}},
		{"event at zero", [][]int{{0}}, 256, []int{256}},
		{"duplicates", [][]int{{10, 10, 10}}, 100, []int{10, 90}},
		{"out of order", [][]int{{50, 20, 70}}, 100, []int{50, 20, 30}},
		{"two ports", [][]int{{10, 40}, {5, 10, 99}}, 100, []int{5, 5, 30, 59, 1}},
		{"beyond cycle", [][]int{{30, 200}}, 100, []int{30, 70}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			var ports []hostcore.Port
			for i, times := range tt.ports {
				p := hostcore.NewEventBuffer(uint8(i), 0)
				for _, tm := range times {
					p.WriteMIDI(tm, []byte{0x90, 60, 100})
				}
				ports = append(ports, p)
			}
			e := newEngine(t, r, 0, ports...)
			e.Process(buffers(2, tt.frames, 0), buffers(2, tt.frames, 0), tt.frames)
			got := r.frames()
			if !equalInts(got, tt.want) {
				t.Fatalf("sub-blocks %v, expected %v", got, tt.want)
			}
			sum := 0
			for _, f := range got {
				if f <= 0 {
					t.Errorf("empty sub-block in %v", got)
				}
				sum += f
			}
			if sum != tt.frames {
				t.Errorf("sub-blocks cover %d frames, expected %d", sum, tt.frames)
			}
		})
	}
}

func TestOrderViolationIsClampedAndReported(t *testing.T) {
	r := newRecorder()
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(50, []byte{0x90, 60, 100})
	p.WriteMIDI(20, []byte{0x80, 60, 0})
	var got []engine.Notification
	cfg := engine.DefaultConfig()
	cfg.Notify = func(n engine.Notification) { got = append(got, n) }
	e, err := engine.New(r, cfg, p)
	if err != nil {
		t.Fatal(err)
	}
	e.Activate()
	e.Process(nil, buffers(2, 100, 0), 100)
	e.Idle()
	if s := e.Stats(); s.TimingErrors != 1 {
		t.Errorf("timing errors = %d, expected 1", s.TimingErrors)
	}
	if len(r.blocks) != 2 || len(r.blocks[1].events) != 2 {
		t.Fatalf("expected both notes in the second sub-block, got %+v", r.blocks)
	}
	found := false
	for _, n := range got {
		if n.Kind == engine.NotifyTimingError && n.Frame == 20 && n.Index == 50 {
			found = true
		}
	}
	if !found {
		t.Errorf("no timing error notification in %v", got)
	}
}

func TestFixedBuffersKeepEventTimes(t *testing.T) {
	r := newRecorder()
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(10, []byte{0x90, 60, 100})
	p.WriteMIDI(300, []byte{0x80, 60, 0})
	e := newEngine(t, r, hostcore.OptionFixedBuffers, p)
	e.Process(nil, buffers(2, 512, 0), 512)
	if got := r.frames(); !equalInts(got, []int{512}) {
		t.Fatalf("sub-blocks %v, expected a single block", got)
	}
	evs := r.events()
	if len(evs) != 2 || evs[0].Time != 10 || evs[1].Time != 300 {
		t.Errorf("events %v, expected times 10 and 300", evs)
	}
}

func TestInactiveEngineOutputsSilence(t *testing.T) {
	r := newRecorder()
	e, err := engine.New(r, engine.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	out := buffers(2, 32, 1)
	e.Process(buffers(2, 32, 1), out, 32)
	if out[0][0] != 0 || out[1][31] != 0 || len(r.blocks) != 0 {
		t.Errorf("inactive engine rendered")
	}
}

func TestResetBurst(t *testing.T) {
	t.Run("note off sweep", func(t *testing.T) {
		r := newRecorder()
		e := newEngine(t, r, 0)
		if err := e.SetControlChannel(3); err != nil {
			t.Fatal(err)
		}
		e.Reset()
		e.Process(nil, buffers(2, 64, 0), 64)
		evs := r.events()
		if len(evs) != hostcore.MaxMIDINotes {
			t.Fatalf("%d events, expected %d", len(evs), hostcore.MaxMIDINotes)
		}
		for k, ev := range evs {
			b := ev.MIDI.Bytes()
			if b[0] != 0x83 || int(b[1]) != k || ev.Time != 0 {
				t.Fatalf("event %d: %v, expected note off %d on channel 3", k, ev, k)
			}
		}
		r.blocks = nil
		e.Process(nil, buffers(2, 64, 0), 64)
		if len(r.events()) != 0 {
			t.Errorf("reset burst repeated")
		}
	})
	t.Run("all sound off", func(t *testing.T) {
		r := newRecorder()
		e := newEngine(t, r, hostcore.OptionSendAllSoundOff)
		e.Reset()
		e.Process(nil, buffers(2, 64, 0), 64)
		evs := r.events()
		if len(evs) != 2*hostcore.MaxMIDIChannels {
			t.Fatalf("%d events, expected %d", len(evs), 2*hostcore.MaxMIDIChannels)
		}
		for i, ev := range evs {
			b := ev.MIDI.Bytes()
			cc := byte(hostcore.ControlAllNotesOff)
			if i >= hostcore.MaxMIDIChannels {
				cc = byte(hostcore.ControlAllSoundOff)
			}
			if b[0] != 0xB0|byte(i%hostcore.MaxMIDIChannels) || b[1] != cc {
				t.Errorf("event %d: %v", i, ev)
			}
		}
	})
}

func TestMIDIFilters(t *testing.T) {
	tests := []struct {
		name    string
		options hostcore.Options
		data    []byte
		want    []byte // nil: filtered
	}{
		{"note on", 0, []byte{0x91, 60, 100}, []byte{0x91, 60, 100}},
		{"skip notes", hostcore.OptionSkipSendingNotes, []byte{0x91, 60, 100}, nil},
		{"note on zero velocity", 0, []byte{0x92, 60, 0}, []byte{0x82, 60, 0}},
		{"pitch bend filtered", 0, []byte{0xE0, 0, 64}, nil},
		{"pitch bend", hostcore.OptionSendPitchbend, []byte{0xE0, 0, 64}, []byte{0xE0, 0, 64}},
		{"channel pressure filtered", 0, []byte{0xD0, 10}, nil},
		{"channel pressure", hostcore.OptionSendChannelPressure, []byte{0xD0, 10}, []byte{0xD0, 10}},
		{"aftertouch filtered", 0, []byte{0xA0, 60, 10}, nil},
		{"aftertouch", hostcore.OptionSendNoteAftertouch, []byte{0xA0, 60, 10}, []byte{0xA0, 60, 10}},
		{"sysex", 0, []byte{0xF0, 1, 2, 3, 4, 0xF7}, []byte{0xF0, 1, 2, 3, 4, 0xF7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRecorder()
			p := hostcore.NewEventBuffer(0, 0)
			p.WriteMIDI(0, tt.data)
			e := newEngine(t, r, tt.options, p)
			e.Process(nil, buffers(2, 16, 0), 16)
			evs := r.events()
			if tt.want == nil {
				if len(evs) != 0 {
					t.Errorf("expected event to be filtered, got %v", evs)
				}
				return
			}
			if len(evs) != 1 {
				t.Fatalf("expected one event, got %v", evs)
			}
			if got := evs[0].MIDI.Bytes(); string(got) != string(tt.want) {
				t.Errorf("got % X, expected % X", got, tt.want)
			}
		})
	}
}

func TestMIDIProgramMapping(t *testing.T) {
	r := newRecorder()
	r.programs = []hostcore.MIDIProgram{{Bank: 0, Program: 0, Name: "a"}, {Bank: 1, Program: 0, Name: "b"}, {Bank: 1, Program: 5, Name: "c"}}
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(0, []byte{0xB0, 0, 1})
	p.WriteMIDI(0, []byte{0xC0, 5})
	e := newEngine(t, r, hostcore.OptionMapProgramChanges, p)
	e.Process(nil, buffers(2, 32, 0), 32)
	if r.program != 2 || e.MIDIProgram() != 2 {
		t.Errorf("program %d / %d, expected 2", r.program, e.MIDIProgram())
	}
	if len(r.events()) != 0 {
		t.Errorf("mapped program change was forwarded: %v", r.events())
	}
	// bank select only lasts for the cycle
	p.Clear()
	p.WriteMIDI(0, []byte{0xC0, 0})
	e.Process(nil, buffers(2, 32, 0), 32)
	if r.program != 1 {
		t.Errorf("program %d, expected 1 (bank of the current program)", r.program)
	}
}

func TestMIDIProgramForwarding(t *testing.T) {
	r := newRecorder()
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(5, []byte{0xC1, 7})
	e := newEngine(t, r, hostcore.OptionSendProgramChanges, p)
	e.Process(nil, buffers(2, 32, 0), 32)
	evs := r.events()
	if len(evs) != 1 || string(evs[0].MIDI.Bytes()) != string([]byte{0xC1, 7}) {
		t.Errorf("got %v, expected forwarded program change", evs)
	}
}

func TestParameterEvents(t *testing.T) {
	r := newRecorder()
	r.params = []hostcore.ParameterInfo{
		{Name: "cutoff", Min: 0, Max: 100, Hints: hostcore.ParameterIsAutomatable, MIDIChannel: 0, MIDIControl: 74},
		{Name: "meter", Min: 0, Max: 1, Hints: hostcore.ParameterIsAutomatable | hostcore.ParameterIsOutput, MIDIChannel: 0, MIDIControl: 75},
		{Name: "mode", Min: 0, Max: 3, Hints: hostcore.ParameterIsAutomatable | hostcore.ParameterIsInteger, MIDIControl: -1},
	}
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(10, []byte{0xB0, 74, 127})
	p.WriteMIDI(20, []byte{0xB0, 75, 127})
	p.WriteControl(30, hostcore.NonMIDIChannel, hostcore.ControlTypeParameter, 2, 0.6)
	e := newEngine(t, r, 0, p)
	e.Process(nil, buffers(2, 64, 0), 64)
	want := []paramSet{{0, 100, 0}, {2, 2, 0}}
	if len(r.sets) != len(want) {
		t.Fatalf("parameter changes %v, expected %v", r.sets, want)
	}
	for i := range want {
		if r.sets[i] != want[i] {
			t.Errorf("change %d: %v, expected %v", i, r.sets[i], want[i])
		}
	}
	if !equalInts(r.frames(), []int{10, 10, 10, 34}) {
		t.Errorf("sub-blocks %v", r.frames())
	}
}

func TestMapParameter(t *testing.T) {
	r := newRecorder()
	r.params = []hostcore.ParameterInfo{{Name: "gain", Min: 0, Max: 1, Hints: hostcore.ParameterIsAutomatable, MIDIControl: -1}}
	p := hostcore.NewEventBuffer(0, 0)
	e := newEngine(t, r, 0, p)
	if err := e.MapParameter(0, 2, 0); err == nil {
		t.Errorf("expected bank select to be rejected")
	}
	if err := e.MapParameter(0, 2, 21); err != nil {
		t.Fatal(err)
	}
	p.WriteMIDI(0, []byte{0xB2, 21, 0})
	e.Process(nil, buffers(2, 16, 0), 16)
	if len(r.sets) != 1 || r.sets[0].value != 0 {
		t.Errorf("parameter changes %v, expected gain = 0", r.sets)
	}
	if got := e.Parameters()[0]; got.MIDIChannel != 2 || got.MIDIControl != 21 {
		t.Errorf("binding %d/%d, expected 2/21", got.MIDIChannel, got.MIDIControl)
	}
}

func TestBackendShortcuts(t *testing.T) {
	r := newRecorder()
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(0, []byte{0xB0, 2, 0})   // breath: dry only
	p.WriteMIDI(0, []byte{0xB0, 8, 0})   // balance: full left
	p.WriteMIDI(0, []byte{0xB1, 7, 127}) // not on the control channel
	e := newEngine(t, r, 0, p)
	e.Process(nil, buffers(2, 16, 0), 16)
	s := e.PostState()
	if s.DryWet != 0 || s.BalanceLeft != -1 || s.BalanceRight != -1 || s.Volume != 1 {
		t.Errorf("post state %+v", s)
	}
}

func TestAllNotesOffNotifiedOncePerCycle(t *testing.T) {
	r := newRecorder()
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(0, []byte{0xB0, 123, 0})
	p.WriteMIDI(5, []byte{0xB0, 123, 0})
	var count int
	cfg := engine.DefaultConfig()
	cfg.Options = hostcore.OptionSendAllSoundOff
	cfg.Notify = func(n engine.Notification) {
		if n.Kind == engine.NotifyAllNotesOff {
			count++
		}
	}
	e, err := engine.New(r, cfg, p)
	if err != nil {
		t.Fatal(err)
	}
	e.Activate()
	e.Process(nil, buffers(2, 16, 0), 16)
	e.Idle()
	if count != 1 {
		t.Errorf("%d all notes off notifications, expected 1", count)
	}
	if got := len(r.events()); got != 2 {
		t.Errorf("%d forwarded events, expected 2", got)
	}
}

func TestNoteEchoesAndExternalNotes(t *testing.T) {
	r := newRecorder()
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(3, []byte{0x90, 64, 90})
	var got []engine.Notification
	cfg := engine.DefaultConfig()
	cfg.Notify = func(n engine.Notification) { got = append(got, n) }
	e, err := engine.New(r, cfg, p)
	if err != nil {
		t.Fatal(err)
	}
	e.Activate()
	if !e.SendNote(1, 60, 100) {
		t.Fatal("SendNote failed")
	}
	e.Process(nil, buffers(2, 16, 0), 16)
	evs := r.events()
	if len(evs) != 2 || string(evs[0].MIDI.Bytes()) != string([]byte{0x91, 60, 100}) || evs[0].Time != 0 {
		t.Fatalf("events %v, expected external note first", evs)
	}
	if len(got) != 0 {
		t.Errorf("notifications visible before Idle")
	}
	e.Idle()
	if len(got) != 1 || got[0].Kind != engine.NotifyNoteOn || got[0].Index != 64 || got[0].Frame != 3 {
		t.Errorf("notifications %v, expected note on echo of 64", got)
	}
}

func TestOversizeCycleIsSilent(t *testing.T) {
	r := newRecorder()
	cfg := engine.DefaultConfig()
	cfg.BufferSize = 64
	e, err := engine.New(r, cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.Activate()
	out := buffers(2, 128, 1)
	e.Process(buffers(2, 128, 1), out, 128)
	if out[0][0] != 0 || len(r.blocks) != 0 {
		t.Errorf("oversize cycle rendered")
	}
	if err := e.BufferSizeChanged(128); err != nil {
		t.Fatal(err)
	}
	e.Process(buffers(2, 128, 1), out, 128)
	if out[0][100] != 1 {
		t.Errorf("render after buffer size change failed")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.BufferSize = 0
	if _, err := engine.New(newRecorder(), cfg); err == nil {
		t.Errorf("expected error for zero buffer size")
	}
	cfg = engine.DefaultConfig()
	cfg.ControlChannel = 16
	if _, err := engine.New(newRecorder(), cfg); err == nil {
		t.Errorf("expected error for control channel 16")
	}
	if _, err := engine.New(nil, engine.DefaultConfig()); err == nil {
		t.Errorf("expected error for nil plugin")
	}
}

func TestUnclaimedControllersNotified(t *testing.T) {
	r := newRecorder()
	r.params = []hostcore.ParameterInfo{{Name: "cutoff", Min: 0, Max: 1, Hints: hostcore.ParameterIsAutomatable, MIDIChannel: 0, MIDIControl: 74}}
	p := hostcore.NewEventBuffer(0, 0)
	p.WriteMIDI(0, []byte{0xB0, 74, 64}) // bound parameter
	p.WriteMIDI(0, []byte{0xB0, 7, 100}) // volume
	p.WriteMIDI(0, []byte{0xB0, 20, 1})
	p.WriteMIDI(0, []byte{0xB1, 7, 100}) // volume off the control channel
	type key struct {
		channel int8
		control int
	}
	var unclaimed []key
	cfg := engine.DefaultConfig()
	cfg.Options = hostcore.OptionSendControlChanges
	cfg.Notify = func(n engine.Notification) {
		if n.Kind == engine.NotifyControlUnclaimed {
			unclaimed = append(unclaimed, key{n.Channel, n.Index})
		}
	}
	e, err := engine.New(r, cfg, p)
	if err != nil {
		t.Fatal(err)
	}
	e.Activate()
	e.Process(nil, buffers(2, 16, 0), 16)
	e.Idle()
	want := []key{{0, 20}, {1, 7}}
	if len(unclaimed) != len(want) {
		t.Fatalf("unclaimed %v, expected %v", unclaimed, want)
	}
	for i := range want {
		if unclaimed[i] != want[i] {
			t.Errorf("unclaimed %d: %v, expected %v", i, unclaimed[i], want[i])
		}
	}
	if got := len(r.events()); got != 4 {
		t.Errorf("%d forwarded controllers, expected all 4", got)
	}
	if engine.NotifyControlUnclaimed.String() != "ControlUnclaimed" {
		t.Errorf("kind name %q", engine.NotifyControlUnclaimed.String())
	}
}
