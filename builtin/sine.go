package builtin

import (
	"math"

	"github.com/vsariola/hostcore"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Sine is a small polyphonic synthesizer. Notes are started and released
	// at the exact frame of their events. The MIDI programs select the
	// waveform.
	Sine struct {
		rate     float64
		voices   [numVoices]voice
		volume   float32
		attack   float32 // seconds
		release  float32 // seconds
		waveform int
	}

	voice struct {
		noteID            int
		note              byte
		sustain           bool
		samplesSinceEvent int
		velocity          float32
		phase             float64
		env               float32
	}
)

const numVoices = 8

const (
	waveSine = iota
	waveSquare
	waveSaw
)

var sineParams = []hostcore.ParameterInfo{
	{Name: "volume", Min: 0, Max: 1, Default: 0.5, Hints: hostcore.ParameterIsAutomatable, MIDIChannel: 0, MIDIControl: 11},
	{Name: "attack", Min: 0, Max: 2, Default: 0.005, Hints: hostcore.ParameterIsAutomatable, MIDIChannel: 0, MIDIControl: 73},
	{Name: "release", Min: 0, Max: 5, Default: 0.2, Hints: hostcore.ParameterIsAutomatable, MIDIChannel: 0, MIDIControl: 72},
}

var sinePrograms = []hostcore.MIDIProgram{
	{Bank: 0, Program: 0, Name: "sine"},
	{Bank: 0, Program: 1, Name: "square"},
	{Bank: 1, Program: 0, Name: "saw"},
}

func NewSine(s hostcore.Setup) (hostcore.Plugin, error) {
	rate := s.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	ret := &Sine{rate: rate}
	for i, p := range sineParams {
		ret.SetParameterValue(i, p.Default, 0)
	}
	return ret, nil
}

func (s *Sine) Info() hostcore.PluginInfo {
	return hostcore.PluginInfo{
		Name:      "Sine",
		Kind:      "sine",
		AudioOuts: 2,
		Hints:     hostcore.HintIsSynth | hostcore.HintCanVolume | hostcore.HintCanBalance,
		Options: hostcore.OptionFixedBuffers | hostcore.OptionMapProgramChanges |
			hostcore.OptionSendControlChanges | hostcore.OptionSendAllSoundOff |
			hostcore.OptionSendProgramChanges | hostcore.OptionSkipSendingNotes,
	}
}

func (s *Sine) LatencyFrames() int { return 0 }

func (s *Sine) Render(_, out [][]float32, events []hostcore.Event) {
	if len(out) == 0 {
		return
	}
	frames := len(out[0])
	attackStep := envStep(s.attack, s.rate)
	releaseStep := envStep(s.release, s.rate)
	for k := 0; k < frames; k++ {
		for len(events) > 0 && events[0].Time <= k {
			s.handle(&events[0])
			events = events[1:]
		}
		var sample float32
		for i := range s.voices {
			v := &s.voices[i]
			if v.sustain {
				v.env = min(v.env+attackStep, 1)
			} else {
				v.env = max(v.env-releaseStep, 0)
			}
			v.samplesSinceEvent++
			if v.env == 0 {
				continue
			}
			sample += s.oscillator(v.phase) * v.env * v.velocity
			v.phase += 440 * math.Pow(2, (float64(v.note)-69)/12) / s.rate
			v.phase -= math.Floor(v.phase)
		}
		sample *= s.volume
		for _, o := range out {
			o[k] = sample
		}
	}
}

func envStep(seconds float32, rate float64) float32 {
	if seconds <= 0 {
		return 1
	}
	return float32(1 / (float64(seconds) * rate))
}

func (s *Sine) oscillator(phase float64) float32 {
	switch s.waveform {
	case waveSquare:
		if phase < 0.5 {
			return 1
		}
		return -1
	case waveSaw:
		return float32(2*phase - 1)
	}
	return float32(math.Sin(2 * math.Pi * phase))
}

func (s *Sine) handle(ev *hostcore.Event) {
	if ev.Type != hostcore.EventTypeMIDI {
		return
	}
	msg := midi.Message(ev.MIDI.Bytes())
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		s.trigger(ch, key, vel)
	case msg.GetNoteEnd(&ch, &key):
		s.releaseNote(idForNote(ch, key))
	case msg.GetControlChange(&ch, &key, &vel):
		switch uint16(key) {
		case hostcore.ControlAllNotesOff:
			s.releaseAll()
		case hostcore.ControlAllSoundOff:
			s.killAll()
		}
	}
}

// trigger starts the note on a released voice if there is one, otherwise on
// the oldest playing voice.
func (s *Sine) trigger(ch, note, velocity uint8) {
	id := idForNote(ch, note)
	s.releaseNote(id)
	age := 0
	oldestReleased := false
	oldest := 0
	for i, v := range s.voices {
		if (!v.sustain && !oldestReleased) ||
			(!v.sustain == oldestReleased && v.samplesSinceEvent >= age) {
			oldest = i
			oldestReleased = !v.sustain
			age = v.samplesSinceEvent
		}
	}
	s.voices[oldest] = voice{
		noteID:   id,
		note:     note,
		sustain:  true,
		velocity: float32(velocity) / 127,
	}
}

func (s *Sine) releaseNote(id int) {
	for i := range s.voices {
		if s.voices[i].noteID == id && s.voices[i].sustain {
			s.voices[i].sustain = false
			s.voices[i].samplesSinceEvent = 0
			return
		}
	}
}

func (s *Sine) releaseAll() {
	for i := range s.voices {
		if s.voices[i].sustain {
			s.voices[i].sustain = false
			s.voices[i].samplesSinceEvent = 0
		}
	}
}

func (s *Sine) killAll() {
	for i := range s.voices {
		s.voices[i] = voice{}
	}
}

func idForNote(ch, note uint8) int { return int(ch)*256 + int(note) }

func (s *Sine) Parameters() []hostcore.ParameterInfo { return sineParams }

func (s *Sine) SetParameterValue(index int, value float32, _ int) {
	if index < 0 || index >= len(sineParams) {
		return
	}
	value = clampParam(sineParams[index], value)
	switch index {
	case 0:
		s.volume = value
	case 1:
		s.attack = value
	case 2:
		s.release = value
	}
}

func (s *Sine) MIDIPrograms() []hostcore.MIDIProgram { return sinePrograms }

func (s *Sine) SetMIDIProgram(index int) {
	if index >= 0 && index < len(sinePrograms) {
		s.waveform = index
	}
}

func (s *Sine) Activate()   { s.killAll() }
func (s *Sine) Deactivate() {}

func (s *Sine) BufferSizeChanged(int) {}

func (s *Sine) SampleRateChanged(rate float64) {
	if rate > 0 {
		s.rate = rate
	}
}
