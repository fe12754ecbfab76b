package hostcore

import (
	"strings"

	"github.com/pkg/errors"
)

type (
	// Plugin is the part of a plugin format adapter the scheduler needs. A
	// format adapter (Go-native, VST2, ...) only has to turn the canonical
	// event queue into its own native events and run one sub-block.
	//
	// Render processes exactly len(out[0]) frames; every in and out slice has
	// that length. events holds the MIDI events for this sub-block, with Time
	// relative to the start of the sub-block. The slices are only valid during
	// the call. Render is called on the audio thread and must not block.
	Plugin interface {
		Info() PluginInfo
		Render(in, out [][]float32, events []Event)
		// LatencyFrames is the latency the plugin currently reports. It is
		// polled after every render.
		LatencyFrames() int
	}

	// PluginInfo describes the static capabilities of a plugin instance.
	PluginInfo struct {
		Name      string
		Kind      string
		AudioIns  int
		AudioOuts int
		Hints     Hints
		// Options are the options the plugin supports; the host may enable a
		// subset of them.
		Options Options
	}

	// ParameterPlugin is implemented by plugins with automatable parameters.
	// SetParameterValue receives the unnormalized value; frame is the offset
	// of the change within the current sub-block (always 0 when called from
	// the control thread).
	ParameterPlugin interface {
		Parameters() []ParameterInfo
		SetParameterValue(index int, value float32, frame int)
	}

	// ProgramPlugin is implemented by plugins exposing MIDI programs.
	ProgramPlugin interface {
		MIDIPrograms() []MIDIProgram
		SetMIDIProgram(index int)
	}

	// Activator is implemented by plugins that want activation callbacks.
	Activator interface {
		Activate()
		Deactivate()
	}

	// Reconfigurer is implemented by plugins that need to know about buffer
	// size and sample rate changes. Called outside the audio thread.
	Reconfigurer interface {
		BufferSizeChanged(frames int)
		SampleRateChanged(rate float64)
	}

	ParameterInfo struct {
		Name        string
		Min, Max    float32
		Default     float32
		Hints       ParameterHints
		MIDIChannel int8  // channel the parameter listens to
		MIDIControl int16 // mapped controller number, -1 if not mapped
	}

	MIDIProgram struct {
		Bank    uint32
		Program uint32
		Name    string
	}

	// Options are per-instance behaviour switches, mostly deciding which MIDI
	// traffic reaches the plugin.
	Options uint32

	// Hints are capabilities of a plugin instance that the user cannot change.
	Hints uint32

	ParameterHints uint32
)

const (
	// OptionFixedBuffers disables splitting the cycle into sub-blocks.
	OptionFixedBuffers Options = 1 << iota
	// OptionMapProgramChanges makes the host handle bank/program changes on
	// the control channel itself, by selecting one of the plugin's MIDI
	// programs.
	OptionMapProgramChanges
	OptionSendControlChanges
	OptionSendChannelPressure
	OptionSendNoteAftertouch
	OptionSendPitchbend
	// OptionSendAllSoundOff forwards all sound/notes off and, on reset, sends
	// all notes off and all sound off on every channel instead of a note-off
	// sweep on the control channel.
	OptionSendAllSoundOff
	OptionSendProgramChanges
	OptionSkipSendingNotes
)

const (
	HintCanDryWet Hints = 1 << iota
	HintCanVolume
	HintCanBalance
	HintIsSynth
	// HintNeedsFixedBuffers is set by plugins that can only render whole
	// cycles, regardless of OptionFixedBuffers.
	HintNeedsFixedBuffers
)

const (
	ParameterIsAutomatable ParameterHints = 1 << iota
	ParameterIsOutput
	ParameterIsInteger
	ParameterIsBoolean
)

var optionNames = []struct {
	option Options
	name   string
}{
	{OptionFixedBuffers, "fixed-buffers"},
	{OptionMapProgramChanges, "map-program-changes"},
	{OptionSendControlChanges, "send-control-changes"},
	{OptionSendChannelPressure, "send-channel-pressure"},
	{OptionSendNoteAftertouch, "send-note-aftertouch"},
	{OptionSendPitchbend, "send-pitchbend"},
	{OptionSendAllSoundOff, "send-all-sound-off"},
	{OptionSendProgramChanges, "send-program-changes"},
	{OptionSkipSendingNotes, "skip-sending-notes"},
}

// ParseOptions parses option names, e.g. "send-control-changes".
func ParseOptions(names []string) (Options, error) {
	var ret Options
	for _, n := range names {
		found := false
		for _, o := range optionNames {
			if strings.EqualFold(strings.TrimSpace(n), o.name) {
				ret |= o.option
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown option %q", n)
		}
	}
	return ret, nil
}

// Names returns the names of the set options, in declaration order.
func (o Options) Names() []string {
	var ret []string
	for _, n := range optionNames {
		if o&n.option != 0 {
			ret = append(ret, n.name)
		}
	}
	return ret
}

func (o Options) String() string { return strings.Join(o.Names(), "|") }

// Unnormalize maps a normalized 0..1 value to the parameter range, honouring
// the boolean and integer hints.
func (p *ParameterInfo) Unnormalize(v float32) float32 {
	switch {
	case v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	if p.Hints&ParameterIsBoolean != 0 {
		if v < 0.5 {
			return p.Min
		}
		return p.Max
	}
	ret := p.Min + v*(p.Max-p.Min)
	if p.Hints&ParameterIsInteger != 0 {
		if ret < 0 {
			ret = float32(int(ret - 0.5))
		} else {
			ret = float32(int(ret + 0.5))
		}
	}
	return ret
}

// Normalize is the inverse of Unnormalize (up to rounding).
func (p *ParameterInfo) Normalize(v float32) float32 {
	if p.Max == p.Min {
		return 0
	}
	n := (v - p.Min) / (p.Max - p.Min)
	switch {
	case n < 0:
		return 0
	case n > 1:
		return 1
	}
	return n
}
