package builtin

import (
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/hostcore"
)

// Gain is a stereo amplifier.
type Gain struct {
	gain float32
}

var gainParams = []hostcore.ParameterInfo{
	{Name: "gain", Min: 0, Max: 2, Default: 1, Hints: hostcore.ParameterIsAutomatable, MIDIControl: -1},
}

func NewGain(hostcore.Setup) (hostcore.Plugin, error) {
	return &Gain{gain: gainParams[0].Default}, nil
}

func (g *Gain) Info() hostcore.PluginInfo {
	return hostcore.PluginInfo{
		Name:      "Gain",
		Kind:      "gain",
		AudioIns:  2,
		AudioOuts: 2,
		Hints:     hostcore.HintCanDryWet | hostcore.HintCanVolume | hostcore.HintCanBalance,
		Options:   hostcore.OptionFixedBuffers | hostcore.OptionSendControlChanges,
	}
}

func (g *Gain) LatencyFrames() int { return 0 }

func (g *Gain) Render(in, out [][]float32, _ []hostcore.Event) {
	for i := range out {
		vek32.MulNumber_Into(out[i], in[i], g.gain)
	}
}

func (g *Gain) Parameters() []hostcore.ParameterInfo { return gainParams }

func (g *Gain) SetParameterValue(index int, value float32, _ int) {
	if index == 0 {
		g.gain = clampParam(gainParams[0], value)
	}
}
