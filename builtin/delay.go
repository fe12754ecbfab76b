package builtin

import "github.com/vsariola/hostcore"

// MaxDelayFrames is the longest delay of the Delay plugin.
const MaxDelayFrames = 1 << 14

// Delay delays its stereo input by a whole number of frames and reports the
// delay as its latency.
type Delay struct {
	lines [2][]float32
	pos   int
	delay int
}

var delayParams = []hostcore.ParameterInfo{
	{Name: "delay", Min: 0, Max: MaxDelayFrames - 1, Default: 256, Hints: hostcore.ParameterIsAutomatable | hostcore.ParameterIsInteger, MIDIControl: -1},
}

func NewDelay(hostcore.Setup) (hostcore.Plugin, error) {
	d := &Delay{delay: int(delayParams[0].Default)}
	for i := range d.lines {
		d.lines[i] = make([]float32, MaxDelayFrames)
	}
	return d, nil
}

func (d *Delay) Info() hostcore.PluginInfo {
	return hostcore.PluginInfo{
		Name:      "Delay",
		Kind:      "delay",
		AudioIns:  2,
		AudioOuts: 2,
		Hints:     hostcore.HintCanDryWet | hostcore.HintCanVolume | hostcore.HintCanBalance,
		Options:   hostcore.OptionFixedBuffers,
	}
}

func (d *Delay) LatencyFrames() int { return d.delay }

func (d *Delay) Render(in, out [][]float32, _ []hostcore.Event) {
	pos := d.pos
	for i := range out {
		line := d.lines[i]
		pos = d.pos
		for k, v := range in[i] {
			line[pos] = v
			out[i][k] = line[(pos-d.delay+MaxDelayFrames)%MaxDelayFrames]
			pos = (pos + 1) % MaxDelayFrames
		}
	}
	d.pos = pos
}

func (d *Delay) Parameters() []hostcore.ParameterInfo { return delayParams }

func (d *Delay) SetParameterValue(index int, value float32, _ int) {
	if index == 0 {
		d.delay = int(clampParam(delayParams[0], value))
	}
}

func (d *Delay) Activate() {
	for _, l := range d.lines {
		clear(l)
	}
	d.pos = 0
}

func (d *Delay) Deactivate() {}
