// Package config reads the YAML description of a hosted plugin instance and
// applies it to an engine.
package config

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/pkg/errors"
	"github.com/vsariola/hostcore"
	"github.com/vsariola/hostcore/engine"
	"gopkg.in/yaml.v3"
)

type (
	Config struct {
		SampleRate float64 `yaml:",omitempty"`
		BufferSize int     `yaml:",omitempty"`
		// Tail is the number of frames rendered after the last event.
		Tail   int `yaml:",omitempty"`
		Plugin Plugin
	}

	// Plugin configures one plugin instance and the engine hosting it.
	Plugin struct {
		Kind           string
		Name           string   `yaml:",omitempty"`
		Options        []string `yaml:",flow,omitempty"`
		ControlChannel int8
		// Nil means the default of the engine.
		DryWet       *float32 `yaml:",omitempty"`
		Volume       *float32 `yaml:",omitempty"`
		BalanceLeft  *float32 `yaml:",omitempty"`
		BalanceRight *float32 `yaml:",omitempty"`
		// Ports is the number of MIDI input ports.
		Ports   int  `yaml:",omitempty"`
		Offline bool `yaml:",omitempty"`
		// Parameters are plugin parameter values by name, in plugin units.
		Parameters map[string]float32 `yaml:",omitempty"`
		Mappings   []Mapping          `yaml:",omitempty"`
		Program    *int               `yaml:",omitempty"`
	}

	// Mapping binds a parameter to a MIDI controller.
	Mapping struct {
		Parameter string
		Channel   int8
		Control   int16
	}
)

const MaxPorts = 16

// Default returns the configuration of a sine instrument on the default
// engine settings.
func Default() *Config {
	d := engine.DefaultConfig()
	return &Config{
		SampleRate: d.SampleRate,
		BufferSize: d.BufferSize,
		Tail:       int(d.SampleRate),
		Plugin: Plugin{
			Kind:           "sine",
			ControlChannel: d.ControlChannel,
			Ports:          1,
		},
	}
}

// Load reads a configuration on top of the defaults. Unknown fields are
// errors; empty input gives the defaults.
func Load(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "could not parse config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read config")
	}
	c, err := Load(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrapf(err, "%v", path)
	}
	return c, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	b, err := yaml.Marshal(c)
	return b, errors.Wrap(err, "could not marshal config")
}

func (c *Config) Validate() error {
	if c.SampleRate <= 0 || math.IsNaN(c.SampleRate) {
		return errors.Errorf("invalid sample rate %v", c.SampleRate)
	}
	if c.BufferSize <= 0 {
		return errors.Errorf("invalid buffer size %v", c.BufferSize)
	}
	if c.Tail < 0 {
		return errors.Errorf("invalid tail %v", c.Tail)
	}
	return errors.Wrap(c.Plugin.Validate(), "plugin")
}

func (p *Plugin) Validate() error {
	if p.Kind == "" {
		return errors.New("missing kind")
	}
	if _, err := hostcore.ParseOptions(p.Options); err != nil {
		return err
	}
	if p.ControlChannel < -1 || p.ControlChannel >= hostcore.MaxMIDIChannels {
		return errors.Errorf("invalid control channel %d", p.ControlChannel)
	}
	if p.Ports < 0 || p.Ports > MaxPorts {
		return errors.Errorf("invalid number of ports %d", p.Ports)
	}
	check := func(name string, v *float32, lo, hi float32) error {
		if v != nil && !(*v >= lo && *v <= hi) {
			return errors.Errorf("%s %v out of range %v..%v", name, *v, lo, hi)
		}
		return nil
	}
	for _, err := range []error{
		check("drywet", p.DryWet, 0, 1),
		check("volume", p.Volume, 0, 1.27),
		check("balanceleft", p.BalanceLeft, -1, 1),
		check("balanceright", p.BalanceRight, -1, 1),
	} {
		if err != nil {
			return err
		}
	}
	for _, m := range p.Mappings {
		if m.Parameter == "" {
			return errors.New("mapping without parameter")
		}
	}
	return nil
}

// Setup is the plugin constructor setup of the configuration.
func (c *Config) Setup() hostcore.Setup {
	return hostcore.Setup{SampleRate: c.SampleRate, BufferSize: c.BufferSize}
}

// NumPorts returns the number of MIDI ports, at least one.
func (c *Config) NumPorts() int { return max(c.Plugin.Ports, 1) }

// EngineConfig returns the engine configuration.
func (c *Config) EngineConfig(logger *slog.Logger) (engine.Config, error) {
	o, err := hostcore.ParseOptions(c.Plugin.Options)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		SampleRate:     c.SampleRate,
		BufferSize:     c.BufferSize,
		Options:        o,
		ControlChannel: c.Plugin.ControlChannel,
		Offline:        c.Plugin.Offline,
		Logger:         logger,
	}, nil
}

// Apply sets the post-processing values, parameters, mappings and program of
// the instance on e.
func (p *Plugin) Apply(e *engine.Engine) error {
	if p.DryWet != nil {
		e.SetDryWet(*p.DryWet)
	}
	if p.Volume != nil {
		e.SetVolume(*p.Volume)
	}
	if p.BalanceLeft != nil {
		e.SetBalanceLeft(*p.BalanceLeft)
	}
	if p.BalanceRight != nil {
		e.SetBalanceRight(*p.BalanceRight)
	}
	params := e.Parameters()
	for name, v := range p.Parameters {
		i, ok := e.ParameterIndex(name)
		if !ok {
			return errors.Errorf("unknown parameter %q", name)
		}
		if err := e.SetParameterValue(i, params[i].Normalize(v)); err != nil {
			return errors.Wrapf(err, "parameter %q", name)
		}
	}
	for _, m := range p.Mappings {
		i, ok := e.ParameterIndex(m.Parameter)
		if !ok {
			return errors.Errorf("unknown parameter %q", m.Parameter)
		}
		if err := e.MapParameter(i, m.Channel, m.Control); err != nil {
			return errors.Wrapf(err, "mapping of %q", m.Parameter)
		}
	}
	if p.Program != nil {
		if err := e.SetMIDIProgram(*p.Program); err != nil {
			return err
		}
	}
	return nil
}

// Capture records the host side state of e: options, control channel,
// post-processing, MIDI mappings and program. Plugin parameter values are
// kept as they are.
func (p *Plugin) Capture(e *engine.Engine) {
	p.Options = e.Options().Names()
	p.ControlChannel = e.ControlChannel()
	s := e.PostState()
	p.DryWet, p.Volume = &s.DryWet, &s.Volume
	p.BalanceLeft, p.BalanceRight = &s.BalanceLeft, &s.BalanceRight
	p.Mappings = p.Mappings[:0]
	for _, info := range e.Parameters() {
		if info.MIDIControl >= 0 {
			p.Mappings = append(p.Mappings, Mapping{Parameter: info.Name, Channel: info.MIDIChannel, Control: info.MIDIControl})
		}
	}
	if prg := e.MIDIProgram(); prg >= 0 {
		p.Program = &prg
	} else {
		p.Program = nil
	}
}
