//go:build cgo

package gomidi

import (
	"strings"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Device is an open rtmidi input device feeding an Input.
type Device struct {
	*Input
	driver *rtmididrv.Driver
	in     drivers.In
	stop   func()
}

// InputNames lists the MIDI input devices.
func InputNames() ([]string, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, errors.Wrap(err, "could not open rtmidi driver")
	}
	defer driver.Close()
	ins, err := driver.Ins()
	if err != nil {
		return nil, errors.Wrap(err, "could not list MIDI inputs")
	}
	ret := make([]string, len(ins))
	for i, in := range ins {
		ret[i] = in.String()
	}
	return ret, nil
}

// Open opens the first MIDI input whose name starts with namePrefix; an empty
// prefix takes the first device.
func Open(namePrefix string, sampleRate float64, port int) (*Device, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, errors.Wrap(err, "could not open rtmidi driver")
	}
	ins, err := driver.Ins()
	if err != nil {
		driver.Close()
		return nil, errors.Wrap(err, "could not list MIDI inputs")
	}
	for _, in := range ins {
		if !strings.HasPrefix(in.String(), namePrefix) {
			continue
		}
		if err := in.Open(); err != nil {
			driver.Close()
			return nil, errors.Wrapf(err, "opening MIDI input %q failed", in.String())
		}
		d := &Device{Input: NewInput(sampleRate, port), driver: driver, in: in}
		d.stop, err = midi.ListenTo(in, d.HandleMessage)
		if err != nil {
			in.Close()
			driver.Close()
			return nil, errors.Wrapf(err, "could not listen to MIDI input %q", in.String())
		}
		return d, nil
	}
	driver.Close()
	if namePrefix == "" {
		return nil, errors.New("could not find any MIDI input")
	}
	return nil, errors.Errorf("could not find a MIDI input starting with %q", namePrefix)
}

func (d *Device) String() string { return d.in.String() }

func (d *Device) Close() error {
	if d.stop != nil {
		d.stop()
	}
	var err error
	if d.in.IsOpen() {
		err = d.in.Close()
	}
	d.driver.Close()
	return errors.Wrap(err, "could not close MIDI input")
}
