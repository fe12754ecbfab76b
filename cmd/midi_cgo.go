//go:build cgo

package cmd

import (
	"io"

	"github.com/vsariola/hostcore"
	"github.com/vsariola/hostcore/gomidi"
)

// OpenMIDI opens the first MIDI input whose name starts with namePrefix. Its
// events go to the given port.
func OpenMIDI(namePrefix string, sampleRate float64, port int) (hostcore.EventFeeder, io.Closer, error) {
	d, err := gomidi.Open(namePrefix, sampleRate, port)
	if err != nil {
		return nil, nil, err
	}
	return d, d, nil
}

func MIDIInputs() ([]string, error) { return gomidi.InputNames() }
