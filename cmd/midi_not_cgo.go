//go:build !cgo

package cmd

import (
	"io"

	"github.com/pkg/errors"
	"github.com/vsariola/hostcore"
)

// with no cgo, we cannot use MIDI devices
var errNoMIDI = errors.New("MIDI input is not available in builds without cgo")

func OpenMIDI(namePrefix string, sampleRate float64, port int) (hostcore.EventFeeder, io.Closer, error) {
	return nil, nil, errNoMIDI
}

func MIDIInputs() ([]string, error) { return nil, errNoMIDI }
