package gomidi

import (
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/vsariola/hostcore"
	"gitlab.com/gomidi/midi/v2/smf"
)

type (
	// Sequence plays the channel messages of a Standard MIDI File. Track i
	// goes to port i modulo the number of ports.
	Sequence struct {
		ports [][]timedMsg
		pos   []int
		frame int
		end   int
	}

	timedMsg struct {
		frame int
		data  []byte
	}
)

// ReadSequence reads a Standard MIDI File, converting its times to frames at
// the given sample rate.
func ReadSequence(r io.Reader, sampleRate float64, ports int) (*Sequence, error) {
	if ports <= 0 {
		ports = 1
	}
	s := &Sequence{ports: make([][]timedMsg, ports), pos: make([]int, ports)}
	err := smf.ReadTracksFrom(r).Do(func(te smf.TrackEvent) {
		msg := []byte(te.Message)
		if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 {
			return // meta and sysex events
		}
		frame := int(float64(te.AbsMicroSeconds) * sampleRate / 1e6)
		p := te.TrackNo % ports
		s.ports[p] = append(s.ports[p], timedMsg{frame: frame, data: append([]byte(nil), msg...)})
		if frame >= s.end {
			s.end = frame + 1
		}
	}).Error()
	if err != nil {
		return nil, errors.Wrap(err, "could not read MIDI file")
	}
	for _, p := range s.ports {
		sort.SliceStable(p, func(i, j int) bool { return p[i].frame < p[j].frame })
	}
	return s, nil
}

// ReadSequenceFile is ReadSequence for a file.
func ReadSequenceFile(path string, sampleRate float64, ports int) (*Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open MIDI file")
	}
	defer f.Close()
	return ReadSequence(f, sampleRate, ports)
}

// FeedEvents implements hostcore.EventFeeder.
func (s *Sequence) FeedEvents(ports []*hostcore.EventBuffer, frames int) {
	for i, msgs := range s.ports {
		for s.pos[i] < len(msgs) && msgs[s.pos[i]].frame < s.frame+frames {
			if i < len(ports) {
				m := msgs[s.pos[i]]
				ports[i].WriteMIDI(m.frame-s.frame, m.data)
			}
			s.pos[i]++
		}
	}
	s.frame += frames
}

// Length is the frame after the last event.
func (s *Sequence) Length() int { return s.end }

// NumPorts returns the number of ports the sequence feeds.
func (s *Sequence) NumPorts() int { return len(s.ports) }

// NumEvents returns the number of events of port i.
func (s *Sequence) NumEvents(i int) int { return len(s.ports[i]) }

// Rewind starts the sequence from the beginning.
func (s *Sequence) Rewind() {
	s.frame = 0
	clear(s.pos)
}
