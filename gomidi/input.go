// Package gomidi feeds MIDI from gomidi sources, live devices and Standard
// MIDI Files, into the event ports of an engine.
package gomidi

import (
	"github.com/vsariola/hostcore"
	"gitlab.com/gomidi/midi/v2"
)

type (
	// Input is a live MIDI input. The driver calls HandleMessage from its own
	// goroutine; the audio thread calls FeedEvents once per cycle. The
	// timestamps of the driver are converted to frames, and the clock of the
	// input slowly follows the audio clock, so that the events keep their
	// relative timing but do not drift away.
	Input struct {
		rate          float64
		port          int
		events        chan timestampedMsg
		buf           []timestampedMsg
		startFrame    int
		startFrameSet bool
	}

	timestampedMsg struct {
		frame int
		msg   midi.Message
	}
)

const inputQueueSize = 1024

// NewInput returns an input writing to the given port index.
func NewInput(sampleRate float64, port int) *Input {
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	return &Input{
		rate:   sampleRate,
		port:   port,
		events: make(chan timestampedMsg, inputQueueSize),
		buf:    make([]timestampedMsg, 0, inputQueueSize),
	}
}

// HandleMessage is the gomidi listener callback. It never blocks: when the
// queue is full, the message is dropped.
func (in *Input) HandleMessage(msg midi.Message, timestampms int32) {
	select {
	case in.events <- timestampedMsg{frame: int(float64(timestampms) * in.rate / 1000), msg: msg}:
	default:
	}
}

// FeedEvents implements hostcore.EventFeeder.
func (in *Input) FeedEvents(ports []*hostcore.EventBuffer, frames int) {
F:
	for len(in.buf) < cap(in.buf) {
		select {
		case m := <-in.events:
			in.buf = append(in.buf, m)
			if !in.startFrameSet {
				in.startFrame = m.frame
				in.startFrameSet = true
			}
		default:
			break F
		}
	}
	n := 0
	for _, m := range in.buf {
		f := m.frame - in.startFrame
		if f >= frames {
			break
		}
		if f < 0 {
			// late: play now and pull the clock towards the event
			in.startFrame += f / 5
			f = 0
		}
		if in.port < len(ports) {
			ports[in.port].WriteMIDI(f, m.msg)
		}
		n++
	}
	in.buf = in.buf[:copy(in.buf, in.buf[n:])]
	in.startFrame += frames
	if len(in.buf) > 0 {
		// the next event is in the future; move the clock a bit towards it
		if delta := in.startFrame - in.buf[0].frame; delta < 0 {
			in.startFrame -= delta / 5
		}
	}
}
