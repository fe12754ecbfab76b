package engine

import (
	"io"

	"github.com/vsariola/hostcore"
)

// Stream drives an Engine as a hostcore.AudioSource: for every cycle it
// clears the ports, lets the feeder fill them and processes the cycle. It
// has no audio input. A mono plugin is heard on both sides.
type Stream struct {
	engine    *Engine
	feeder    hostcore.EventFeeder
	ports     []*hostcore.EventBuffer
	cycle     int
	remaining int
	in, out   [][]float32
	view      [][]float32
}

// NewStream returns a stream rendering length frames in cycles of at most
// cycle frames; length < 0 means forever. The ports must be the ones the
// engine was created with.
func NewStream(e *Engine, feeder hostcore.EventFeeder, ports []*hostcore.EventBuffer, cycle, length int) *Stream {
	if cycle <= 0 || cycle > e.bufferSize {
		cycle = e.bufferSize
	}
	outs := max(e.info.AudioOuts, 1)
	return &Stream{
		engine:    e,
		feeder:    feeder,
		ports:     ports,
		cycle:     cycle,
		remaining: length,
		in:        makeBuffers(e.info.AudioIns, cycle),
		out:       makeBuffers(outs, cycle),
		view:      make([][]float32, outs),
	}
}

// ReadAudio implements hostcore.AudioSource.
func (s *Stream) ReadAudio(buf hostcore.AudioBuffer) (n int, err error) {
	for n < len(buf) {
		if s.remaining == 0 {
			return n, io.EOF
		}
		frames := min(s.cycle, len(buf)-n)
		if s.remaining > 0 {
			frames = min(frames, s.remaining)
			s.remaining -= frames
		}
		for _, p := range s.ports {
			p.Clear()
		}
		if s.feeder != nil {
			s.feeder.FeedEvents(s.ports, frames)
		}
		for i, b := range s.out {
			s.view[i] = b[:frames]
		}
		s.engine.Process(s.in, s.view, frames)
		buf.Interleave(n, s.view)
		n += frames
	}
	return n, nil
}
