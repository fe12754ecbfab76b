package hostcore

import "io"

type (
	// AudioBuffer is stereo audio, one [left, right] pair per frame.
	AudioBuffer [][2]float32

	// AudioSource produces audio on demand, e.g. an engine driven by a MIDI
	// sequence. ReadAudio fills the whole buffer; io.EOF signals that the
	// source has nothing more to play, possibly after a partially filled
	// buffer, in which case n tells how many frames are valid.
	AudioSource interface {
		ReadAudio(buf AudioBuffer) (n int, err error)
	}

	// EventFeeder writes the events of the next cycle of frames into the
	// ports, with times relative to the cycle start. Port i receives the
	// events of MIDI input i.
	EventFeeder interface {
		FeedEvents(ports []*EventBuffer, frames int)
	}
)

// Interleave copies planar channels into the buffer, starting at frame
// offset. A single channel is copied to both sides; channels beyond the
// second are ignored.
func (b AudioBuffer) Interleave(offset int, channels [][]float32) {
	switch len(channels) {
	case 0:
		for i := offset; i < len(b); i++ {
			b[i] = [2]float32{}
		}
	case 1:
		for i, v := range channels[0] {
			if offset+i >= len(b) {
				break
			}
			b[offset+i] = [2]float32{v, v}
		}
	default:
		l, r := channels[0], channels[1]
		for i := range l {
			if offset+i >= len(b) || i >= len(r) {
				break
			}
			b[offset+i] = [2]float32{l[i], r[i]}
		}
	}
}

// Flat returns the buffer as interleaved samples L R L R ...
func (b AudioBuffer) Flat() []float32 {
	ret := make([]float32, 0, 2*len(b))
	for _, f := range b {
		ret = append(ret, f[0], f[1])
	}
	return ret
}

// Source returns an AudioSource playing the buffer once.
func (b AudioBuffer) Source() AudioSource {
	return &bufferSource{buffer: b}
}

type bufferSource struct {
	buffer AudioBuffer
	pos    int
}

func (s *bufferSource) ReadAudio(buf AudioBuffer) (n int, err error) {
	n = copy(buf, s.buffer[s.pos:])
	s.pos += n
	if s.pos >= len(s.buffer) {
		return n, io.EOF
	}
	return n, nil
}
