package hostcore

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/pkg/errors"
)

// WriteWAV encodes the buffer as a stereo wav file. The samples are written as
// 16-bit integers if pcm16 is set and as 24-bit integers otherwise.
func WriteWAV(w io.WriteSeeker, buffer AudioBuffer, sampleRate int, pcm16 bool) error {
	pos := 0
	s := beep.StreamerFunc(func(samples [][2]float64) (n int, ok bool) {
		if pos >= len(buffer) {
			return 0, false
		}
		for n < len(samples) && pos < len(buffer) {
			samples[n][0] = float64(buffer[pos][0])
			samples[n][1] = float64(buffer[pos][1])
			n++
			pos++
		}
		return n, true
	})
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 2,
		Precision:   3,
	}
	if pcm16 {
		format.Precision = 2
	}
	if err := wav.Encode(w, s, format); err != nil {
		return errors.Wrap(err, "could not encode wav")
	}
	return nil
}

// Raw returns the buffer as raw little-endian samples, either float32 or, if
// pcm16 is set, int16.
func Raw(buffer AudioBuffer, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	var err error
	if pcm16 {
		data := make([]int16, 0, 2*len(buffer))
		for _, f := range buffer {
			data = append(data, toInt16(f[0]), toInt16(f[1]))
		}
		err = binary.Write(buf, binary.LittleEndian, data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, buffer.Flat())
	}
	if err != nil {
		return nil, errors.Wrap(err, "could not write raw audio")
	}
	return buf.Bytes(), nil
}

func toInt16(v float32) int16 {
	switch {
	case v != v:
		return 0
	case v <= -1:
		return -math.MaxInt16
	case v >= 1:
		return math.MaxInt16
	}
	return int16(v * math.MaxInt16)
}
