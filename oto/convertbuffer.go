package oto

import (
	"encoding/binary"
	"math"

	"github.com/vsariola/hostcore"
)

// appendFloat32LE appends the frames as interleaved little-endian float32
// samples, the format the oto context is opened with.
func appendFloat32LE(dst []byte, buf hostcore.AudioBuffer) []byte {
	for _, f := range buf {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f[0]))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f[1]))
	}
	return dst
}

const bytesPerFrame = 8
