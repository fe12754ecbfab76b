package hostcore

import (
	"math"

	"github.com/pkg/errors"
)

type (
	// Volume is an average and a peak volume measurement, in decibels. 0 dB =
	// signal level of +-1.
	Volume struct {
		Average [2]float64
		Peak    [2]float64
	}

	// VolumeAnalyzer measures the volume of AudioBuffers.
	//
	// The signal is first converted to decibels (0 dB = +-1). The average
	// level is an exponentially decaying average of the decibel values with
	// time constant Tau (in seconds). The peak level is smoothed the same way,
	// but with time constant Attack when the level rises and Release when it
	// falls. Typical values: Tau 0.3, Attack 1.5e-3, Release 1.5.
	//
	// Min is a hard lower limit for the levels, to avoid negative infinities.
	VolumeAnalyzer struct {
		Level      Volume
		Tau        float64
		Attack     float64
		Release    float64
		Min        float64
		SampleRate float64
	}
)

var ErrNaN = errors.New("NaN detected in output")

// NewVolumeAnalyzer returns an analyzer with the typical time constants.
func NewVolumeAnalyzer(sampleRate float64) *VolumeAnalyzer {
	v := &VolumeAnalyzer{Tau: 0.3, Attack: 1.5e-3, Release: 1.5, Min: -60, SampleRate: sampleRate}
	v.Reset()
	return v
}

func (v *VolumeAnalyzer) Reset() {
	v.Level = Volume{Average: [2]float64{v.Min, v.Min}, Peak: [2]float64{v.Min, v.Min}}
}

// Update analyzes the buffer. NaNs are skipped and reported with ErrNaN.
func (v *VolumeAnalyzer) Update(buffer AudioBuffer) (err error) {
	rate := v.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	// https://en.wikipedia.org/wiki/Exponential_smoothing
	alpha := 1 - math.Exp(-1.0/(v.Tau*rate))
	alphaAttack := 1 - math.Exp(-1.0/(v.Attack*rate))
	alphaRelease := 1 - math.Exp(-1.0/(v.Release*rate))
	for j := 0; j < 2; j++ {
		for i := range buffer {
			sample2 := float64(buffer[i][j]) * float64(buffer[i][j])
			if math.IsNaN(sample2) {
				err = ErrNaN
				continue
			}
			dB := 10 * math.Log10(sample2)
			if dB < v.Min || math.IsNaN(dB) {
				dB = v.Min
			}
			v.Level.Average[j] += (dB - v.Level.Average[j]) * alpha
			a := alphaAttack
			if dB < v.Level.Peak[j] {
				a = alphaRelease
			}
			v.Level.Peak[j] += (dB - v.Level.Peak[j]) * a
		}
	}
	return err
}
