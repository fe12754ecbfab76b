package engine

// MaxLatencyFrames is the largest plugin latency that is compensated. Larger
// reported latencies disable the compensation.
const MaxLatencyFrames = 1 << 18

// Latency is the dry signal history of a plugin with latency: for every audio
// input it holds the last Frames() input samples, so that the dry signal can
// be delayed as much as the plugin delays the wet signal.
type Latency struct {
	buffers [][]float32
}

// NewLatency allocates a zeroed history of frames samples per channel.
func NewLatency(channels, frames int) *Latency {
	if frames < 0 {
		frames = 0
	}
	l := &Latency{buffers: make([][]float32, channels)}
	for i := range l.buffers {
		l.buffers[i] = make([]float32, frames)
	}
	return l
}

func (l *Latency) Frames() int {
	if l == nil || len(l.buffers) == 0 {
		return 0
	}
	return len(l.buffers[0])
}

func (l *Latency) Channels() int {
	if l == nil {
		return 0
	}
	return len(l.buffers)
}

// Clear zeroes the history, e.g. after a transport discontinuity.
func (l *Latency) Clear() {
	if l == nil {
		return
	}
	for _, b := range l.buffers {
		clear(b)
	}
}

// Dry returns the delayed dry sample for frame k of the current block of
// channel c, given the undelayed input of the block.
func (l *Latency) Dry(c, k int, in []float32) float32 {
	n := l.Frames()
	if c >= l.Channels() {
		n = 0
	}
	if k < n {
		return l.buffers[c][k]
	}
	return in[k-n]
}

// Update appends the first frames samples of every input channel to the
// history, dropping the oldest samples.
func (l *Latency) Update(in [][]float32, frames int) {
	n := l.Frames()
	if n == 0 {
		return
	}
	for c, h := range l.buffers {
		if c >= len(in) {
			break
		}
		src := in[c][:frames]
		if frames >= n {
			copy(h, src[frames-n:])
			continue
		}
		copy(h, h[frames:])
		copy(h[n-frames:], src)
	}
}
