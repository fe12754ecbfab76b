package vst

// bindChannels points dst at the first frames samples of the host channels.
// Plugin channels the host does not provide are set to nil, which the engine
// treats as silent input. It returns dst cut to the channels that were bound,
// so a plugin output without a host channel is not rendered.
func bindChannels(dst [][]float32, hostChannels, frames int, channel func(int) []float32) [][]float32 {
	n := min(len(dst), hostChannels)
	for i := 0; i < n; i++ {
		dst[i] = channel(i)[:frames]
	}
	for i := n; i < len(dst); i++ {
		dst[i] = nil
	}
	return dst[:n]
}
