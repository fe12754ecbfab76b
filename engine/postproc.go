package engine

import (
	"github.com/viterin/vek/vek32"
	"github.com/vsariola/hostcore"
)

type (
	// PostState is the host-side processing applied to the plugin output.
	PostState struct {
		DryWet       float32 // 0 = dry only, 1 = wet only
		Volume       float32 // 1 = unity
		BalanceLeft  float32 // -1..1
		BalanceRight float32 // -1..1
	}

	// PostProcessor mixes the wet signal rendered by a plugin with the dry
	// input and applies balance and volume.
	PostProcessor struct {
		scratch []float32
	}
)

// DefaultPostState is the identity: wet only, unity volume, full balance.
var DefaultPostState = PostState{DryWet: 1, Volume: 1, BalanceLeft: -1, BalanceRight: 1}

func NewPostProcessor(frames int) *PostProcessor {
	return &PostProcessor{scratch: make([]float32, frames)}
}

// Process post-processes frames samples of wet (modified in place) and writes
// the result to dst at the given frame offset. dry is the plugin input of the
// block and hist its history; a single dry channel feeds every output. Stages
// that are disabled by hints, or that are identities, are skipped.
func (p *PostProcessor) Process(s PostState, hints hostcore.Hints, wet, dry [][]float32, hist *Latency, dst [][]float32, offset, frames int) {
	if frames > len(p.scratch) {
		frames = len(p.scratch)
	}
	if hints&hostcore.HintCanDryWet != 0 && s.DryWet != 1 && len(dry) > 0 {
		d := p.scratch[:frames]
		for i, w := range wet {
			c := i
			if len(dry) == 1 {
				c = 0
			}
			if c >= len(dry) {
				continue
			}
			w = w[:frames]
			for k := range d {
				d[k] = hist.Dry(c, k, dry[c])
			}
			vek32.MulNumber_Inplace(w, s.DryWet)
			vek32.MulNumber_Inplace(d, 1-s.DryWet)
			vek32.Add_Inplace(w, d)
		}
	}
	if hints&hostcore.HintCanBalance != 0 && (s.BalanceLeft != -1 || s.BalanceRight != 1) {
		rangeL := (s.BalanceLeft + 1) / 2
		rangeR := (s.BalanceRight + 1) / 2
		old := p.scratch[:frames]
		for i := 0; i+1 < len(wet); i += 2 {
			l, r := wet[i][:frames], wet[i+1][:frames]
			copy(old, l)
			for k := range old {
				l[k] = old[k]*(1-rangeL) + r[k]*(1-rangeR)
				r[k] = r[k]*rangeR + old[k]*rangeL
			}
		}
	}
	doVolume := hints&hostcore.HintCanVolume != 0 && s.Volume != 1
	for i, w := range wet {
		if i >= len(dst) {
			break
		}
		out := dst[i][offset : offset+frames]
		if doVolume {
			vek32.MulNumber_Into(out, w[:frames], s.Volume)
		} else {
			copy(out, w[:frames])
		}
	}
}
