package effects

import "github.com/cbegin/waves-go/internal/lfo"

// Tremolo modulates amplitude with a sine LFO. depth 0 is a no-op and depth
// 1 swings the gain between 0 and 1.
type Tremolo struct {
	osc   *lfo.LFO
	depth float32
}

func NewTremolo(sampleRate int, rateHz, depth float32) *Tremolo {
	depth = clamp(depth, 0, 1)
	return &Tremolo{
		osc:   lfo.New(float64(sampleRate), float64(rateHz), 1, lfo.Sine),
		depth: depth,
	}
}

func (t *Tremolo) Process(x float32) float32 {
	m := float32(t.osc.Sample())
	return x * (1 - t.depth*(0.5-0.5*m))
}

func (t *Tremolo) Reset() { t.osc.Reset() }
