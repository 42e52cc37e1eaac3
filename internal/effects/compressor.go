package effects

import "math"

// Compressor is a feed-forward peak compressor. Levels above the threshold
// are reduced by ratio; the detector follows the rectified input with
// separate attack and release coefficients.
type Compressor struct {
	threshold float32
	ratio     float32
	attack    float32
	release   float32
	makeup    float32
	env       float32
}

// NewCompressor builds a compressor. thresholdDB and makeupDB are in
// decibels, attackMs and releaseMs are detector time constants.
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: dbToLinear(thresholdDB),
		ratio:     ratio,
		attack:    smoothing(sampleRate, attackMs),
		release:   smoothing(sampleRate, releaseMs),
		makeup:    dbToLinear(makeupDB),
	}
}

func (c *Compressor) Process(x float32) float32 {
	level := float32(math.Abs(float64(x)))
	coeff := c.release
	if level > c.env {
		coeff = c.attack
	}
	c.env += coeff * (level - c.env)
	return x * c.gain() * c.makeup
}

func (c *Compressor) gain() float32 {
	if c.env <= c.threshold || c.threshold <= 0 {
		return 1
	}
	over := float64(c.env / c.threshold)
	return float32(math.Pow(over, 1/float64(c.ratio)-1))
}

func (c *Compressor) Reset() { c.env = 0 }

func dbToLinear(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

// smoothing converts a time constant into a one-pole coefficient.
func smoothing(sampleRate int, ms float32) float32 {
	n := float64(ms) * float64(sampleRate) / 1000
	if n <= 0 {
		return 1
	}
	return float32(1 - math.Exp(-1/n))
}
