// Package effects holds the mono post-processing stages applied to engine
// output before it reaches a device or a file.
package effects

// Effector transforms one mono sample at a time. Implementations keep their
// own state and are not safe for concurrent use.
type Effector interface {
	Process(x float32) float32
	Reset()
}

// Chain applies effects in the order they were added.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(x float32) float32 {
	for _, e := range c.effects {
		x = e.Process(x)
	}
	return x
}

// ProcessBlock runs every sample of buf through the chain in place.
func (c *Chain) ProcessBlock(buf []float32) {
	if len(c.effects) == 0 {
		return
	}
	for i, x := range buf {
		buf[i] = c.Process(x)
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// Gain scales the signal by a fixed factor.
type Gain float32

func (g Gain) Process(x float32) float32 { return x * float32(g) }
func (g Gain) Reset()                    {}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
