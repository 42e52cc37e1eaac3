package effects

// Delay is a feedback echo line mixed with the dry signal.
type Delay struct {
	buf      []float32
	pos      int
	feedback float32
	wet      float32
}

// NewDelay creates an echo delayMs long. feedback is capped at 0.95 so the
// line always decays; wet is the mix in [0, 1].
func NewDelay(sampleRate int, delayMs float64, feedback, wet float32) *Delay {
	n := int(delayMs * float64(sampleRate) / 1000)
	if n < 1 {
		n = 1
	}
	return &Delay{
		buf:      make([]float32, n),
		feedback: clamp(feedback, 0, 0.95),
		wet:      clamp(wet, 0, 1),
	}
}

func (d *Delay) Process(x float32) float32 {
	echo := d.buf[d.pos]
	d.buf[d.pos] = x + echo*d.feedback
	d.pos++
	if d.pos == len(d.buf) {
		d.pos = 0
	}
	return x*(1-d.wet) + echo*d.wet
}

func (d *Delay) Reset() {
	clear(d.buf)
	d.pos = 0
}
