// Package lfo is a low-frequency oscillator for per-sample control signals.
package lfo

import "math"

type Shape int

const (
	Sine Shape = iota
	Triangle
	Square
	Saw
)

// LFO produces a periodic value in [-depth, depth]. The phase advances by a
// fixed step per sample, so output depends only on the number of samples
// drawn.
type LFO struct {
	depth float64
	step  float64
	shape Shape
	phase float64
}

// New returns an LFO at rateHz for the given sample rate.
func New(sampleRate, rateHz, depth float64, shape Shape) *LFO {
	l := &LFO{}
	l.Set(sampleRate, rateHz, depth, shape)
	return l
}

func (l *LFO) Set(sampleRate, rateHz, depth float64, shape Shape) {
	l.depth = depth
	l.step = 0
	if sampleRate > 0 {
		l.step = rateHz / sampleRate
	}
	if shape < Sine || shape > Saw {
		shape = Sine
	}
	l.shape = shape
}

// Sample returns the value at the current phase and advances by one sample.
func (l *LFO) Sample() float64 {
	if !l.Active() {
		return 0
	}
	v := l.value()
	l.phase += l.step
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

func (l *LFO) value() float64 {
	p := l.phase
	switch l.shape {
	case Triangle:
		if p < 0.5 {
			return 4*p - 1
		}
		return 3 - 4*p
	case Square:
		if p < 0.5 {
			return 1
		}
		return -1
	case Saw:
		return 2*p - 1
	default:
		return math.Sin(2 * math.Pi * p)
	}
}

func (l *LFO) Active() bool {
	return l.depth != 0 && l.step != 0
}

// Reset zeros the phase.
func (l *LFO) Reset() {
	l.phase = 0
}
