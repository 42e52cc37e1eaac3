// Package waves is a modular FM synthesis engine. Oscillator nodes modulate
// one another in a directed graph that ends in a single output node, every
// node carries its own ADSR envelope, and a fixed table of 128 voices (one per
// MIDI note) is rendered through the graph one sample at a time.
//
// An Engine is built in two phases. During setup, Create, Connect and
// SetEnvelope shape the graph. Once the first frame is rendered the graph is
// sealed and only note events and rendering remain. The engine does no
// locking; drive it from one goroutine or go through a Player.
package waves

import (
	"math"

	"github.com/cbegin/waves-go/internal/envelope"
	"github.com/cbegin/waves-go/internal/notes"
)

const twoPi = 2 * math.Pi

// Voice is a snapshot of one note slot.
type Voice = notes.Voice

// VoiceCount is the fixed number of voice slots.
const VoiceCount = notes.Count

type Engine struct {
	sampleRate float64
	frames     uint64
	now        float64
	nodes      []node
	notes      *notes.Table
	maxRelease float64
	sealed     bool
}

// New creates an engine holding only the output node.
func New(sampleRate float64) (*Engine, error) {
	if math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) || sampleRate <= 0 {
		return nil, ErrInvalidSampleRate
	}
	e := &Engine{
		sampleRate: sampleRate,
		nodes:      make([]node, 2, 16),
		notes:      notes.New(),
	}
	e.nodes[OutputHandle] = node{kind: Output, env: envelope.Default()}
	return e, nil
}

func (e *Engine) SampleRate() float64 { return e.sampleRate }

// Time is the engine clock in seconds: the time of the next rendered frame.
func (e *Engine) Time() float64 { return e.now }

// Frames is the number of frames rendered so far.
func (e *Engine) Frames() uint64 { return e.frames }

// Sealed reports whether rendering has started.
func (e *Engine) Sealed() bool { return e.sealed }

// NoteOn presses note index (0..127) at the current clock time. Pressing a
// sounding note re-triggers its envelopes.
func (e *Engine) NoteOn(index int, velocity uint8) error {
	return e.notes.NoteOn(index, velocity, e.now)
}

// NoteOff releases note index. The voice keeps sounding through its release
// and is retired by the render loop once the longest release in the graph
// has elapsed.
func (e *Engine) NoteOff(index int) error {
	return e.notes.NoteOff(index, e.now)
}

func (e *Engine) AllNotesOff() {
	e.notes.AllNotesOff(e.now)
}

func (e *Engine) Voice(index int) (Voice, error) {
	return e.notes.Voice(index)
}

func (e *Engine) ActiveVoiceCount() int {
	return e.notes.ActiveCount()
}

// GetFrame renders one mono sample at the current clock time, retires voices
// whose release has run out and advances the clock by one sample period.
// The result is the plain sum over voices and is not clamped.
func (e *Engine) GetFrame() float32 {
	e.sealed = true
	var acc float64
	for i := 0; i < notes.Count; i++ {
		v := e.notes.At(i)
		if envelope.Classify(v.Timing(), e.now, e.maxRelease).Audible() {
			acc += e.evaluate(OutputHandle, v, false)
		}
	}
	e.notes.Sweep(e.now, e.maxRelease)
	e.frames++
	e.now = float64(e.frames) / e.sampleRate
	return float32(acc)
}

// Process fills dst with consecutive mono frames.
func (e *Engine) Process(dst []float32) {
	for i := range dst {
		dst[i] = e.GetFrame()
	}
}

// evaluate computes the value of node h for voice v. Inputs of the output
// node are scaled by their output amplitude, every other input by its
// modulation amplitude.
func (e *Engine) evaluate(h Handle, v *notes.Voice, toOutput bool) float64 {
	n := &e.nodes[h]
	var modulation float64
	feedsOutput := n.kind == Output
	for _, in := range n.inputs {
		modulation += e.evaluate(in, v, feedsOutput)
	}
	switch n.kind {
	case Output:
		return modulation
	case Sine:
		amp := n.modulationAmp
		if toOutput {
			amp = n.outputAmp
		}
		amp *= envelope.Multiplier(n.env, v.Timing(), e.now, e.maxRelease)
		return math.Sin(twoPi*e.now*v.Frequency*n.ratio+modulation) * amp
	default:
		panic(&UnsupportedKindError{Handle: h, Kind: n.kind})
	}
}
