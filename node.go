package waves

import (
	"fmt"

	"github.com/cbegin/waves-go/internal/envelope"
)

// Kind selects a node's oscillator.
type Kind int

const (
	Sine Kind = iota
	Triangle
	Saw
	Square
	Output
)

func (k Kind) String() string {
	switch k {
	case Sine:
		return "sine"
	case Triangle:
		return "triangle"
	case Saw:
		return "saw"
	case Square:
		return "square"
	case Output:
		return "output"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Supported reports whether the render path can evaluate this kind.
func (k Kind) Supported() bool {
	return k == Sine || k == Output
}

// Handle is the stable identity of a node. Handles are never reused.
type Handle int

const (
	// NullHandle never addresses a node.
	NullHandle Handle = 0
	// OutputHandle addresses the single output node; connect a node to it
	// to make it audible.
	OutputHandle Handle = 1
)

// Envelope is the ADSR definition attached to every node.
type Envelope = envelope.Envelope

type node struct {
	kind          Kind
	ratio         float64
	outputAmp     float64
	modulationAmp float64
	inputs        []Handle
	env           Envelope
}

// NodeInfo is a read-only snapshot of a node.
type NodeInfo struct {
	Handle              Handle
	Kind                Kind
	FrequencyRatio      float64
	OutputAmplitude     float64
	ModulationAmplitude float64
	Inputs              []Handle
	Envelope            Envelope
}

// Create appends a node and returns its handle. frequencyRatio multiplies the
// voice's base frequency. outputAmplitude applies while the node feeds the
// output directly, modulationAmplitude while it modulates another node.
func (e *Engine) Create(kind Kind, frequencyRatio, outputAmplitude, modulationAmplitude float64) (Handle, error) {
	if e.sealed {
		return NullHandle, ErrSealed
	}
	if kind < Sine || kind > Output {
		return NullHandle, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	if kind == Output {
		return NullHandle, ErrDuplicateOutput
	}
	e.nodes = append(e.nodes, node{
		kind:          kind,
		ratio:         frequencyRatio,
		outputAmp:     outputAmplitude,
		modulationAmp: modulationAmplitude,
		env:           envelope.Default(),
	})
	return Handle(len(e.nodes) - 1), nil
}

// SetEnvelope replaces the envelope of h. The engine-wide maximum release,
// which decides when released voices are retired, only ever grows.
func (e *Engine) SetEnvelope(h Handle, env Envelope) error {
	if e.sealed {
		return ErrSealed
	}
	if err := e.checkHandle(h); err != nil {
		return err
	}
	if err := env.Validate(); err != nil {
		return fmt.Errorf("waveform %d: %w", h, err)
	}
	e.nodes[h].env = env
	if env.Release > e.maxRelease {
		e.maxRelease = env.Release
	}
	return nil
}

func (e *Engine) Node(h Handle) (NodeInfo, error) {
	if err := e.checkHandle(h); err != nil {
		return NodeInfo{}, err
	}
	n := &e.nodes[h]
	return NodeInfo{
		Handle:              h,
		Kind:                n.kind,
		FrequencyRatio:      n.ratio,
		OutputAmplitude:     n.outputAmp,
		ModulationAmplitude: n.modulationAmp,
		Inputs:              append([]Handle(nil), n.inputs...),
		Envelope:            n.env,
	}, nil
}

// NodeCount counts real nodes, including the output node.
func (e *Engine) NodeCount() int {
	return len(e.nodes) - 1
}

// MaxRelease is the longest release of any envelope ever set.
func (e *Engine) MaxRelease() float64 {
	return e.maxRelease
}

func (e *Engine) checkHandle(h Handle) error {
	if h == NullHandle {
		return ErrNullHandle
	}
	if h < 0 || int(h) >= len(e.nodes) {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	return nil
}
