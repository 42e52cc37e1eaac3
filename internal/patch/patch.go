// Package patch holds the built-in operator graphs the commands can load by
// name.
package patch

import (
	"errors"
	"fmt"
	"sort"

	waves "github.com/cbegin/waves-go"
)

var ErrUnknownPatch = errors.New("unknown patch")

type Patch struct {
	Name        string
	Description string
	build       func(*builder)
}

var registry = map[string]Patch{}

func register(p Patch) {
	registry[p.Name] = p
}

func init() {
	register(Patch{
		Name:        "sine",
		Description: "a single unmodulated sine at the note frequency",
		build: func(b *builder) {
			c := b.create(1, 0.3, 0)
			b.envelope(c, waves.Envelope{Attack: 0.01, Sustain: 1, Release: 0.1})
			b.connect(c, waves.OutputHandle)
		},
	})
	register(Patch{
		Name:        "cascade",
		Description: "three stacked operators: a sub-octave modulator driven by a unison modulator",
		build: func(b *builder) {
			carrier := b.create(1, 0.2, 0)
			m1 := b.create(0.25, 0, 1)
			m2 := b.create(1, 0, 0.2)
			b.connect(m1, carrier)
			b.connect(m2, m1)
			b.connect(carrier, waves.OutputHandle)
			b.envelope(carrier, waves.Envelope{Attack: 0.005, Sustain: 1, Release: 0.2})
		},
	})
	register(Patch{
		Name:        "keys",
		Description: "carrier with two parallel modulators, each with its own ADSR",
		build: func(b *builder) {
			carrier := b.create(1, 0.2, 0)
			m1 := b.create(1.5, 0, 0.2)
			m2 := b.create(0.5, 0, 6)
			b.connect(m1, carrier)
			b.connect(m2, carrier)
			b.connect(carrier, waves.OutputHandle)
			b.envelope(carrier, waves.Envelope{Attack: 0.1, Decay: 0.6, Sustain: 0.6, Release: 1})
			b.envelope(m1, waves.Envelope{Attack: 0.1, Decay: 0.3, Sustain: 0.4, Release: 0.4})
			b.envelope(m2, waves.Envelope{Attack: 0.1, Decay: 0.5, Sustain: 0.2, Release: 0.4})
		},
	})
	register(Patch{
		Name:        "bell",
		Description: "inharmonic modulator with a fast decaying index over a long carrier",
		build: func(b *builder) {
			carrier := b.create(1, 0.25, 0)
			partial := b.create(2.76, 0.05, 0)
			mod := b.create(3.5, 0, 4)
			b.connect(mod, carrier)
			b.connect(carrier, waves.OutputHandle)
			b.connect(partial, waves.OutputHandle)
			b.envelope(carrier, waves.Envelope{Attack: 0.002, Decay: 2.5, Sustain: 0, Release: 1.5})
			b.envelope(partial, waves.Envelope{Attack: 0.002, Decay: 0.8, Sustain: 0, Release: 0.5})
			b.envelope(mod, waves.Envelope{Attack: 0.001, Decay: 1.2, Sustain: 0.1, Release: 1})
		},
	})
}

// Names lists the built-in patches in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Lookup(name string) (Patch, error) {
	p, ok := registry[name]
	if !ok {
		return Patch{}, fmt.Errorf("%w: %q", ErrUnknownPatch, name)
	}
	return p, nil
}

// Apply builds the named patch into e, which must not have started
// rendering.
func Apply(e *waves.Engine, name string) error {
	p, err := Lookup(name)
	if err != nil {
		return err
	}
	b := &builder{e: e}
	p.build(b)
	if b.err != nil {
		return fmt.Errorf("patch %s: %w", name, b.err)
	}
	return nil
}

// builder keeps the first error so patch definitions read as plain
// sequences of calls.
type builder struct {
	e   *waves.Engine
	err error
}

func (b *builder) create(ratio, outAmp, modAmp float64) waves.Handle {
	if b.err != nil {
		return waves.NullHandle
	}
	h, err := b.e.Create(waves.Sine, ratio, outAmp, modAmp)
	b.err = err
	return h
}

func (b *builder) connect(from, to waves.Handle) {
	if b.err == nil {
		b.err = b.e.Connect(from, to)
	}
}

func (b *builder) envelope(h waves.Handle, env waves.Envelope) {
	if b.err == nil {
		b.err = b.e.SetEnvelope(h, env)
	}
}
