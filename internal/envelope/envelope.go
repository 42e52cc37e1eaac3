// Package envelope computes ADSR amplitude multipliers from a voice's
// press/release timestamps. Everything here is pure: nothing is cached and no
// state is mutated, so the same inputs always produce the same multiplier.
package envelope

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is returned by Validate for negative durations or a sustain
// level outside [0, 1].
var ErrInvalid = errors.New("invalid envelope")

// Envelope shapes a node's amplitude over a voice's lifetime.
// Attack, Decay and Release are durations in seconds; Sustain is a level ratio.
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

// Default is full level immediately, never decaying.
func Default() Envelope {
	return Envelope{Sustain: 1}
}

func (e Envelope) Validate() error {
	for _, d := range []struct {
		name string
		v    float64
	}{
		{"attack", e.Attack},
		{"decay", e.Decay},
		{"release", e.Release},
	} {
		if math.IsNaN(d.v) || math.IsInf(d.v, 0) || d.v < 0 {
			return fmt.Errorf("%w: %s %v must be a finite value >= 0", ErrInvalid, d.name, d.v)
		}
	}
	if math.IsNaN(e.Sustain) || e.Sustain < 0 || e.Sustain > 1 {
		return fmt.Errorf("%w: sustain %v must be within [0, 1]", ErrInvalid, e.Sustain)
	}
	return nil
}

// Timing is the part of a voice the envelope depends on.
type Timing struct {
	Active      bool
	PressTime   float64
	ReleaseTime float64
}

// Released reports whether a note-off arrived after the latest note-on.
func (t Timing) Released() bool {
	return t.ReleaseTime > t.PressTime
}

// State is a voice's lifecycle phase at a given clock time.
type State int

const (
	Idle State = iota
	Pressed
	Released
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Audible reports whether a voice in this state must be rendered.
func (s State) Audible() bool {
	return s == Pressed || s == Released
}

// Classify derives the lifecycle state. A released voice expires once the
// time since release reaches maxRelease, the longest release of any envelope
// in the graph, not the release of any single node.
func Classify(t Timing, now, maxRelease float64) State {
	if !t.Active {
		return Idle
	}
	if !t.Released() {
		return Pressed
	}
	if now-t.ReleaseTime >= maxRelease {
		return Expired
	}
	return Released
}

// Level is the attack/decay/sustain level tPress seconds after note-on.
func (e Envelope) Level(tPress float64) float64 {
	switch {
	case tPress < e.Attack:
		return tPress / e.Attack
	case tPress < e.Attack+e.Decay:
		return 1 + (e.Sustain-1)*(tPress-e.Attack)/e.Decay
	default:
		return e.Sustain
	}
}

// Multiplier returns the amplitude multiplier for env at clock time now.
//
// A released voice keeps following its attack/decay curve measured from the
// note-on time; the level is not frozen at the instant of release. The linear
// release ramp is applied on top of that.
func Multiplier(env Envelope, t Timing, now, maxRelease float64) float64 {
	level := env.Level(now - t.PressTime)
	if !t.Released() {
		return level
	}
	tRelease := now - t.ReleaseTime
	if tRelease >= maxRelease {
		return 0
	}
	return level * releaseRamp(env.Release, tRelease)
}

func releaseRamp(release, tRelease float64) float64 {
	if release <= 0 {
		return 0
	}
	r := 1 - tRelease/release
	if r < 0 {
		return 0
	}
	return r
}
