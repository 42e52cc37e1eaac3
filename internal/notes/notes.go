// Package notes is the fixed 128-slot polyphonic note table.
package notes

import (
	"errors"
	"fmt"
	"math"

	"github.com/cbegin/waves-go/internal/envelope"
)

// Count is the number of voice slots, one per MIDI note number.
const Count = 128

var ErrIndexRange = errors.New("note index out of range")

// Voice is one note slot. Timestamps are absolute engine clock times.
type Voice struct {
	Index       int
	Frequency   float64
	PressTime   float64
	ReleaseTime float64
	Velocity    uint8
	Active      bool
}

// Timing returns the fields the envelope generator depends on.
func (v *Voice) Timing() envelope.Timing {
	return envelope.Timing{Active: v.Active, PressTime: v.PressTime, ReleaseTime: v.ReleaseTime}
}

type Table struct {
	voices [Count]Voice
}

func New() *Table {
	t := &Table{}
	for i := range t.voices {
		t.voices[i] = Voice{Index: i, Frequency: Frequency(i)}
	}
	return t
}

// Frequency is the equal-tempered pitch of note index i, A4 (69) = 440 Hz.
func Frequency(i int) float64 {
	return 440 * math.Pow(2, float64(i-69)/12)
}

func checkIndex(i int) error {
	if i < 0 || i >= Count {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrIndexRange, i, Count-1)
	}
	return nil
}

// NoteOn activates slot i at time now. Pressing an already active slot
// re-triggers it from the start of its envelope.
func (t *Table) NoteOn(i int, velocity uint8, now float64) error {
	if err := checkIndex(i); err != nil {
		return err
	}
	v := &t.voices[i]
	v.PressTime = now
	v.Velocity = velocity
	v.Active = true
	return nil
}

// NoteOff records the release time. The slot stays active until Sweep
// finds it expired.
func (t *Table) NoteOff(i int, now float64) error {
	if err := checkIndex(i); err != nil {
		return err
	}
	t.voices[i].ReleaseTime = now
	return nil
}

func (t *Table) AllNotesOff(now float64) {
	for i := range t.voices {
		t.voices[i].ReleaseTime = now
	}
}

// Sweep retires every voice whose release window has elapsed and returns
// how many were retired.
func (t *Table) Sweep(now, maxRelease float64) int {
	n := 0
	for i := range t.voices {
		v := &t.voices[i]
		if envelope.Classify(v.Timing(), now, maxRelease) == envelope.Expired {
			v.Active = false
			n++
		}
	}
	return n
}

// At returns a pointer into the table for the render loop. i must be valid.
func (t *Table) At(i int) *Voice {
	return &t.voices[i]
}

func (t *Table) Voice(i int) (Voice, error) {
	if err := checkIndex(i); err != nil {
		return Voice{}, err
	}
	return t.voices[i], nil
}

func (t *Table) ActiveCount() int {
	n := 0
	for i := range t.voices {
		if t.voices[i].Active {
			n++
		}
	}
	return n
}
