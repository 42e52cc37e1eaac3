package notes

import (
	"errors"
	"math"
	"testing"
)

func TestFrequencyTable(t *testing.T) {
	tbl := New()
	for _, tc := range []struct {
		index int
		want  float64
	}{
		{69, 440},
		{57, 220},
		{81, 880},
		{60, 261.6255653005986},
	} {
		v, err := tbl.Voice(tc.index)
		if err != nil {
			t.Fatalf("voice %d: %v", tc.index, err)
		}
		if math.Abs(v.Frequency-tc.want) > 1e-9 {
			t.Errorf("frequency[%d] = %v, want %v", tc.index, v.Frequency, tc.want)
		}
		if v.Index != tc.index {
			t.Errorf("voice index = %d, want %d", v.Index, tc.index)
		}
	}
}

func TestNoteOnRangeCheck(t *testing.T) {
	tbl := New()
	for _, i := range []int{-1, 128, 1000} {
		if err := tbl.NoteOn(i, 100, 0); !errors.Is(err, ErrIndexRange) {
			t.Errorf("NoteOn(%d) = %v, want ErrIndexRange", i, err)
		}
		if err := tbl.NoteOff(i, 0); !errors.Is(err, ErrIndexRange) {
			t.Errorf("NoteOff(%d) = %v, want ErrIndexRange", i, err)
		}
	}
	if err := tbl.NoteOn(0, 0, 0); err != nil {
		t.Fatalf("NoteOn(0): %v", err)
	}
	if err := tbl.NoteOn(127, 255, 0); err != nil {
		t.Fatalf("NoteOn(127): %v", err)
	}
}

func TestNoteOnRetriggers(t *testing.T) {
	tbl := New()
	_ = tbl.NoteOn(60, 10, 1)
	_ = tbl.NoteOff(60, 2)
	_ = tbl.NoteOn(60, 20, 3)
	v, _ := tbl.Voice(60)
	if !v.Active || v.PressTime != 3 || v.Velocity != 20 {
		t.Fatalf("retriggered voice = %+v", v)
	}
	if v.Timing().Released() {
		t.Fatalf("retriggered voice should not count as released")
	}
}

func TestNoteOffKeepsVoiceActiveUntilSweep(t *testing.T) {
	tbl := New()
	_ = tbl.NoteOn(64, 100, 0)
	_ = tbl.NoteOff(64, 1)
	if got := tbl.ActiveCount(); got != 1 {
		t.Fatalf("active after note off = %d, want 1", got)
	}
	if n := tbl.Sweep(1.5, 1); n != 0 {
		t.Fatalf("swept %d voices before release elapsed", n)
	}
	if n := tbl.Sweep(2, 1); n != 1 {
		t.Fatalf("swept %d voices, want 1", n)
	}
	if got := tbl.ActiveCount(); got != 0 {
		t.Fatalf("active after sweep = %d, want 0", got)
	}
}

func TestNoteOffDoesNotReviveIdleVoice(t *testing.T) {
	tbl := New()
	_ = tbl.NoteOff(40, 5)
	v, _ := tbl.Voice(40)
	if v.Active {
		t.Fatalf("note off activated an idle voice")
	}
	if n := tbl.Sweep(10, 0); n != 0 {
		t.Fatalf("sweep retired %d idle voices", n)
	}
}

func TestAllNotesOff(t *testing.T) {
	tbl := New()
	for _, i := range []int{10, 20, 30} {
		_ = tbl.NoteOn(i, 1, 0)
	}
	tbl.AllNotesOff(0.5)
	for i := 0; i < Count; i++ {
		if tbl.At(i).ReleaseTime != 0.5 {
			t.Fatalf("voice %d release time = %v, want 0.5", i, tbl.At(i).ReleaseTime)
		}
	}
	if n := tbl.Sweep(0.5, 0); n != 3 {
		t.Fatalf("swept %d voices, want 3", n)
	}
}
