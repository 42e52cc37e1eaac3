package midiin

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

func TestTranslate(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  midi.Message
		want Event
		ok   bool
	}{
		{"note on", midi.NoteOn(2, 60, 100), Event{Kind: NoteOn, Channel: 2, Note: 60, Velocity: 100}, true},
		{"note off", midi.NoteOff(0, 61), Event{Kind: NoteOff, Note: 61}, true},
		{"note on zero velocity", midi.NoteOn(0, 62, 0), Event{Kind: NoteOff, Note: 62}, true},
		{"all notes off", midi.ControlChange(5, 123, 0), Event{Kind: AllNotesOff, Channel: 5}, true},
		{"all sound off", midi.ControlChange(0, 120, 0), Event{Kind: AllNotesOff}, true},
		{"mod wheel", midi.ControlChange(0, 1, 64), Event{}, false},
		{"program change", midi.ProgramChange(0, 3), Event{}, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Translate(tc.msg)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("Translate = %+v, %v; want %+v, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{NoteOn: "note-on", NoteOff: "note-off", AllNotesOff: "all-notes-off", 0: "unknown"} {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
