// Package mml parses a compact Music Macro Language dialect into
// tick-timed note events for the sequencer.
package mml

import "errors"

// ErrSyntax wraps every parse failure.
var ErrSyntax = errors.New("mml syntax error")

type EventType int

const (
	EventNote EventType = iota + 1
	EventRest
	EventTempo
)

func (t EventType) String() string {
	switch t {
	case EventNote:
		return "note"
	case EventRest:
		return "rest"
	case EventTempo:
		return "tempo"
	default:
		return "unknown"
	}
}

// Event is one timed instruction. Tick and Duration are in score ticks;
// Gate is how long a note is held before its note-off.
type Event struct {
	Type     EventType
	Tick     int
	Duration int
	Gate     int
	Note     int
	Velocity uint8
	// Value holds the tempo in BPM for EventTempo.
	Value int
}

type Track struct {
	Events  []Event
	EndTick int
}

type Score struct {
	Resolution int
	InitialBPM float64
	Tracks     []Track
}

// EndTick is the end of the longest track.
func (s *Score) EndTick() int {
	end := 0
	for _, tr := range s.Tracks {
		if tr.EndTick > end {
			end = tr.EndTick
		}
	}
	return end
}

// NoteCount counts note events over all tracks.
func (s *Score) NoteCount() int {
	n := 0
	for _, tr := range s.Tracks {
		for _, ev := range tr.Events {
			if ev.Type == EventNote {
				n++
			}
		}
	}
	return n
}

type ParserConfig struct {
	// Resolution is ticks per whole note.
	Resolution    int
	DefaultBPM    float64
	DefaultLength int
	DefaultOctave int
	MinOctave     int
	MaxOctave     int
	DefaultVolume int
	MaxVolume     int
	DefaultQuant  int
	MaxQuant      int
}

func DefaultParserConfig() ParserConfig {
	return ParserConfig{
		Resolution:    1920,
		DefaultBPM:    120,
		DefaultLength: 4,
		DefaultOctave: 5,
		MinOctave:     0,
		MaxOctave:     9,
		DefaultVolume: 12,
		MaxVolume:     16,
		DefaultQuant:  6,
		MaxQuant:      8,
	}
}
