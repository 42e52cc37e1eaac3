// Package sequencer plays a parsed score against a voice engine, rendering
// one mono frame at a time and dispatching note events on tick boundaries.
package sequencer

import "github.com/cbegin/waves-go/internal/mml"

// Engine is the part of the synthesis engine the sequencer drives.
type Engine interface {
	NoteOn(note int, velocity uint8) error
	NoteOff(note int) error
	GetFrame() float32
	// ActiveVoiceCount counts voices still sounding, release tails included.
	ActiveVoiceCount() int
}

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

func (k EventKind) String() string {
	switch k {
	case EventLoopCompleted:
		return "loop-completed"
	case EventPlaybackEnded:
		return "playback-ended"
	default:
		return "unknown"
	}
}

type Options struct {
	LoopWholeScore bool
	// OnEvent runs on the rendering goroutine.
	OnEvent func(EventKind)
	// ReleaseTailFrames is how long to keep rendering silence after the last
	// voice ends before reporting EventPlaybackEnded (0 = a tenth of a second).
	ReleaseTailFrames int
}

type Sequencer struct {
	score      *mml.Score
	engine     Engine
	sampleRate int
	endTick    int

	bpm          float64
	ticksPerSamp float64
	pos          float64
	nextTick     int
	cursors      []int
	noteOffs     []noteOff
	generation   [128]uint32

	loop      bool
	onEvent   func(EventKind)
	tail      int
	tailLeft  int
	exhausted bool
	finished  bool
}

type noteOff struct {
	tick int
	note int
	gen  uint32
}

func New(score *mml.Score, engine Engine, sampleRate int) *Sequencer {
	return NewWithOptions(score, engine, sampleRate, Options{})
}

func NewWithOptions(score *mml.Score, engine Engine, sampleRate int, opts Options) *Sequencer {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	tail := opts.ReleaseTailFrames
	if tail <= 0 {
		tail = sampleRate / 10
	}
	s := &Sequencer{
		score:      score,
		engine:     engine,
		sampleRate: sampleRate,
		endTick:    score.EndTick(),
		cursors:    make([]int, len(score.Tracks)),
		loop:       opts.LoopWholeScore && score.EndTick() > 0,
		onEvent:    opts.OnEvent,
		tail:       tail,
		tailLeft:   tail,
	}
	s.setTempo(score.InitialBPM)
	return s
}

func (s *Sequencer) setTempo(bpm float64) {
	if bpm <= 0 {
		return
	}
	s.bpm = bpm
	quarter := float64(s.score.Resolution) / 4
	s.ticksPerSamp = bpm / 60 * quarter / float64(s.sampleRate)
}

func (s *Sequencer) Tempo() float64 { return s.bpm }

// Tick is the next score tick to be dispatched.
func (s *Sequencer) Tick() int { return s.nextTick }

// Finished reports whether a non-looping score has played out, including
// its release tail.
func (s *Sequencer) Finished() bool { return s.finished }

// Process fills dst with mono frames, dispatching due events before each.
func (s *Sequencer) Process(dst []float32) {
	for i := range dst {
		for s.nextTick <= int(s.pos) {
			s.dispatch(s.nextTick)
			s.nextTick++
		}
		dst[i] = s.engine.GetFrame()
		s.pos += s.ticksPerSamp
		if s.exhausted && !s.finished {
			s.checkEnded()
		}
	}
}

// Stop releases the notes the score is holding and abandons the rest of it.
// Notes pressed on the engine by anyone else are left alone.
func (s *Sequencer) Stop() {
	for _, off := range s.noteOffs {
		if s.generation[off.note] == off.gen {
			_ = s.engine.NoteOff(off.note)
		}
	}
	s.noteOffs = s.noteOffs[:0]
	for i, tr := range s.score.Tracks {
		s.cursors[i] = len(tr.Events)
	}
	s.loop = false
	s.exhausted = true
}

func (s *Sequencer) dispatch(tick int) {
	if s.loop && tick >= s.endTick {
		s.wrap()
		tick = s.nextTick
	}
	s.fireNoteOffs(tick)
	for t := range s.score.Tracks {
		events := s.score.Tracks[t].Events
		for s.cursors[t] < len(events) && events[s.cursors[t]].Tick <= tick {
			s.apply(events[s.cursors[t]], tick)
			s.cursors[t]++
		}
	}
	if !s.loop && !s.exhausted && s.scoreDone() {
		s.exhausted = true
	}
}

func (s *Sequencer) apply(ev mml.Event, tick int) {
	switch ev.Type {
	case mml.EventTempo:
		s.setTempo(float64(ev.Value))
	case mml.EventNote:
		if ev.Gate <= 0 || ev.Note < 0 || ev.Note > 127 {
			return
		}
		if err := s.engine.NoteOn(ev.Note, ev.Velocity); err != nil {
			return
		}
		s.generation[ev.Note]++
		s.noteOffs = append(s.noteOffs, noteOff{
			tick: tick + ev.Gate,
			note: ev.Note,
			gen:  s.generation[ev.Note],
		})
	}
}

// fireNoteOffs releases notes whose gate has elapsed, unless the same note
// was pressed again since, in which case the newer press owns the voice.
func (s *Sequencer) fireNoteOffs(tick int) {
	kept := s.noteOffs[:0]
	for _, off := range s.noteOffs {
		if off.tick > tick {
			kept = append(kept, off)
			continue
		}
		if s.generation[off.note] == off.gen {
			_ = s.engine.NoteOff(off.note)
		}
	}
	s.noteOffs = kept
}

func (s *Sequencer) scoreDone() bool {
	if len(s.noteOffs) > 0 {
		return false
	}
	for t, tr := range s.score.Tracks {
		if s.cursors[t] < len(tr.Events) {
			return false
		}
	}
	return true
}

// wrap restarts the score at tick zero. Gates still open carry over into
// the next pass.
func (s *Sequencer) wrap() {
	s.pos -= float64(s.endTick)
	s.nextTick -= s.endTick
	for i := range s.noteOffs {
		s.noteOffs[i].tick -= s.endTick
	}
	for i := range s.cursors {
		s.cursors[i] = 0
	}
	s.setTempo(s.score.InitialBPM)
	if s.onEvent != nil {
		s.onEvent(EventLoopCompleted)
	}
}

func (s *Sequencer) checkEnded() {
	if s.engine.ActiveVoiceCount() > 0 {
		s.tailLeft = s.tail
		return
	}
	if s.tailLeft > 0 {
		s.tailLeft--
		return
	}
	s.finished = true
	if s.onEvent != nil {
		s.onEvent(EventPlaybackEnded)
	}
}
