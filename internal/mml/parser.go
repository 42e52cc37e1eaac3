package mml

import (
	"fmt"
	"strconv"
	"strings"
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

type Parser struct{ cfg ParserConfig }

func NewParser(cfg ParserConfig) *Parser {
	def := DefaultParserConfig()
	if cfg.Resolution <= 0 {
		cfg.Resolution = def.Resolution
	}
	if cfg.DefaultBPM <= 0 {
		cfg.DefaultBPM = def.DefaultBPM
	}
	if cfg.DefaultLength <= 0 {
		cfg.DefaultLength = def.DefaultLength
	}
	if cfg.MaxVolume <= 0 {
		cfg.MaxVolume = def.MaxVolume
	}
	if cfg.MaxQuant <= 0 {
		cfg.MaxQuant = def.MaxQuant
	}
	return &Parser{cfg: cfg}
}

// Parse turns src into a score. Tracks are separated by ';'. Comments use
// "//" to end of line or "/* */".
func (p *Parser) Parse(src string) (*Score, error) {
	score := &Score{Resolution: p.cfg.Resolution, InitialBPM: p.cfg.DefaultBPM}
	for _, part := range strings.Split(stripComments(src), ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		body, err := expandLoops(part)
		if err != nil {
			return nil, err
		}
		tr, err := p.parseTrack(body)
		if err != nil {
			return nil, err
		}
		score.Tracks = append(score.Tracks, tr)
	}
	return score, nil
}

type trackState struct {
	src    string
	pos    int
	tick   int
	octave int
	length int
	volume int
	quant  int
	events []Event
	cfg    *ParserConfig
}

func (p *Parser) parseTrack(src string) (Track, error) {
	st := &trackState{
		src:    src,
		octave: p.cfg.DefaultOctave,
		length: p.cfg.Resolution / p.cfg.DefaultLength,
		volume: p.cfg.DefaultVolume,
		quant:  p.cfg.DefaultQuant,
		cfg:    &p.cfg,
	}
	for st.pos < len(src) {
		ch := lower(src[st.pos])
		at := st.pos
		st.pos++
		var err error
		switch {
		case isSpace(ch):
		case isNote(ch):
			err = st.note(noteOffsets[ch])
		case ch == 'n':
			err = st.noteNumber(at)
		case ch == 'r':
			dur, e := st.lengthWithTies()
			if e != nil {
				return Track{}, e
			}
			st.events = append(st.events, Event{Type: EventRest, Tick: st.tick, Duration: dur})
			st.tick += dur
		case ch == '^':
			// A bare tie extends the previous note or rest.
			dur, e := st.length1()
			if e != nil {
				return Track{}, e
			}
			err = st.extendLast(at, dur)
		case ch == 'l':
			dur, e := st.length1()
			if e != nil {
				return Track{}, e
			}
			st.length = dur
		case ch == 'o':
			v, ok := st.number()
			if !ok || v < p.cfg.MinOctave || v > p.cfg.MaxOctave {
				return Track{}, st.errorf(at, "octave out of range")
			}
			st.octave = v
		case ch == '<':
			st.octave = clampInt(st.octave-1, p.cfg.MinOctave, p.cfg.MaxOctave)
		case ch == '>':
			st.octave = clampInt(st.octave+1, p.cfg.MinOctave, p.cfg.MaxOctave)
		case ch == 't':
			v, ok := st.number()
			if !ok || v <= 0 {
				return Track{}, st.errorf(at, "tempo needs a positive value")
			}
			st.events = append(st.events, Event{Type: EventTempo, Tick: st.tick, Value: v})
		case ch == 'v':
			v, ok := st.number()
			if !ok {
				return Track{}, st.errorf(at, "volume needs a value")
			}
			st.volume = clampInt(v, 0, p.cfg.MaxVolume)
		case ch == 'q':
			v, ok := st.number()
			if !ok {
				return Track{}, st.errorf(at, "gate needs a value")
			}
			st.quant = clampInt(v, 0, p.cfg.MaxQuant)
		default:
			return Track{}, st.errorf(at, "unexpected %q", src[at])
		}
		if err != nil {
			return Track{}, err
		}
	}
	return Track{Events: st.events, EndTick: st.tick}, nil
}

func (st *trackState) note(offset int) error {
	shift := 0
	for st.pos < len(st.src) {
		switch st.src[st.pos] {
		case '#', '+':
			shift++
		case '-':
			shift--
		default:
			goto done
		}
		st.pos++
	}
done:
	dur, err := st.lengthWithTies()
	if err != nil {
		return err
	}
	st.emitNote(st.octave*12+offset+shift, dur)
	return nil
}

func (st *trackState) noteNumber(at int) error {
	n, ok := st.number()
	if !ok {
		return st.errorf(at, "n needs a note number")
	}
	// A comma separates the note number from an explicit length.
	if st.pos < len(st.src) && st.src[st.pos] == ',' {
		st.pos++
	} else {
		dur := st.length
		st.emitNote(n, dur)
		return nil
	}
	dur, err := st.lengthWithTies()
	if err != nil {
		return err
	}
	st.emitNote(n, dur)
	return nil
}

func (st *trackState) emitNote(note, dur int) {
	note = clampInt(note, 0, 127)
	st.events = append(st.events, Event{
		Type:     EventNote,
		Tick:     st.tick,
		Duration: dur,
		Gate:     gate(dur, st.quant, st.cfg.MaxQuant),
		Note:     note,
		Velocity: uint8(clampInt(st.volume*127/st.cfg.MaxVolume, 0, 127)),
	})
	st.tick += dur
}

func (st *trackState) extendLast(at, dur int) error {
	for i := len(st.events) - 1; i >= 0; i-- {
		ev := &st.events[i]
		if ev.Type == EventTempo {
			continue
		}
		ev.Duration += dur
		if ev.Type == EventNote {
			ev.Gate = gate(ev.Duration, st.quant, st.cfg.MaxQuant)
		}
		st.tick += dur
		return nil
	}
	return st.errorf(at, "tie without a preceding note")
}

func gate(dur, quant, maxQuant int) int {
	if quant <= 0 {
		return 0
	}
	g := dur * quant / maxQuant
	if g <= 0 && dur > 0 {
		return 1
	}
	return g
}

// lengthWithTies reads a length and any "^length" continuations.
func (st *trackState) lengthWithTies() (int, error) {
	dur, err := st.length1()
	if err != nil {
		return 0, err
	}
	for st.pos < len(st.src) && st.src[st.pos] == '^' {
		st.pos++
		extra, err := st.length1()
		if err != nil {
			return 0, err
		}
		dur += extra
	}
	return dur, nil
}

// length1 reads an optional note value and dots. No number means the
// current default length.
func (st *trackState) length1() (int, error) {
	at := st.pos
	base := st.length
	if v, ok := st.number(); ok {
		if v <= 0 || v > st.cfg.Resolution {
			return 0, st.errorf(at, "invalid length %d", v)
		}
		base = st.cfg.Resolution / v
	}
	dur, term := base, base
	for st.pos < len(st.src) && st.src[st.pos] == '.' {
		term /= 2
		dur += term
		st.pos++
	}
	return dur, nil
}

func (st *trackState) number() (int, bool) {
	start := st.pos
	for st.pos < len(st.src) && isDigit(st.src[st.pos]) {
		st.pos++
	}
	if start == st.pos {
		return 0, false
	}
	v, err := strconv.Atoi(st.src[start:st.pos])
	if err != nil {
		return 0, false
	}
	return v, true
}

func (st *trackState) errorf(at int, format string, args ...any) error {
	return fmt.Errorf("%w at %d: %s", ErrSyntax, at, fmt.Sprintf(format, args...))
}

func stripComments(src string) string {
	var out strings.Builder
	out.Grow(len(src))
	for i := 0; i < len(src); i++ {
		if strings.HasPrefix(src[i:], "/*") {
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 3
			continue
		}
		if strings.HasPrefix(src[i:], "//") {
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				break
			}
			i += end
		}
		out.WriteByte(src[i])
	}
	return out.String()
}

// maxExpandedLen bounds the size of a track once its loops are unrolled.
const maxExpandedLen = 1 << 20

// expandLoops rewrites "[body]n" as body repeated n times (default 2).
// Text after '|' inside a loop is skipped on the last pass.
func expandLoops(src string) (string, error) {
	out, next, err := expandUntil(src, 0, false)
	if err != nil {
		return "", err
	}
	if next != len(src) {
		return "", fmt.Errorf("%w at %d: unmatched ']'", ErrSyntax, next)
	}
	return out, nil
}

func expandUntil(src string, at int, inLoop bool) (string, int, error) {
	var out strings.Builder
	for at < len(src) {
		switch src[at] {
		case ']':
			if !inLoop {
				return "", at, fmt.Errorf("%w at %d: unmatched ']'", ErrSyntax, at)
			}
			return out.String(), at, nil
		case '|':
			if !inLoop {
				return "", at, fmt.Errorf("%w at %d: '|' outside a loop", ErrSyntax, at)
			}
			return out.String(), at, nil
		case '[':
			body, next, err := expandLoop(src, at)
			if err != nil {
				return "", at, err
			}
			if out.Len()+len(body) > maxExpandedLen {
				return "", at, fmt.Errorf("%w at %d: track expands past %d bytes", ErrSyntax, at, maxExpandedLen)
			}
			out.WriteString(body)
			at = next
		default:
			out.WriteByte(src[at])
			at++
		}
	}
	if inLoop {
		return "", at, fmt.Errorf("%w: unclosed '['", ErrSyntax)
	}
	return out.String(), at, nil
}

func expandLoop(src string, open int) (string, int, error) {
	head, at, err := expandUntil(src, open+1, true)
	if err != nil {
		return "", at, err
	}
	tail := ""
	if src[at] == '|' {
		tail, at, err = expandUntil(src, at+1, true)
		if err != nil {
			return "", at, err
		}
		if src[at] == '|' {
			return "", at, fmt.Errorf("%w at %d: more than one '|' in a loop", ErrSyntax, at)
		}
	}
	at++ // ']'
	start := at
	for at < len(src) && isDigit(src[at]) {
		at++
	}
	repeat := 2
	if at > start {
		repeat, _ = strconv.Atoi(src[start:at])
	}
	if repeat < 1 {
		repeat = 1
	}
	if total := repeat*len(head) + (repeat-1)*len(tail); repeat > maxExpandedLen || total > maxExpandedLen {
		return "", at, fmt.Errorf("%w at %d: loop expands past %d bytes", ErrSyntax, open, maxExpandedLen)
	}
	var out strings.Builder
	for i := 0; i < repeat; i++ {
		out.WriteString(head)
		if i < repeat-1 {
			out.WriteString(tail)
		}
	}
	return out.String(), at, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + 32
	}
	return b
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isSpace(b byte) bool { return b == ' ' || b == '\n' || b == '\r' || b == '\t' }
func isNote(b byte) bool  { _, ok := noteOffsets[b]; return ok }
