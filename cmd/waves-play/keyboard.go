package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	waves "github.com/cbegin/waves-go"
)

// Two rows of a QWERTY keyboard laid out like a piano: the home row holds
// the white keys and the row above the black keys.
var keyOffsets = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6, 'g': 7,
	'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12, 'o': 13, 'l': 14, 'p': 15,
	';': 16, '\'': 17,
}

const (
	minKeyboardOctave = 0
	maxKeyboardOctave = 8
)

// keyboard tracks which notes the terminal has latched on. Terminals report
// presses only, so each key toggles its note.
type keyboard struct {
	octave int
	held   map[int]bool
}

func newKeyboard() *keyboard {
	return &keyboard{octave: 4, held: map[int]bool{}}
}

type keyAction int

const (
	keyNone keyAction = iota
	keyNoteOn
	keyNoteOff
	keyAllOff
	keyQuit
)

// press interprets one byte of raw terminal input.
func (k *keyboard) press(b byte) (keyAction, int) {
	switch b {
	case 'q', 3, 4: // q, ctrl-c, ctrl-d
		return keyQuit, 0
	case ' ':
		k.held = map[int]bool{}
		return keyAllOff, 0
	case 'z':
		if k.octave > minKeyboardOctave {
			k.octave--
		}
		return keyNone, 0
	case 'x':
		if k.octave < maxKeyboardOctave {
			k.octave++
		}
		return keyNone, 0
	}
	off, ok := keyOffsets[b]
	if !ok {
		return keyNone, 0
	}
	note := (k.octave+1)*12 + off
	if note > 127 {
		return keyNone, 0
	}
	if k.held[note] {
		delete(k.held, note)
		return keyNoteOff, note
	}
	k.held[note] = true
	return keyNoteOn, note
}

func playKeyboard(ctx context.Context, pl *waves.Player, logger *slog.Logger) error {
	fd := int(os.Stdin.Fd())
	fmt.Fprintln(os.Stderr, "keys a-' toggle notes, z/x octave, space releases all, q quits")
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("keyboard: %w", err)
	}
	defer term.Restore(fd, old)

	input := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(input)
				return
			}
			if n == 1 {
				select {
				case input <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	kb := newKeyboard()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-input:
			if !ok {
				return nil
			}
			action, note := kb.press(b)
			switch action {
			case keyQuit:
				return nil
			case keyNoteOn:
				err = pl.NoteOn(note, 100)
			case keyNoteOff:
				err = pl.NoteOff(note)
			case keyAllOff:
				err = pl.AllNotesOff()
			}
			if err != nil {
				logger.Warn("key dropped", "note", note, "err", err)
				err = nil
			}
		}
	}
}
