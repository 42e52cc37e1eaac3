// Package midiin turns MIDI input messages into note events for the engine.
package midiin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ErrPortNotFound = errors.New("MIDI input not found")

// Controllers that silence everything.
const (
	ccAllSoundOff = 120
	ccAllNotesOff = 123
)

type Kind int

const (
	NoteOn Kind = iota + 1
	NoteOff
	AllNotesOff
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note-on"
	case NoteOff:
		return "note-off"
	case AllNotesOff:
		return "all-notes-off"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     Kind
	Channel  uint8
	Note     int
	Velocity uint8
}

// Translate maps a message to an event. A note-on with velocity zero is a
// note-off. Messages the engine has no use for report false.
func Translate(msg midi.Message) (Event, bool) {
	var ch, key, vel, cc, val uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		return Event{Kind: NoteOn, Channel: ch, Note: int(key), Velocity: vel}, true
	case msg.GetNoteEnd(&ch, &key):
		return Event{Kind: NoteOff, Channel: ch, Note: int(key)}, true
	case msg.GetControlChange(&ch, &cc, &val):
		if cc == ccAllSoundOff || cc == ccAllNotesOff {
			return Event{Kind: AllNotesOff, Channel: ch}, true
		}
	}
	return Event{}, false
}

// Ports lists the names of the available MIDI inputs.
func Ports() ([]string, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// FindPort resolves a port by index, exact name or case-insensitive
// substring, in that order.
func FindPort(name string) (drivers.In, error) {
	ins, err := drivers.Ins()
	if err != nil {
		return nil, err
	}
	if i, err := strconv.Atoi(name); err == nil && i >= 0 && i < len(ins) {
		return ins[i], nil
	}
	for _, in := range ins {
		if in.String() == name {
			return in, nil
		}
	}
	needle := strings.ToLower(name)
	for _, in := range ins {
		if strings.Contains(strings.ToLower(in.String()), needle) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

type Options struct {
	// Channel restricts input to one MIDI channel (0-15); -1 accepts all.
	Channel int
	Logger  *slog.Logger
}

// Listen delivers events from the named port to handler until ctx is done.
// handler runs on the driver's goroutine.
func Listen(ctx context.Context, port string, handler func(Event), opts Options) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	in, err := FindPort(port)
	if err != nil {
		return err
	}
	if err := in.Open(); err != nil {
		return fmt.Errorf("open MIDI input %q: %w", in.String(), err)
	}
	defer in.Close()

	listenErr := make(chan error, 1)
	stop, err := midi.ListenTo(in, func(msg midi.Message, _ int32) {
		ev, ok := Translate(msg)
		if !ok {
			logger.Debug("ignored MIDI message", "msg", msg.String())
			return
		}
		if opts.Channel >= 0 && int(ev.Channel) != opts.Channel {
			return
		}
		handler(ev)
	}, midi.HandleError(func(err error) {
		select {
		case listenErr <- err:
		default:
		}
	}))
	if err != nil {
		return fmt.Errorf("listen on %q: %w", in.String(), err)
	}
	defer stop()
	logger.Info("MIDI input connected", "device", in.String())

	select {
	case <-ctx.Done():
		logger.Info("MIDI input closing", "device", in.String())
		return nil
	case err := <-listenErr:
		logger.Warn("MIDI listener error", "device", in.String(), "err", err)
		return err
	}
}
