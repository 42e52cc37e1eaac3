package waves

import (
	"errors"
	"fmt"

	"github.com/cbegin/waves-go/internal/envelope"
	"github.com/cbegin/waves-go/internal/notes"
)

var (
	ErrInvalidSampleRate = errors.New("sample rate must be a positive finite number")
	ErrNullHandle        = errors.New("null waveform handle")
	ErrUnknownHandle     = errors.New("unknown waveform handle")
	ErrUnknownKind       = errors.New("unknown waveform kind")
	ErrDuplicateOutput   = errors.New("the output waveform already exists")
	ErrCycle             = errors.New("connection would create a modulation cycle")
	ErrSealed            = errors.New("graph is sealed once rendering has started")
	ErrUnsupportedKind   = errors.New("unsupported waveform kind")
	ErrQueueFull         = errors.New("player event queue is full")

	ErrInvalidEnvelope = envelope.ErrInvalid
	ErrNoteRange       = notes.ErrIndexRange
)

// UnsupportedKindError names a node whose oscillator has no implementation.
// The render path panics with this value if it ever reaches such a node.
type UnsupportedKindError struct {
	Handle Handle
	Kind   Kind
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("waveform %d: %s oscillator is not supported", e.Handle, e.Kind)
}

func (e *UnsupportedKindError) Unwrap() error { return ErrUnsupportedKind }
