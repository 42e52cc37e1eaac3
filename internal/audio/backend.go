package audio

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownBackend = errors.New("unknown audio backend")

// Backend names an output library.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendEbiten, BackendOto:
		return b, nil
	case "":
		return BackendEbiten, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// Device is a running output stream.
type Device interface {
	Play()
	Pause()
	IsPlaying() bool
	Close() error
}

// Open starts pulling from source on the given backend. The ebiten backend
// always runs in stereo; oto honours channels.
func Open(b Backend, sampleRate, channels int, source SampleSource) (Device, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}
	switch b {
	case BackendEbiten, "":
		return newEbitenDevice(sampleRate, source)
	case BackendOto:
		return newOtoDevice(sampleRate, channels, source)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, string(b))
	}
}
