// Package audio connects a mono sample source to an output device. Each
// mono frame is copied to every device channel and written as little-endian
// float32.
package audio

import (
	"encoding/binary"
	"math"
	"sync"
)

type SampleSource interface {
	Process(dst []float32)
}

// StreamReader adapts a SampleSource to the io.Reader the device players
// pull from.
type StreamReader struct {
	mu       sync.Mutex
	source   SampleSource
	channels int
	buf      []float32
}

func NewStreamReader(source SampleSource, channels int) *StreamReader {
	if channels < 1 {
		channels = 1
	}
	return &StreamReader{source: source, channels: channels}
}

func (r *StreamReader) Channels() int { return r.channels }

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frameBytes := 4 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([]float32, frames)
	}
	r.buf = r.buf[:frames]
	r.source.Process(r.buf)
	off := 0
	for _, s := range r.buf {
		u := math.Float32bits(s)
		for c := 0; c < r.channels; c++ {
			binary.LittleEndian.PutUint32(p[off:], u)
			off += 4
		}
	}
	return off, nil
}

func (r *StreamReader) Close() error { return nil }
