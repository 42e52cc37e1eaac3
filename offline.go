package waves

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	intfx "github.com/cbegin/waves-go/internal/effects"
	intmml "github.com/cbegin/waves-go/internal/mml"
	intseq "github.com/cbegin/waves-go/internal/sequencer"
)

// maxRenderSeconds caps open-ended renders of scores that never finish.
const maxRenderSeconds = 600

type RenderOption func(*renderConfig)

type renderConfig struct {
	tailSeconds float64
	fx          masterFX
	gain        float64
}

// WithTail sets how much silence to keep after the last voice has ended
// when rendering until the score finishes.
func WithTail(seconds float64) RenderOption {
	return func(cfg *renderConfig) {
		if seconds >= 0 {
			cfg.tailSeconds = seconds
		}
	}
}

// WithRenderLimiter runs the rendered samples through the same limiter the
// Player uses.
func WithRenderLimiter(enabled bool) RenderOption {
	return func(cfg *renderConfig) {
		cfg.fx.limiter = enabled
	}
}

// WithRenderEcho adds the same feedback delay as the Player's WithEcho.
func WithRenderEcho(delayMs, feedback, wet float64) RenderOption {
	return func(cfg *renderConfig) {
		cfg.fx.echoMs, cfg.fx.echoFeedback, cfg.fx.echoWet = delayMs, feedback, wet
	}
}

func WithRenderGain(g float64) RenderOption {
	return func(cfg *renderConfig) {
		cfg.gain = g
	}
}

// RenderScore plays score through e and returns mono samples. With seconds
// > 0 exactly that much audio is rendered; otherwise rendering stops once
// the score and every release tail have finished. e must not have rendered
// before if the result is to be reproducible.
func RenderScore(e *Engine, score *intmml.Score, seconds float64, opts ...RenderOption) ([]float32, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	cfg := renderConfig{tailSeconds: 0.1, gain: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	sr := int(math.Round(e.SampleRate()))
	seq := intseq.NewWithOptions(score, e, sr, intseq.Options{
		ReleaseTailFrames: max(1, int(cfg.tailSeconds*float64(sr))),
	})

	var out []float32
	if seconds > 0 {
		out = make([]float32, int(seconds*float64(sr)))
		seq.Process(out)
	} else {
		block := make([]float32, 1024)
		limit := maxRenderSeconds * sr
		for !seq.Finished() && len(out) < limit {
			seq.Process(block)
			out = append(out, block...)
		}
	}
	chain := newMasterChain(sr, cfg.fx)
	if cfg.gain != 1 {
		chain.Add(intfx.Gain(cfg.gain))
	}
	chain.ProcessBlock(out)
	return out, nil
}

// RenderMML parses src and renders it with RenderScore.
func RenderMML(e *Engine, src string, seconds float64, opts ...RenderOption) ([]float32, error) {
	score, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return RenderScore(e, score, seconds, opts...)
}

// WriteWAV encodes mono samples as 16-bit PCM, copying each frame to every
// channel. Samples outside [-1, 1] are clipped.
func WriteWAV(w io.WriteSeeker, samples []float32, sampleRate, channels int) error {
	if sampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if channels < 1 {
		return errors.New("waves: channel count must be positive")
	}
	data := make([]int, len(samples)*channels)
	for i, s := range samples {
		v := pcm16(s)
		for c := 0; c < channels; c++ {
			data[i*channels+c] = v
		}
	}
	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

func pcm16(s float32) int {
	switch {
	case s > 1:
		s = 1
	case s < -1:
		s = -1
	case math.IsNaN(float64(s)):
		s = 0
	}
	return int(math.Round(float64(s) * math.MaxInt16))
}
