package audio

import (
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ebiten contexts are process-wide and fixed at their first sample rate.
var (
	ebitenOnce       sync.Once
	ebitenContext    *ebitaudio.Context
	ebitenSampleRate int
)

func sharedEbitenContext(sampleRate int) (*ebitaudio.Context, error) {
	ebitenOnce.Do(func() {
		ebitenSampleRate = sampleRate
		ebitenContext = ebitaudio.NewContext(sampleRate)
	})
	if ebitenSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", ebitenSampleRate, sampleRate)
	}
	return ebitenContext, nil
}

type ebitenDevice struct {
	player *ebitaudio.Player
	reader *StreamReader
}

func newEbitenDevice(sampleRate int, source SampleSource) (*ebitenDevice, error) {
	ctx, err := sharedEbitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, 2)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, err
	}
	return &ebitenDevice{player: pl, reader: reader}, nil
}

func (d *ebitenDevice) Play()           { d.player.Play() }
func (d *ebitenDevice) Pause()          { d.player.Pause() }
func (d *ebitenDevice) IsPlaying() bool { return d.player.IsPlaying() }

func (d *ebitenDevice) Close() error {
	d.player.Pause()
	if err := d.player.Close(); err != nil {
		return err
	}
	return d.reader.Close()
}
