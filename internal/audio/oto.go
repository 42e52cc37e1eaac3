package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process as well.
var (
	otoMu         sync.Mutex
	otoContext    *oto.Context
	otoSampleRate int
	otoChannels   int
)

func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()
	if otoContext != nil {
		if otoSampleRate != sampleRate || otoChannels != channels {
			return nil, fmt.Errorf("oto context already initialized at %d Hz x%d (requested %d Hz x%d)",
				otoSampleRate, otoChannels, sampleRate, channels)
		}
		return otoContext, nil
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	otoContext, otoSampleRate, otoChannels = ctx, sampleRate, channels
	return ctx, nil
}

type otoDevice struct {
	player *oto.Player
	reader *StreamReader
}

func newOtoDevice(sampleRate, channels int, source SampleSource) (*otoDevice, error) {
	if channels < 1 {
		channels = 1
	}
	ctx, err := sharedOtoContext(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, channels)
	return &otoDevice{player: ctx.NewPlayer(reader), reader: reader}, nil
}

func (d *otoDevice) Play()           { d.player.Play() }
func (d *otoDevice) Pause()          { d.player.Pause() }
func (d *otoDevice) IsPlaying() bool { return d.player.IsPlaying() }

func (d *otoDevice) Close() error {
	d.player.Pause()
	if err := d.player.Close(); err != nil {
		return err
	}
	return d.reader.Close()
}
