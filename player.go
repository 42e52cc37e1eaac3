package waves

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	intaudio "github.com/cbegin/waves-go/internal/audio"
	intfx "github.com/cbegin/waves-go/internal/effects"
	intmml "github.com/cbegin/waves-go/internal/mml"
	intseq "github.com/cbegin/waves-go/internal/sequencer"
)

// PlaybackEvent reports score playback progress from Watch().
type PlaybackEvent struct {
	Kind int // EventLoopCompleted or EventPlaybackEnded
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

// Backend selects the audio output library.
type Backend = intaudio.Backend

const (
	BackendEbiten = intaudio.BackendEbiten
	BackendOto    = intaudio.BackendOto
)

// ParseBackend maps a flag value such as "oto" to a Backend. The empty
// string selects ebiten.
func ParseBackend(s string) (Backend, error) {
	return intaudio.ParseBackend(s)
}

const defaultQueueSize = 256

type PlayerOption func(*playerConfig)

type playerConfig struct {
	backend   Backend
	channels  int
	queueSize int
	gain      float64
	fx        masterFX
	logger    *slog.Logger
	sampleTap func([]float32)
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		backend:   BackendEbiten,
		channels:  2,
		queueSize: defaultQueueSize,
		gain:      1,
	}
}

func WithBackend(b Backend) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.backend = b
	}
}

// WithChannels sets how many device channels each mono frame is copied to.
// The ebiten backend is always stereo.
func WithChannels(n int) PlayerOption {
	return func(cfg *playerConfig) {
		if n > 0 {
			cfg.channels = n
		}
	}
}

// WithQueueSize bounds the number of note events waiting for the audio
// thread. Posting beyond it fails with ErrQueueFull.
func WithQueueSize(n int) PlayerOption {
	return func(cfg *playerConfig) {
		if n > 0 {
			cfg.queueSize = n
		}
	}
}

func WithGain(g float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.gain = g
	}
}

// WithLimiter adds a compressor and a tanh soft clipper after the engine so
// stacked voices stay inside [-1, 1].
func WithLimiter(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.fx.limiter = enabled
	}
}

// WithEcho adds a feedback delay of delayMs before the limiter.
func WithEcho(delayMs, feedback, wet float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.fx.echoMs, cfg.fx.echoFeedback, cfg.fx.echoWet = delayMs, feedback, wet
	}
}

// WithTremolo adds amplitude modulation at rateHz; depth is in [0, 1].
func WithTremolo(rateHz, depth float64) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.fx.tremoloHz, cfg.fx.tremoloDepth = rateHz, depth
	}
}

func WithLogger(l *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.logger = l
	}
}

// WithSampleTap installs a callback invoked with each generated mono block.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

type controlKind int

const (
	ctlNoteOn controlKind = iota
	ctlNoteOff
	ctlAllNotesOff
	ctlLoadScore
	ctlStopScore
)

type control struct {
	kind     controlKind
	note     int
	velocity uint8
	seq      *intseq.Sequencer
}

// Player streams an engine to an audio device. Note calls are queued and
// applied by the audio thread at the start of the next block, so once
// Start has been called the engine must only be reached through the Player.
type Player struct {
	engine     *Engine
	sampleRate int
	cfg        playerConfig
	log        *slog.Logger
	parser     *intmml.Parser

	controls chan control
	gainBits atomic.Uint64
	effects  *intfx.Chain

	// audio thread only
	seq *intseq.Sequencer

	mu        sync.Mutex
	device    intaudio.Device
	done      *scoreDone
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

// NewPlayer checks that every node reachable from the output can be
// rendered and prepares e for streaming. It does not open a device.
func NewPlayer(e *Engine, opts ...PlayerOption) (*Player, error) {
	if e == nil {
		return nil, errors.New("waves: nil engine")
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	sr := int(math.Round(e.SampleRate()))
	p := &Player{
		engine:     e,
		sampleRate: sr,
		cfg:        cfg,
		log:        logger,
		parser:     intmml.NewParser(intmml.DefaultParserConfig()),
		controls:   make(chan control, cfg.queueSize),
		effects:    newMasterChain(sr, cfg.fx),
	}
	p.SetGain(cfg.gain)
	return p, nil
}

// masterFX describes the post-engine chain shared by the Player and offline
// rendering. Tremolo runs first and the limiter last.
type masterFX struct {
	limiter      bool
	echoMs       float64
	echoFeedback float64
	echoWet      float64
	tremoloHz    float64
	tremoloDepth float64
}

func newMasterChain(sampleRate int, fx masterFX) *intfx.Chain {
	chain := intfx.NewChain()
	if fx.tremoloHz > 0 && fx.tremoloDepth > 0 {
		chain.Add(intfx.NewTremolo(sampleRate, float32(fx.tremoloHz), float32(fx.tremoloDepth)))
	}
	if fx.echoMs > 0 && fx.echoWet > 0 {
		chain.Add(intfx.NewDelay(sampleRate, fx.echoMs, float32(fx.echoFeedback), float32(fx.echoWet)))
	}
	if fx.limiter {
		chain.Add(intfx.NewCompressor(sampleRate, -6, 4, 2, 120, 0))
		chain.Add(intfx.NewSoftClip(1, 0.98))
	}
	return chain
}

func (p *Player) Engine() *Engine { return p.engine }

func (p *Player) SampleRate() int { return p.sampleRate }

// Start opens the configured backend and begins pulling frames.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		p.device.Play()
		return nil
	}
	dev, err := intaudio.Open(p.cfg.backend, p.sampleRate, p.cfg.channels, p)
	if err != nil {
		p.log.Error("audio backend failed to start", "backend", p.cfg.backend, "err", err)
		return err
	}
	p.device = dev
	dev.Play()
	p.log.Info("audio started", "backend", p.cfg.backend, "sampleRate", p.sampleRate, "channels", p.cfg.channels)
	return nil
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		p.device.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.device != nil {
		p.device.Play()
	}
}

// Stop closes the device and releases anyone blocked in Wait.
func (p *Player) Stop() error {
	p.mu.Lock()
	dev := p.device
	p.device = nil
	done := p.done
	p.done = nil
	p.mu.Unlock()
	var err error
	if dev != nil {
		err = dev.Close()
		p.log.Info("audio stopped", "backend", p.cfg.backend)
	}
	if done != nil {
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
		done.close()
	}
	return err
}

// IsPlaying reports whether a started device is currently pulling frames.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.device != nil && p.device.IsPlaying()
}

func (p *Player) NoteOn(index int, velocity uint8) error {
	if err := checkNote(index); err != nil {
		return err
	}
	return p.post(control{kind: ctlNoteOn, note: index, velocity: velocity})
}

func (p *Player) NoteOff(index int) error {
	if err := checkNote(index); err != nil {
		return err
	}
	return p.post(control{kind: ctlNoteOff, note: index})
}

func (p *Player) AllNotesOff() error {
	return p.post(control{kind: ctlAllNotesOff})
}

func checkNote(index int) error {
	if index < 0 || index >= VoiceCount {
		return ErrNoteRange
	}
	return nil
}

func (p *Player) post(c control) error {
	select {
	case p.controls <- c:
		return nil
	default:
		p.log.Warn("player event queue full", "size", cap(p.controls))
		return ErrQueueFull
	}
}

// SetGain sets the output gain applied after the engine. 1.0 is unity.
func (p *Player) SetGain(g float64) {
	if g < 0 || math.IsNaN(g) {
		g = 0
	}
	p.gainBits.Store(math.Float64bits(g))
}

func (p *Player) Gain() float64 {
	return math.Float64frombits(p.gainBits.Load())
}

func Compile(mmlText string) (*intmml.Score, error) {
	return intmml.NewParser(intmml.DefaultParserConfig()).Parse(mmlText)
}

// PlayMML parses src and hands it to the audio thread, replacing any score
// already playing. Live notes keep working alongside the score and survive
// its replacement.
func (p *Player) PlayMML(src string, loop bool) error {
	score, err := p.parser.Parse(src)
	if err != nil {
		return err
	}
	return p.Play(score, loop)
}

// scoreDone is closed when the score it belongs to ends or is replaced.
type scoreDone struct {
	ch   chan struct{}
	once sync.Once
}

func newScoreDone() *scoreDone { return &scoreDone{ch: make(chan struct{})} }

func (d *scoreDone) close() { d.once.Do(func() { close(d.ch) }) }

func (p *Player) Play(score *intmml.Score, loop bool) error {
	done := newScoreDone()
	p.mu.Lock()
	prev := p.done
	p.done = done
	p.mu.Unlock()

	seq := intseq.NewWithOptions(score, p.engine, p.sampleRate, intseq.Options{
		LoopWholeScore: loop,
		OnEvent: func(kind intseq.EventKind) {
			p.sendEvent(PlaybackEvent{Kind: int(kind)})
			if kind == intseq.EventPlaybackEnded {
				p.signalDone(done)
			}
		},
	})
	if err := p.post(control{kind: ctlLoadScore, seq: seq}); err != nil {
		// The score never reached the audio thread; the previous one, if
		// any, is still the one Wait follows.
		done.close()
		p.mu.Lock()
		if p.done == done {
			p.done = prev
		}
		p.mu.Unlock()
		return err
	}
	if prev != nil {
		prev.close()
	}
	return nil
}

// StopScore abandons the current score and releases its notes.
func (p *Player) StopScore() error {
	return p.post(control{kind: ctlStopScore})
}

func (p *Player) signalDone(done *scoreDone) {
	done.close()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == done {
		p.done = nil
	}
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Wait blocks until the current score ends. When looping, Wait blocks until
// Stop. It returns immediately if no score is playing.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done.ch
	}
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8); events are dropped rather than block the audio thread.
// Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// Process is the audio callback: it applies queued events, then renders
// len(dst) mono frames through the master chain and gain.
func (p *Player) Process(dst []float32) {
	p.drain()
	if p.seq != nil {
		p.seq.Process(dst)
		if p.seq.Finished() {
			p.seq = nil
		}
	} else {
		p.engine.Process(dst)
	}
	p.effects.ProcessBlock(dst)
	if g := float32(p.Gain()); g != 1 {
		for i := range dst {
			dst[i] *= g
		}
	}
	if p.cfg.sampleTap != nil {
		p.cfg.sampleTap(dst)
	}
}

func (p *Player) drain() {
	for {
		select {
		case c := <-p.controls:
			p.apply(c)
		default:
			return
		}
	}
}

func (p *Player) apply(c control) {
	switch c.kind {
	case ctlNoteOn:
		_ = p.engine.NoteOn(c.note, c.velocity)
	case ctlNoteOff:
		_ = p.engine.NoteOff(c.note)
	case ctlAllNotesOff:
		p.engine.AllNotesOff()
	case ctlLoadScore:
		if p.seq != nil {
			p.seq.Stop()
		}
		p.seq = c.seq
	case ctlStopScore:
		if p.seq != nil {
			p.seq.Stop()
		}
	}
}
